// Package leveling maps exp to levels and keeps milestone roles in line with
// a player's exp.
package leveling

import (
	"math"
	"sort"
)

const (
	MaxLevel = 2000

	baseCost    = 10
	growth      = 1.3
	maxCost     = 3000
	costStepExp = 5
)

var costs, cumulative = buildCurve()

func buildCurve() ([]int64, []int64) {
	costs := make([]int64, MaxLevel+1)
	cumulative := make([]int64, MaxLevel+1)

	unrounded := float64(baseCost)
	costs[1] = baseCost
	cumulative[1] = baseCost
	for level := 2; level <= MaxLevel; level++ {
		cost := int64(math.Round(unrounded*growth/costStepExp)) * costStepExp
		if cost > maxCost {
			cost = maxCost
		}
		unrounded *= growth
		costs[level] = cost
		cumulative[level] = cumulative[level-1] + cost
	}
	return costs, cumulative
}

// LevelCost is the exp needed to finish the given level.
func LevelCost(level int) int64 {
	if level < 1 || level > MaxLevel {
		return 0
	}
	return costs[level]
}

// CumulativeCost is the exp needed to finish every level up to and including level.
func CumulativeCost(level int) int64 {
	if level < 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return cumulative[level]
}

// LevelOf returns the smallest level whose cumulative cost covers totalExp.
func LevelOf(totalExp int64) int {
	if totalExp > cumulative[MaxLevel] {
		return MaxLevel
	}
	i := sort.Search(MaxLevel, func(i int) bool { return cumulative[i+1] >= totalExp })
	return i + 1
}

// RequiredExp is the exp at which a level is reached, used for milestone
// roles.
func RequiredExp(level int) int64 {
	return CumulativeCost(level - 1)
}

// Progress describes how far exp has advanced into its level.
type Progress struct {
	Level   int
	Into    int64
	Needed  int64
	Percent float64
}

func ProgressOf(totalExp int64) Progress {
	level := LevelOf(totalExp)
	start := CumulativeCost(level - 1)
	needed := LevelCost(level)
	into := totalExp - start
	if into < 0 {
		into = 0
	}
	p := Progress{Level: level, Into: into, Needed: needed}
	if needed > 0 {
		p.Percent = math.Min(100, float64(into)*100/float64(needed))
	}
	return p
}
