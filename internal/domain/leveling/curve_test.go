package leveling

import "testing"

func TestCumulativeCost(t *testing.T) {
	tests := []struct {
		level int
		want  int64
	}{
		{0, 0},
		{1, 10},
		{2, 25},
		{3, 40},
		{4, 60},
		{5, 90},
		{9, 320},
		{14, 1285},
		{19, 4845},
		{24, 16675},
		{29, 31675},
		{MaxLevel, 5944675},
		{MaxLevel + 5, 5944675},
	}
	for _, tt := range tests {
		if got := CumulativeCost(tt.level); got != tt.want {
			t.Errorf("CumulativeCost(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestLevelCostIsCapped(t *testing.T) {
	for level := 1; level <= MaxLevel; level++ {
		cost := LevelCost(level)
		if cost > maxCost || cost%costStepExp != 0 {
			t.Fatalf("LevelCost(%d) = %d, want a multiple of 5 not above %d", level, cost, maxCost)
		}
	}
	if got := LevelCost(MaxLevel); got != maxCost {
		t.Errorf("LevelCost(MaxLevel) = %d, want %d", got, maxCost)
	}
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		name string
		exp  int64
		want int
	}{
		{"no exp", 0, 1},
		{"inside first level", 5, 1},
		{"exactly first cumulative", 10, 1},
		{"just past first", 11, 2},
		{"exactly 320", 320, 9},
		{"past 320", 321, 10},
		{"4845", 4845, 19},
		{"4846", 4846, 20},
		{"whole table", 5944675, MaxLevel},
		{"beyond table", 9999999999, MaxLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelOf(tt.exp); got != tt.want {
				t.Errorf("LevelOf(%d) = %d, want %d", tt.exp, got, tt.want)
			}
		})
	}
}

func TestLevelOfMonotonic(t *testing.T) {
	prev := LevelOf(0)
	for exp := int64(1); exp < 50000; exp += 7 {
		got := LevelOf(exp)
		if got < prev {
			t.Fatalf("LevelOf(%d) = %d dropped below %d", exp, got, prev)
		}
		prev = got
	}
}

func TestRequiredExp(t *testing.T) {
	tests := map[int]int64{1: 0, 5: 60, 10: 320, 15: 1285, 20: 4845, 25: 16675, 30: 31675, 35: 46675}
	for level, want := range tests {
		if got := RequiredExp(level); got != want {
			t.Errorf("RequiredExp(%d) = %d, want %d", level, got, want)
		}
	}
}

func TestProgressOf(t *testing.T) {
	p := ProgressOf(30)
	if p.Level != 3 || p.Into != 5 || p.Needed != 15 {
		t.Errorf("ProgressOf(30) = %+v, want level 3, 5 of 15", p)
	}
}

func TestRankNameOf(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{0, UnqualifiedRank},
		{1, "Novice"},
		{4, "Novice"},
		{5, "Apprentice"},
		{199, "Endless Legend"},
		{200, "Surely Not Human"},
		{MaxLevel, "Surely Not Human"},
		{-3, UnrankedRank},
	}
	for _, tt := range tests {
		if got := RankNameOf(tt.level); got != tt.want {
			t.Errorf("RankNameOf(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestDisplayLevel(t *testing.T) {
	if got := DisplayLevel(400, []string{"q"}, []string{"other"}); got != 0 {
		t.Errorf("DisplayLevel() without qualifying role = %d, want 0", got)
	}
	if got := DisplayLevel(400, []string{"q"}, []string{"q"}); got != LevelOf(400) {
		t.Errorf("DisplayLevel() with qualifying role = %d, want %d", got, LevelOf(400))
	}
	if got := DisplayLevel(400, nil, nil); got != LevelOf(400) {
		t.Errorf("DisplayLevel() without requirement = %d, want %d", got, LevelOf(400))
	}
}
