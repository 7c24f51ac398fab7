package quests

import (
	"regexp"
	"strconv"
	"time"
)

// DefaultDuration applies when a quest is published without a readable
// duration.
const DefaultDuration = 30 * 24 * time.Hour

var durationPattern = regexp.MustCompile(`^(?:(\d+)w)?(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

var durationUnits = [...]time.Duration{
	7 * 24 * time.Hour,
	24 * time.Hour,
	time.Hour,
	time.Minute,
	time.Second,
}

// ParseDuration reads durations such as "1w2d3h4m5s". Every unit is
// optional but they must appear in that order.
func ParseDuration(text string) (time.Duration, bool) {
	match := durationPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}

	var total time.Duration
	for i, part := range match[1:] {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, false
		}
		total += time.Duration(n) * durationUnits[i]
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}

// DurationOrDefault falls back to DefaultDuration for unreadable input.
func DurationOrDefault(text string) time.Duration {
	if d, ok := ParseDuration(text); ok {
		return d
	}
	return DefaultDuration
}
