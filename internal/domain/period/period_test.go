package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestClock_Day(t *testing.T) {
	loc := newYork(t)
	c := NewClock(loc)

	// 02:30 UTC on the 11th is still the 10th in New York.
	start, end := c.Day(time.Date(2024, 3, 11, 2, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), end)
	assert.True(t, c.SameDay(start, end.Add(-time.Nanosecond)))
	assert.False(t, c.SameDay(start, end))
}

func TestClock_DrawPeriod(t *testing.T) {
	loc := newYork(t)
	c := NewClock(loc)

	tests := []struct {
		name      string
		at        time.Time
		wantStart time.Time
	}{
		{"after the 17th", time.Date(2024, 5, 20, 12, 0, 0, 0, loc), time.Date(2024, 5, 17, 0, 0, 0, 0, loc)},
		{"on the 17th", time.Date(2024, 5, 17, 0, 0, 0, 0, loc), time.Date(2024, 5, 17, 0, 0, 0, 0, loc)},
		{"before the 17th", time.Date(2024, 5, 16, 23, 59, 0, 0, loc), time.Date(2024, 4, 17, 0, 0, 0, 0, loc)},
		{"january wraps", time.Date(2024, 1, 3, 8, 0, 0, 0, loc), time.Date(2023, 12, 17, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := c.DrawPeriod(tt.at)
			assert.True(t, start.Equal(tt.wantStart), "start = %v", start)
			assert.True(t, end.Equal(tt.wantStart.AddDate(0, 1, 0)), "end = %v", end)
		})
	}
}

func TestClock_NextAt(t *testing.T) {
	loc := newYork(t)
	c := NewClock(loc)

	next, err := c.NextAt(time.Date(2024, 6, 1, 12, 0, 0, 0, loc), "23:55")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 23, 55, 0, 0, loc), next)

	next, err = c.NextAt(time.Date(2024, 6, 1, 23, 55, 0, 0, loc), "23:55")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 2, 23, 55, 0, 0, loc), next)

	_, err = c.NextAt(time.Now(), "noon")
	assert.Error(t, err)
}

func TestClock_PreviousMonth(t *testing.T) {
	loc := newYork(t)
	c := NewClock(loc)

	start, end := c.PreviousMonth(time.Date(2024, 3, 1, 0, 5, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), end)
}
