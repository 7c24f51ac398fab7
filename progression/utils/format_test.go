package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{4845, "4,845"},
		{-1234567, "-1,234,567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in))
	}
}

func TestFormatSigned(t *testing.T) {
	assert.Equal(t, "+1,500", FormatSigned(1500))
	assert.Equal(t, "-20", FormatSigned(-20))
	assert.Equal(t, "0", FormatSigned(0))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░", ProgressBar(0, 100, 4))
	assert.Equal(t, "██░░", ProgressBar(50, 100, 4))
	assert.Equal(t, "████", ProgressBar(150, 100, 4))
	assert.Equal(t, "░░░░", ProgressBar(10, 0, 4))
	assert.Equal(t, "", ProgressBar(10, 10, 0))
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 16, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-17", FormatDate(ts, time.FixedZone("UTC+8", 8*3600)))
	assert.Equal(t, "-", FormatDate(time.Time{}, time.UTC))
}
