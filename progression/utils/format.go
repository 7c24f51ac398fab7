package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	if n < 0 {
		str = str[1:]
	}

	var result []byte
	for i := len(str) - 1; i >= 0; i-- {
		if (len(str)-i-1)%3 == 0 && i != len(str)-1 {
			result = append([]byte{','}, result...)
		}
		result = append([]byte{str[i]}, result...)
	}

	if n < 0 {
		return "-" + string(result)
	}
	return string(result)
}

// FormatSigned renders a balance delta with an explicit sign.
func FormatSigned(n int64) string {
	if n > 0 {
		return "+" + FormatNumber(n)
	}
	return FormatNumber(n)
}

// ProgressBar draws width cells filled in proportion to current/total.
func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = int(current * int64(width) / total)
	}
	filled = max(0, min(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// FormatDate renders t as a calendar day in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02")
}

// Timestamp renders a Discord relative timestamp.
func Timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

func Ptr[T any](v T) *T {
	return &v
}
