package timeutil

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DisplayLayout renders timestamps as "2025-07-14 18:03:22 UTC".
const DisplayLayout = "2006-01-02 15:04:05 UTC"

// Format renders t in UTC with layout, falling back to DisplayLayout.
func Format(t time.Time, layout string) string {
	if layout == "" {
		layout = DisplayLayout
	}
	return t.UTC().Format(layout)
}

// FormatStored re-renders an RFC3339 timestamp read from the store.
// Unparseable input is returned unchanged.
func FormatStored(value, layout string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return Format(t, layout)
}

// RetentionCutoff returns the start of the UTC day that is days before now.
func RetentionCutoff(now time.Time, days int) time.Time {
	n := now.UTC()
	day := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -days)
}

var errEmptyDuration = errors.New("empty duration")

const (
	oneDay = 24 * time.Hour
	// maxDays is the largest day count a time.Duration can hold.
	maxDays = math.MaxInt64 / int64(oneDay)
)

// ParseDuration accepts Go durations plus a "d" suffix for days,
// e.g. "30s", "10m", "1h30m", "2d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, errEmptyDuration
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		if int64(n) > maxDays {
			return 0, fmt.Errorf("day count %q out of range", s)
		}
		return time.Duration(n) * oneDay, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Humanize renders d as "3d 4h 5m", dropping leading zero units.
// Durations under a minute render as seconds.
func Humanize(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}
