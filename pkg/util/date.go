package util

import (
	"strconv"
	"time"

	"historyvault/internal/domain/models"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true)
// if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignRange rounds both ends of a range down to interval boundaries.
// Tick and Custom intervals pass through unchanged.
func AlignRange(from, to time.Time, iv models.Interval) (time.Time, time.Time) {
	if f, err := iv.Align(from); err == nil {
		from = f
	}
	if t, err := iv.Align(to); err == nil {
		to = t
	}
	return from, to
}

// EndOfDay returns the last tick of t's calendar day in UTC.
func EndOfDay(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(24*time.Hour - models.Tick)
}
