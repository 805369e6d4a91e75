package utils

import (
	"strings"
	"time"
)

const (
	LayoutDate     = "2006-01-02"
	LayoutTime     = "15:04:05"
	LayoutDateTime = "2006-01-02 15:04:05"
)

// ParseDate parses YYYY-MM-DD in loc (time.Local when nil).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(LayoutDate, strings.TrimSpace(s), loc)
}

// NormalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func NormalizeClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{LayoutTime, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(LayoutTime), true
		}
	}
	return "", false
}

// FormatDate formats t as YYYY-MM-DD in its own location.
func FormatDate(t time.Time) string {
	return t.Format(LayoutDate)
}

func FormatClock(t time.Time) string {
	return t.Format(LayoutTime)
}

// FormatDateTime formats t as "YYYY-MM-DD HH:MM:SS" in loc (t's own when nil).
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(LayoutDateTime)
}
