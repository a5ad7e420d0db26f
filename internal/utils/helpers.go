package utils

import (
	"time"
)

// StrOrEmpty flattens optional string columns for wire responses.
func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to v, for optional fields built from literals.
func Ptr[T any](v T) *T {
	return &v
}

// FormatTimestamp renders timestamps the way job responses carry them.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// ParseYMD parses a calendar date, stripped to midnight UTC to match
// DATE column semantics.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
