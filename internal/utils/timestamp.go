// Package utils provides utility functions for the backup service.
package utils

import (
	"fmt"
	"strconv"
	"time"
)

// timestampLayout is an ISO-8601 instant with ':' and '.' replaced by '-'.
const timestampLayout = "2006-01-02T15-04-05"

// TimestampLen is the length of a formatted timestamp.
const TimestampLen = len("2006-01-02T15-04-05-000Z")

// FormatTimestamp renders t in UTC as 2006-01-02T15-04-05-000Z.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	// Format milliseconds manually to ensure 3 digits
	ms := t.Nanosecond() / int(time.Millisecond)
	return fmt.Sprintf("%s-%03dZ", t.Format(timestampLayout), ms)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) != TimestampLen || s[len(s)-1] != 'Z' || s[19] != '-' {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %q", s)
	}

	base, err := time.Parse(timestampLayout, s[:19])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}

	ms, err := strconv.Atoi(s[20:23])
	if err != nil || ms < 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp milliseconds: %q", s)
	}

	return base.Add(time.Duration(ms) * time.Millisecond).UTC(), nil
}
