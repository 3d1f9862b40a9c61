package model

import "time"

// Timestamp literals used when a raw upstream value cannot be rendered.
const (
	TimestampMissing = "N/A"
	TimestampInvalid = "Invalid date"
)

// displayLayout renders timestamps the way the dashboard shows them,
// e.g. "Mar 1, 2024, 10:00".
const displayLayout = "Jan 2, 2006, 15:04"

// timestampLayouts are the formats the upstream API has been observed to
// emit. RFC 3339 first; the rest cover older records.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a raw upstream timestamp string. The second return
// value is false when the string is empty or matches none of the known
// layouts.
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders a raw upstream timestamp for display. Missing
// values become "N/A" and unparseable values become "Invalid date"; this
// function never fails.
func FormatTimestamp(raw string) string {
	if raw == "" {
		return TimestampMissing
	}
	t, ok := ParseTimestamp(raw)
	if !ok {
		return TimestampInvalid
	}
	return t.Format(displayLayout)
}
