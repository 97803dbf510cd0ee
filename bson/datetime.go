package bson

import (
	"fmt"
	"time"
)

// DateTimeLayout is the rendering of BSON date-times: always UTC, exactly
// three fractional digits and a literal Z.
const DateTimeLayout = "2006-01-02T15:04:05.000Z"

// FormatDateTime renders milliseconds since the Unix epoch, e.g.
// 2023-01-12T13:14:15.678Z. The local time zone is never consulted.
func FormatDateTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateTimeLayout)
}

// ParseDateTime parses an RFC 3339 timestamp, with or without fractional
// seconds and with Z or a numeric offset, into milliseconds since the epoch.
func ParseDateTime(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("bson: invalid date-time %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}
