package store

import (
	"time"

	"github.com/relvacode/iso8601"
)

// canonicalLayout matches the UTC millisecond form returned to clients,
// e.g. 2021-09-29T15:09:15.000Z.
const canonicalLayout = "2006-01-02T15:04:05.000Z"

// NormalizeTimestamp converts an ISO-8601 date-time with an offset into UTC
// epoch milliseconds. Sub-millisecond precision is truncated. The second
// return value is false when s cannot be parsed.
func NormalizeTimestamp(s string) (int64, bool) {
	t, err := iso8601.ParseString(s)
	if err != nil {
		return 0, false
	}
	return t.UTC().UnixMilli(), true
}

// FormatInstant renders an epoch-millisecond instant in canonical UTC form.
func FormatInstant(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(canonicalLayout)
}
