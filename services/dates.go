package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativeDateRegexp matches phrases like "3 days ago" or "1 Hour ago".
var relativeDateRegexp = regexp.MustCompile(`(\d+)\s*(minute|hour|day|week|month)s?\s*ago`)

// ResolveRelativeDate converts a "N units ago" phrase to an absolute
// YYYY-MM-DD date relative to now. Months approximate to 30 days.
// Input that doesn't match the pattern is returned unchanged — callers
// detect "unresolved" by equality with the input.
func ResolveRelativeDate(raw string, now time.Time) string {
	if raw == "" {
		return ""
	}

	normalized := strings.ToLower(strings.TrimSpace(raw))
	m := relativeDateRegexp.FindStringSubmatch(normalized)
	if m == nil {
		return raw
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return raw
	}

	var d time.Duration
	switch m[2] {
	case "minute":
		d = time.Duration(n) * time.Minute
	case "hour":
		d = time.Duration(n) * time.Hour
	case "day":
		d = time.Duration(n) * 24 * time.Hour
	case "week":
		d = time.Duration(n) * 7 * 24 * time.Hour
	case "month":
		d = time.Duration(n) * 30 * 24 * time.Hour
	default:
		return raw
	}

	return now.Add(-d).Format("2006-01-02")
}
