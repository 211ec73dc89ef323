package api

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

var nowMinusPattern = regexp.MustCompile(`(?i)^\s*now\s*-`)
var durationPattern = regexp.MustCompile(`(?i)^(\d+)\s*(h|hr|hrs|hour|hours|m|min|mins|minute|minutes|d|day|days)$`)

// parseTimeParam accepts an absolute RFC3339 timestamp, a "now"/"now-<duration>"
// expression (e.g. "now-2h", "now-30m", "now-1d"), or any human-readable date
// go-dateparser understands ("yesterday", "2 hours ago", "last week", ...),
// matching the original query API's supported time-range syntax. Anything it
// can't parse falls back to fallback rather than erroring the request.
func parseTimeParam(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	if raw == "now" {
		return time.Now().UTC()
	}

	trimmed := strings.TrimSpace(raw)
	if nowMinusPattern.MatchString(trimmed) {
		if t, ok := parseNowMinusDuration(trimmed); ok {
			return t
		}
		return fallback
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{PreferredDateSource: dps.CurrentPeriod}
	parsed, err := parser.Parse(cfg, raw)
	if err != nil || parsed.IsZero() {
		return fallback
	}
	return parsed.Time.UTC()
}

// parseNowMinusDuration parses the "now-<duration>" shorthand (e.g.
// "now-2h", "now-30m", "now-1d"). This composite format is not itself a
// human-readable date, so it is handled ahead of go-dateparser rather than
// delegated to it.
func parseNowMinusDuration(input string) (time.Time, bool) {
	pattern := regexp.MustCompile(`(?i)^\s*now\s*-\s*(.+)$`)
	matches := pattern.FindStringSubmatch(input)
	if len(matches) != 2 {
		return time.Time{}, false
	}

	durationStr := strings.TrimSpace(matches[1])
	durationMatches := durationPattern.FindStringSubmatch(durationStr)
	if len(durationMatches) != 3 {
		return time.Time{}, false
	}

	amount, err := strconv.ParseInt(durationMatches[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}

	unit := strings.ToLower(durationMatches[2])
	now := time.Now().UTC()

	switch {
	case strings.HasPrefix(unit, "h"):
		return now.Add(-time.Duration(amount) * time.Hour), true
	case strings.HasPrefix(unit, "m"):
		return now.Add(-time.Duration(amount) * time.Minute), true
	case strings.HasPrefix(unit, "d"):
		return now.AddDate(0, 0, -int(amount)), true
	default:
		return time.Time{}, false
	}
}
