// Package normalize turns loosely formatted scraped values into the
// comparable forms the rest of the pipeline works with.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeRe = regexp.MustCompile(`(\d+)\+?\s*(minutes?|mins?|hours?|hrs?|days?|weeks?|months?)\s+ago`)

	nowPhrases = []string{"just posted", "just now", "active today", "today", "moments ago"}

	absoluteLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
	}
)

// ParseDate resolves raw against now. Input that cannot be understood,
// including compact forms like "3d", resolves to now.
func ParseDate(raw string, now time.Time) time.Time {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return now
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t
		}
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil && n > 0 {
		// Millisecond timestamps have 13 digits for any date after 2001.
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}

	if match := relativeRe.FindStringSubmatch(text); match != nil {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			return now
		}
		return now.Add(-time.Duration(n) * unitDuration(match[2]))
	}

	if strings.Contains(text, "yesterday") {
		return now.Add(-24 * time.Hour)
	}
	for _, phrase := range nowPhrases {
		if strings.Contains(text, phrase) {
			return now
		}
	}

	return now
}

func unitDuration(unit string) time.Duration {
	switch {
	case strings.HasPrefix(unit, "min"):
		return time.Minute
	case strings.HasPrefix(unit, "h"):
		return time.Hour
	case strings.HasPrefix(unit, "day"):
		return 24 * time.Hour
	case strings.HasPrefix(unit, "week"):
		return 7 * 24 * time.Hour
	case strings.HasPrefix(unit, "month"):
		return 30 * 24 * time.Hour
	}
	return 0
}
