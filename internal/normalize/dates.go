// Package normalize holds the pure helpers shared by provider parsers and
// the query layer: calendar dates, JSON embedded in markdown, prize
// amounts, URLs and the metadata WHERE builder.
package normalize

import (
	"regexp"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format of stored records.
const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	DateLayout,
}

// CalendarDate reduces an ISO-8601 timestamp to its UTC calendar date.
// Unparseable input yields "".
func CalendarDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(DateLayout)
		}
	}
	return ""
}

// EpochDate converts a unix timestamp to a calendar date. Values above 1e11
// are taken as milliseconds.
func EpochDate(v float64) string {
	if v <= 0 {
		return ""
	}
	if v > 1e11 {
		return time.UnixMilli(int64(v)).UTC().Format(DateLayout)
	}
	return time.Unix(int64(v), 0).UTC().Format(DateLayout)
}

// Today returns the calendar date of now in UTC.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

var (
	monthToken   = regexp.MustCompile(`^[A-Za-z]+\.?$`)
	trailingYear = regexp.MustCompile(`(?:,\s)?(\d{4})$`)
)

// RepairPeriod injects the start month into a submission period whose end
// date lacks one: "Jan 5 - 20, 2024" becomes "Jan 5 - Jan 20, 2024".
// Anything else is returned unchanged.
func RepairPeriod(period string) string {
	parts := strings.Split(period, " - ")
	if len(parts) != 2 {
		return period
	}
	start, end := strings.Fields(parts[0]), strings.Fields(parts[1])
	if len(start) == 0 || len(end) == 0 {
		return period
	}
	if !monthToken.MatchString(start[0]) || monthToken.MatchString(end[0]) {
		return period
	}
	return parts[0] + " - " + start[0] + " " + strings.TrimSpace(parts[1])
}

// ParsePeriod splits a submission period such as "Jan 5 - 20, 2024" or
// "Dec 15, 2023 - Jan 20, 2024" into canonical start and end dates. Shapes it
// does not recognize, a lone date included, yield "", "".
func ParsePeriod(period string) (start, end string) {
	repaired := RepairPeriod(strings.TrimSpace(period))
	m := trailingYear.FindStringSubmatch(repaired)
	if m == nil {
		return "", ""
	}
	year := m[1]
	i := strings.LastIndex(repaired, ",")
	if i < 0 {
		return "", ""
	}
	parts := strings.Split(repaired[:i], " - ")
	if len(parts) != 2 {
		return "", ""
	}
	return monthDay(parts[0], year), monthDay(parts[1], year)
}

var monthDayLayouts = []string{"Jan 2, 2006", "January 2, 2006", "Jan. 2, 2006"}

// monthDay parses "Jan 5" with the given year, or "Dec 15, 2023" with its own.
func monthDay(s, year string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ",") {
		s += ", " + year
	}
	if l := strings.ToLower(s); strings.HasPrefix(l, "sept ") || strings.HasPrefix(l, "sept.") {
		s = s[:3] + s[4:]
	}
	for _, layout := range monthDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}
	return ""
}
