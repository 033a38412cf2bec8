// Package datenorm converts the date formats found in bank statements to YYYY-MM-DD.
package datenorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical output format.
const Layout = "2006-01-02"

const dayMonthYearLayout = "02/01/2006"

var longMonths = map[string]int{
	"january":   1,
	"february":  2,
	"march":     3,
	"april":     4,
	"may":       5,
	"june":      6,
	"july":      7,
	"august":    8,
	"september": 9,
	"october":   10,
	"november":  11,
	"december":  12,
}

var shortMonths = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var (
	isoPattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	longPattern      = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{4})\b`)
	shortPattern     = regexp.MustCompile(`\b([A-Za-z]{3})\s+(\d{1,2}),\s*(\d{4})\b`)
	timestampPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[ T]\d{2}:\d{2}:\d{2}`)
)

// Normalize returns raw as YYYY-MM-DD when it matches a known format.
// Formats are tried in order and the first match wins:
//
//	2025-12-25
//	25/12/2025
//	21 November 2025 , 02:37am   (time discarded)
//	Nov 21, 2025
//	2025-12-25 14:03:00          (time discarded)
//
// Anything else is returned unchanged.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)

	if isoPattern.MatchString(s) {
		return s
	}

	if t, err := time.Parse(dayMonthYearLayout, s); err == nil {
		return t.Format(Layout)
	}

	if m := longPattern.FindStringSubmatch(s); m != nil {
		if out, ok := build(m[3], longMonths[strings.ToLower(m[2])], m[1]); ok {
			return out
		}
	}

	if m := shortPattern.FindStringSubmatch(s); m != nil {
		if month, ok := shortMonths[strings.ToLower(m[1])]; ok {
			if out, ok := build(m[3], month, m[2]); ok {
				return out
			}
		}
	}

	if m := timestampPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	return raw
}

// Parse normalizes raw and parses the result as a calendar date.
func Parse(raw string) (time.Time, error) {
	t, err := time.Parse(Layout, Normalize(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", raw, err)
	}
	return t, nil
}

func build(year string, month int, day string) (string, bool) {
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 || month == 0 {
		return "", false
	}
	return fmt.Sprintf("%s-%02d-%02d", year, month, d), true
}
