package heuristics

import (
	"regexp"
	"strings"
	"time"
)

// deadlinePatterns capture the date portion of common deadline
// phrasings, most specific first. Numeric dates are day-first.
var deadlinePatterns = []*regexp.Regexp{
	// "deadline: 15 March 2025", "due date: 15/03/2025"
	regexp.MustCompile(`(?:deadline|due\s*date|last\s*date|submit\s*(?:by|before)|on\s*or\s*before)[:\s]+(\d{1,2}[\s/\-.]\w+[\s/\-.]\d{2,4})`),
	// "by 15th March 2025", "before March 15, 2025"
	regexp.MustCompile(`(?:by|before|on\s+or\s+before)\s+(\d{1,2}(?:st|nd|rd|th)?\s+\w+\s+\d{2,4})`),
	regexp.MustCompile(`(?:by|before|on\s+or\s+before)\s+(\w+\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{2,4})`),
	// "15/03/2025", "15-03-2025", "2025-03-15"
	regexp.MustCompile(`(\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2})`),
	regexp.MustCompile(`(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`),
	// "March 15, 2025", "15 March 2025"
	regexp.MustCompile(`(\d{1,2}(?:st|nd|rd|th)?\s+(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4})`),
	regexp.MustCompile(`((?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})`),
}

var ordinalSuffix = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)`)

// dateLayouts are tried in order against a normalized candidate.
var dateLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
}

// ExtractDeadline scans free text for a deadline date. The second
// return is false when no parseable date is found.
func ExtractDeadline(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}

	lower := strings.ToLower(text)
	for _, pattern := range deadlinePatterns {
		match := pattern.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		candidate := ordinalSuffix.ReplaceAllString(match[1], "$1")
		candidate = strings.Join(strings.Fields(candidate), " ")
		if ts, ok := parseDate(candidate); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseDate(candidate string) (time.Time, bool) {
	// Month names must be title-cased for time.Parse.
	titled := titleMonths(candidate)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, titled); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december",
}

func titleMonths(s string) string {
	for _, m := range monthNames {
		if strings.Contains(s, m) {
			s = strings.ReplaceAll(s, m, strings.ToUpper(m[:1])+m[1:])
		}
	}
	return s
}
