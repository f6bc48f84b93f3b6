package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseableDate is returned when no known date form matches.
var ErrUnparseableDate = errors.New("unparseable date")

// fixedPatterns are tried first, in order. A four-digit first group is the year.
var fixedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`),
	regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`),
	regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`),
	regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})`),
}

// looseLayouts are tried when no fixed pattern matches. Numeric forms are day-first.
var looseLayouts = []string{
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"02 Jan 06",
	"02 January 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-1-2006",
	"2/1/2006",
	"02.01.2006",
	"2.1.2006",
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a statement date into a UTC calendar date.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(strings.Trim(raw, `"'`))
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrUnparseableDate)
	}

	for _, re := range fixedPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		y, mo, d := m[3], m[2], m[1]
		if len(m[1]) == 4 {
			y, d = m[1], m[3]
		}
		if t, ok := calendarDate(y, mo, d); ok {
			return t, nil
		}
	}

	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, raw)
}

// DateOnly truncates t to midnight UTC on the same calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// calendarDate builds a date and rejects values time.Date would normalize (31-02).
func calendarDate(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
