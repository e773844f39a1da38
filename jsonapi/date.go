package jsonapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate parses a "YYYY-MM-DD" attribute into midnight of that day in loc.
// Out-of-range components are rejected instead of rolled over, so "2024-02-30"
// is an error rather than March 1st.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return time.Time{}, fmt.Errorf("jsonapi: date %q: want YYYY-MM-DD", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("jsonapi: date %q: year: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("jsonapi: date %q: month: %w", s, err)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("jsonapi: date %q: month %d out of range", s, month)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("jsonapi: date %q: day: %w", s, err)
	}
	if day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, fmt.Errorf("jsonapi: date %q: day %d out of range", s, day)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), nil
}

// FormatDate renders t the way the backend transmits dates.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

func daysIn(m time.Month, year int) int {
	// day 0 of the next month is the last day of m
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
