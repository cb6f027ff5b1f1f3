package timeparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agis/unical/internal/contract"
)

func ParseDateTime(input string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	switch s {
	case "today":
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case "tomorrow":
		v, _ := ParseDateTime("today", now, loc)
		return v.AddDate(0, 0, 1), nil
	case "yesterday":
		v, _ := ParseDateTime("today", now, loc)
		return v.AddDate(0, 0, -1), nil
	}

	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		sign := 1
		if strings.HasPrefix(s, "-") {
			sign = -1
		}
		raw := strings.TrimPrefix(strings.TrimPrefix(s, "+"), "-")
		if strings.HasSuffix(raw, "d") {
			n, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid relative day: %s", input)
			}
			v, _ := ParseDateTime("today", now, loc)
			return v.AddDate(0, 0, sign*n), nil
		}
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, input, loc); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported datetime format: %s", input)
}

// ParseDay resolves input to the calendar day it falls on in loc.
func ParseDay(input string, now time.Time, loc *time.Location) (contract.Date, error) {
	if strings.TrimSpace(input) == "" {
		input = "today"
	}
	ts, err := ParseDateTime(input, now, loc)
	if err != nil {
		return contract.Date{}, err
	}
	return contract.DateOf(ts.In(loc)), nil
}

// ParseMonth accepts YYYY-MM, "this", "next", "prev"/"last", or anything
// ParseDateTime accepts, and returns the first day of that month in loc.
func ParseMonth(input string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	y, m, _ := now.In(loc).Date()
	current := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	switch s {
	case "", "this", "today":
		return current, nil
	case "next":
		return current.AddDate(0, 1, 0), nil
	case "prev", "last":
		return current.AddDate(0, -1, 0), nil
	}
	if ts, err := time.ParseInLocation("2006-01", s, loc); err == nil {
		return ts, nil
	}
	ts, err := ParseDateTime(input, now, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported month format: %s", input)
	}
	y, m, _ = ts.In(loc).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, loc), nil
}

// ParseClock reads HH:MM and returns it on day in loc.
func ParseClock(input string, day contract.Date, loc *time.Location) (time.Time, error) {
	ts, err := time.Parse("15:04", strings.TrimSpace(input))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use HH:MM", input)
	}
	return time.Date(day.Year, day.Month, day.Day, ts.Hour(), ts.Minute(), 0, 0, loc), nil
}
