package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for Gregorian dates.
const DateLayout = "2006-01-02"

// weekdayLabels are indexed by time.Weekday (Sunday = 0).
var weekdayLabels = [7]string{"日", "一", "二", "三", "四", "五", "六"}

// WeekdayLabel returns the one-character Chinese weekday (日 for Sunday, 一 for Monday, ...).
func WeekdayLabel(date time.Time) string {
	return weekdayLabels[date.Weekday()]
}

// DateOf truncates t to midnight UTC of its own calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDateString parses a date string in YYYY-MM-DD format.
func ParseDateString(dateStr string) (time.Time, error) {
	t, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", dateStr, err)
	}
	return t, nil
}

// FormatDate formats a date as YYYY-MM-DD.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

// DaysBetween counts whole calendar days from start to end (negative if end is earlier).
func DaysBetween(start, end time.Time) int {
	return int(DateOf(end).Sub(DateOf(start)).Hours() / 24)
}
