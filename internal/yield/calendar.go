package yield

import "time"

// BusinessDays counts Monday-to-Friday calendar dates after from's date up
// to and including to's date, both taken in loc. Returns 0 when to is not
// after from on the calendar.
func BusinessDays(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	start := dateOf(from.In(loc))
	end := dateOf(to.In(loc))

	n := int(end.Sub(start).Hours() / 24)
	if n <= 0 {
		return 0
	}

	weeks := n / 7
	count := weeks * 5
	for d := start.AddDate(0, 0, weeks*7+1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if isWeekday(d) {
			count++
		}
	}
	return count
}

// dateOf pins the calendar date to UTC midnight so day arithmetic ignores DST.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
