package stats

import "time"

const dateFormat = "2006-01-02"

// WeekBounds returns the Monday and Sunday of the week containing d.
func WeekBounds(d time.Time) (time.Time, time.Time) {
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// MonthBounds returns the first and last day of the month containing d.
func MonthBounds(d time.Time) (time.Time, time.Time) {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	return first, first.AddDate(0, 1, -1)
}
