package utils

import "time"

// DateLayout is the YYYY-MM-DD layout used by the market-data proxy.
const DateLayout = "2006-01-02"

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// FloorTo returns the start of the step-aligned slot containing t, measured
// from local midnight in loc. step must divide 24h evenly.
func FloorTo(t time.Time, step time.Duration, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	since := t.Sub(day)
	return day.Add(since - since%step)
}

// FormatDate renders the calendar date of t in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}
