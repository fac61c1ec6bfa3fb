package leave

import (
	"errors"
	"time"
)

// ErrEndBeforeStart is returned when a request's date range is inverted.
var ErrEndBeforeStart = errors.New("end date precedes start date")

// Day truncates a timestamp to its civil day at UTC midnight. All date
// arithmetic in this package operates on civil days.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BusinessDays counts working days between start and end inclusive,
// skipping Saturdays, Sundays, and the provided holidays.
func BusinessDays(start, end time.Time, holidays []time.Time) (int, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return 0, ErrEndBeforeStart
	}

	skip := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		skip[Day(h)] = struct{}{}
	}

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if _, ok := skip[d]; ok {
			continue
		}
		days++
	}
	return days, nil
}

// YearBounds returns the first and last civil day of a calendar year,
// used to scope balance queries.
func YearBounds(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
