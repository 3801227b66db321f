// Package calendar decides which days the warehouse works and derives
// delivery/processing dates from that.
package calendar

import (
	"errors"
	"time"
)

// ErrCalendarExhausted indicates no working day was found within the search
// horizon. This points at a misconfigured non-working-day list.
var ErrCalendarExhausted = errors.New("calendar: no working day within search horizon")

// DefaultHorizonDays bounds working-day searches.
const DefaultHorizonDays = 60

// NonWorkingDay is a configured calendar exception on top of weekends.
type NonWorkingDay struct {
	ID          int64     `json:"id"`
	Day         time.Time `json:"day"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// DateOnly truncates a timestamp to its calendar date in UTC. All calendar
// comparisons ignore time-of-day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string {
	return DateOnly(t).Format("2006-01-02")
}

func isWeekend(t time.Time) bool {
	wd := DateOnly(t).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
