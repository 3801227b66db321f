package standing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCalendar applies weekend rules plus a fixed holiday set.
type fakeCalendar struct {
	holidays map[string]struct{}
}

func newFakeCalendar(holidays ...string) *fakeCalendar {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h] = struct{}{}
	}
	return &fakeCalendar{holidays: set}
}

func (f *fakeCalendar) IsWorkingDay(_ context.Context, date time.Time) bool {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, blocked := f.holidays[date.Format(time.DateOnly)]
	return !blocked
}

func (f *fakeCalendar) NextWorkingDay(ctx context.Context, from time.Time) (time.Time, error) {
	day := from
	for i := 0; i < 60; i++ {
		day = day.AddDate(0, 0, 1)
		if f.IsWorkingDay(ctx, day) {
			return day, nil
		}
	}
	return time.Time{}, context.DeadlineExceeded
}

func (f *fakeCalendar) ProcessingDateFor(ctx context.Context, deliveryDate time.Time) (time.Time, error) {
	day := deliveryDate
	for i := 0; i < 60; i++ {
		day = day.AddDate(0, 0, -1)
		if f.IsWorkingDay(ctx, day) {
			return day, nil
		}
	}
	return time.Time{}, context.DeadlineExceeded
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvance(t *testing.T) {
	monday := date(2024, time.June, 3)

	assert.Equal(t, date(2024, time.June, 10), Advance(Weekly, monday))
	assert.Equal(t, date(2024, time.June, 17), Advance(BiWeekly, monday))
	// Monthly is a fixed four-week step, keeping the weekday.
	assert.Equal(t, date(2024, time.July, 1), Advance(Monthly, monday))
	assert.Equal(t, time.Monday, Advance(Monthly, monday).Weekday())
}

func TestShouldProcessImmediately(t *testing.T) {
	cal := newFakeCalendar()
	ctx := context.Background()

	// Delivery Monday 2024-06-03 processes on Friday 2024-05-31.
	monday := date(2024, time.June, 3)

	immediate, err := ShouldProcessImmediately(ctx, cal, monday, date(2024, time.May, 31))
	require.NoError(t, err)
	assert.True(t, immediate)

	immediate, err = ShouldProcessImmediately(ctx, cal, monday, date(2024, time.May, 30))
	require.NoError(t, err)
	assert.False(t, immediate)

	immediate, err = ShouldProcessImmediately(ctx, cal, monday, date(2024, time.June, 3))
	require.NoError(t, err)
	assert.True(t, immediate)
}

func TestDueForProcessing(t *testing.T) {
	delivery := date(2024, time.June, 3)
	processed := date(2024, time.June, 3)

	tests := []struct {
		name string
		so   StandingOrder
		day  time.Time
		want bool
	}{
		{
			name: "due when delivery date arrived and never processed",
			so:   StandingOrder{Active: true, NextDeliveryDate: delivery},
			day:  delivery,
			want: true,
		},
		{
			name: "due when delivery date passed",
			so:   StandingOrder{Active: true, NextDeliveryDate: delivery},
			day:  date(2024, time.June, 5),
			want: true,
		},
		{
			name: "not due before the delivery date",
			so:   StandingOrder{Active: true, NextDeliveryDate: delivery},
			day:  date(2024, time.June, 2),
			want: false,
		},
		{
			name: "inactive never due",
			so:   StandingOrder{Active: false, NextDeliveryDate: delivery},
			day:  delivery,
			want: false,
		},
		{
			name: "current occurrence already processed",
			so:   StandingOrder{Active: true, NextDeliveryDate: delivery, LastProcessedDate: &processed},
			day:  delivery,
			want: false,
		},
		{
			name: "processed for a previous occurrence still due",
			so: StandingOrder{
				Active:            true,
				NextDeliveryDate:  delivery,
				LastProcessedDate: ptrTime(date(2024, time.May, 27)),
			},
			day:  delivery,
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DueForProcessing(tt.so, tt.day))
		})
	}
}

func TestNextOccurrenceSkipsHolidayForProcessing(t *testing.T) {
	// Next delivery lands on Monday 2024-06-10; Friday 2024-06-07 is a
	// holiday, so processing falls back to Thursday.
	cal := newFakeCalendar("2024-06-07")
	so := StandingOrder{
		ID:               4,
		Frequency:        Weekly,
		NextDeliveryDate: date(2024, time.June, 3),
	}

	occ, err := NextOccurrence(context.Background(), cal, so)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.June, 3), occ.OccurrenceDate)
	assert.Equal(t, date(2024, time.June, 10), occ.NextDeliveryDate)
	assert.Equal(t, date(2024, time.June, 6), occ.NextProcessingDate)
}

func ptrTime(t time.Time) *time.Time { return &t }
