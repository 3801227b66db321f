package standing

import (
	"context"
	"time"

	"github.com/packhouse-erp/packhouse-erp/internal/calendar"
)

// WorkingCalendar is the slice of the business calendar the scheduler needs.
type WorkingCalendar interface {
	IsWorkingDay(ctx context.Context, date time.Time) bool
	NextWorkingDay(ctx context.Context, from time.Time) (time.Time, error)
	ProcessingDateFor(ctx context.Context, deliveryDate time.Time) (time.Time, error)
}

// Advance returns the delivery date one cadence step after from. All
// cadences are whole weeks so the weekday never drifts.
func Advance(f Frequency, from time.Time) time.Time {
	switch f {
	case BiWeekly:
		return from.AddDate(0, 0, 14)
	case Monthly:
		return from.AddDate(0, 0, 28)
	default:
		return from.AddDate(0, 0, 7)
	}
}

// ShouldProcessImmediately reports whether the processing window for a
// delivery date has already arrived or passed, in which case a freshly
// created standing order materializes right away instead of waiting for the
// next scheduled run.
func ShouldProcessImmediately(ctx context.Context, cal WorkingCalendar, deliveryDate, now time.Time) (bool, error) {
	processingDate, err := cal.ProcessingDateFor(ctx, deliveryDate)
	if err != nil {
		return false, err
	}
	return !processingDate.After(calendar.DateOnly(now)), nil
}

// DueForProcessing is the idempotency gate for the daily run: active, the
// delivery date has arrived, and the current occurrence has not been
// processed yet.
func DueForProcessing(so StandingOrder, today time.Time) bool {
	if !so.Active {
		return false
	}
	day := calendar.DateOnly(today)
	if calendar.DateOnly(so.NextDeliveryDate).After(day) {
		return false
	}
	if so.LastProcessedDate == nil {
		return true
	}
	return so.LastProcessedDate.Before(calendar.DateOnly(so.NextDeliveryDate))
}

// NextOccurrence builds the occurrence record for the template's upcoming
// delivery, with the schedule advanced one step and the new processing date
// resolved against the calendar.
func NextOccurrence(ctx context.Context, cal WorkingCalendar, so StandingOrder) (Occurrence, error) {
	nextDelivery := Advance(so.Frequency, calendar.DateOnly(so.NextDeliveryDate))
	nextProcessing, err := cal.ProcessingDateFor(ctx, nextDelivery)
	if err != nil {
		return Occurrence{}, err
	}
	return Occurrence{
		StandingOrderID:    so.ID,
		OccurrenceDate:     calendar.DateOnly(so.NextDeliveryDate),
		NextDeliveryDate:   nextDelivery,
		NextProcessingDate: nextProcessing,
	}, nil
}
