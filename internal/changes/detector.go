// Package changes classifies configuration changes that invalidate
// materialized availability.
package changes

import (
	"fmt"
	"strings"
	"time"

	"reservo/internal/model"
)

// Detect compares the previous and next settings and returns the first
// availability-impacting difference, or nil when regeneration is not needed.
// Hours changes take priority over every policy change.
func Detect(prev, next model.Settings) *model.ChangeEvent {
	horizon := next.Policy.Horizon()

	if days := changedDays(prev.Hours, next.Hours); len(days) > 0 {
		return &model.ChangeEvent{
			Reason:      model.ReasonBusinessHoursChanged,
			Details:     "hours changed on " + strings.Join(days, ", "),
			AdvanceDays: horizon,
		}
	}

	if prev.Policy.Horizon() != horizon {
		return &model.ChangeEvent{
			Reason:      model.ReasonAvailabilitySettingsChanged,
			Details:     fmt.Sprintf("advance days %d -> %d", prev.Policy.Horizon(), horizon),
			AdvanceDays: horizon,
		}
	}

	prevMin, nextMin := prev.Policy.EffectiveMinAdvanceMinutes(), next.Policy.EffectiveMinAdvanceMinutes()
	if prevMin != nextMin {
		return &model.ChangeEvent{
			Reason:      model.ReasonAvailabilitySettingsChanged,
			Details:     fmt.Sprintf("minimum advance %d -> %d minutes", prevMin, nextMin),
			AdvanceDays: horizon,
		}
	}

	if stripWindow(prev.Policy) != stripWindow(next.Policy) {
		return &model.ChangeEvent{
			Reason:      model.ReasonBookingPolicyChanged,
			Details:     "booking policy changed",
			AdvanceDays: horizon,
		}
	}

	return nil
}

// stripWindow clears the fields already covered by the availability checks
// so the remaining comparison only sees the rest of the policy.
func stripWindow(p model.BookingPolicy) model.BookingPolicy {
	p.AdvanceDays = 0
	p.MinAdvanceMinutes = nil
	p.MinBookingHours = nil
	return p
}

func changedDays(prev, next model.WeeklySchedule) []string {
	if prev.Equal(next) {
		return nil
	}
	a, b := prev.Normalize(), next.Normalize()
	var days []string
	for _, key := range model.DayKeys {
		da, okA := a[key]
		db, okB := b[key]
		if okA != okB || !da.Equal(db) {
			days = append(days, key)
		}
	}
	if len(days) == 0 {
		// Only unknown keys differ.
		days = append(days, "schedule")
	}
	return days
}

// SpecialEventKind is the lifecycle step of a calendar exception.
type SpecialEventKind int

const (
	SpecialEventCreated SpecialEventKind = iota
	SpecialEventClosed
	SpecialEventDeleted
)

// Reason is the change reason reported for the kind.
func (k SpecialEventKind) Reason() model.ChangeReason {
	switch k {
	case SpecialEventClosed:
		return model.ReasonSpecialEventClosed
	case SpecialEventDeleted:
		return model.ReasonSpecialEventDeleted
	default:
		return model.ReasonSpecialEventCreated
	}
}

// KindFor maps a created exception to its event kind.
func KindFor(ex model.CalendarException) SpecialEventKind {
	if ex.IsOpen {
		return SpecialEventCreated
	}
	return SpecialEventClosed
}

// InHorizon reports whether date falls in [today, today+advanceDays].
func InHorizon(date, today time.Time, advanceDays int) bool {
	d, start := model.DateOnly(date), model.DateOnly(today)
	end := start.AddDate(0, 0, advanceDays)
	return !d.Before(start) && !d.After(end)
}

// DetectSpecialEvent classifies an exception create/delete. Changes outside
// [today, today+advanceDays] cannot affect materialized slots and yield nil.
func DetectSpecialEvent(kind SpecialEventKind, date, today time.Time, advanceDays int) *model.ChangeEvent {
	if advanceDays <= 0 {
		advanceDays = model.DefaultAdvanceDays
	}
	if !InHorizon(date, today, advanceDays) {
		return nil
	}
	return &model.ChangeEvent{
		Reason:      kind.Reason(),
		Details:     "special event on " + date.Format(model.DateLayout),
		AdvanceDays: advanceDays,
	}
}
