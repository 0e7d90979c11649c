// Package calendar resolves the effective opening hours of a business for a
// concrete date from its weekly schedule and date exceptions.
package calendar

import (
	"time"

	"reservo/internal/model"
)

// DisplayDayOrder is the Monday-first column order used by calendar views.
// It is not a resolution index; use ResolutionDayIndex to look up schedules.
var DisplayDayOrder = [7]int{1, 2, 3, 4, 5, 6, 0}

// ResolutionDayIndex returns 0 for Sunday through 6 for Saturday.
func ResolutionDayIndex(date time.Time) int {
	return int(date.Weekday())
}

// DateKey renders the calendar fields of date as YYYY-MM-DD without any
// timezone conversion.
func DateKey(date time.Time) string {
	return date.Format(model.DateLayout)
}

// ExceptionIndex builds the by-date lookup used by ResolveDay.
func ExceptionIndex(exceptions []model.CalendarException) map[string]model.CalendarException {
	idx := make(map[string]model.CalendarException, len(exceptions))
	for _, ex := range exceptions {
		idx[ex.Date] = ex
	}
	return idx
}

// ResolveDay combines the weekly schedule and the exceptions into the
// effective schedule for date. An exception for the date always wins.
func ResolveDay(date time.Time, schedule model.WeeklySchedule, exceptions map[string]model.CalendarException) model.EffectiveDaySchedule {
	if date.IsZero() {
		panic("calendar: ResolveDay called with zero date")
	}

	key := DateKey(date)

	if ex, ok := exceptions[key]; ok {
		return fromException(key, ex)
	}

	day, ok := schedule.Day(ResolutionDayIndex(date))
	if !ok || !day.IsOpen {
		return model.EffectiveDaySchedule{Date: key}
	}

	day = day.Normalize()
	shifts := day.Shifts
	if len(shifts) == 0 {
		shifts = []model.Shift{{Start: model.DefaultOpenTime, End: model.DefaultCloseTime}}
	}

	return model.EffectiveDaySchedule{
		Date:      key,
		IsOpen:    true,
		OpenTime:  shifts[0].Start,
		CloseTime: shifts[len(shifts)-1].End,
		Shifts:    append([]model.Shift(nil), shifts...),
	}
}

func fromException(key string, ex model.CalendarException) model.EffectiveDaySchedule {
	out := model.EffectiveDaySchedule{
		Date:            key,
		IsOpen:          ex.IsOpen,
		IsException:     true,
		ExceptionReason: ex.Reason,
	}
	if !ex.IsOpen {
		if ex.OpenTime != nil {
			out.OpenTime = *ex.OpenTime
		}
		if ex.CloseTime != nil {
			out.CloseTime = *ex.CloseTime
		}
		return out
	}

	out.OpenTime = model.DefaultOpenTime
	out.CloseTime = model.DefaultCloseTime
	if ex.OpenTime != nil && *ex.OpenTime != "" {
		out.OpenTime = *ex.OpenTime
	}
	if ex.CloseTime != nil && *ex.CloseTime != "" {
		out.CloseTime = *ex.CloseTime
	}
	out.Shifts = []model.Shift{{Start: out.OpenTime, End: out.CloseTime}}
	return out
}

// ResolveRange resolves every date in [from, to], inclusive.
func ResolveRange(from, to time.Time, schedule model.WeeklySchedule, exceptions map[string]model.CalendarException) []model.EffectiveDaySchedule {
	from, to = model.DateOnly(from), model.DateOnly(to)
	if to.Before(from) {
		return nil
	}
	days := make([]model.EffectiveDaySchedule, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, ResolveDay(d, schedule, exceptions))
	}
	return days
}
