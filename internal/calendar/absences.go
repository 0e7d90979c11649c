package calendar

import (
	"sort"
	"time"

	"reservo/internal/model"
)

// AbsencesOn returns the approved absences covering date. Timed absences
// come first ordered by start time; all-day absences follow. Ties keep the
// input order.
func AbsencesOn(date time.Time, absences []model.EmployeeAbsence) []model.EmployeeAbsence {
	key := DateKey(date)
	var out []model.EmployeeAbsence
	for _, a := range absences {
		if a.Approved && a.Covers(key) {
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].AllDay || out[i].StartTime == nil, out[j].AllDay || out[j].StartTime == nil
		if ai != aj {
			return !ai
		}
		if ai {
			return false
		}
		return *out[i].StartTime < *out[j].StartTime
	})
	return out
}

// DayView is a resolved day with its absence overlay.
type DayView struct {
	model.EffectiveDaySchedule
	Absences []model.EmployeeAbsence `json:"absences,omitempty"`
}

// BuildDayViews resolves [from, to] and attaches the absences of each day.
func BuildDayViews(from, to time.Time, settings *model.Settings, exceptions map[string]model.CalendarException, absences []model.EmployeeAbsence, memo *Memo) []DayView {
	from, to = model.DateOnly(from), model.DateOnly(to)
	if memo == nil {
		memo = NewMemo()
	}
	var views []DayView
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		views = append(views, DayView{
			EffectiveDaySchedule: memo.Resolve(d, settings, exceptions),
			Absences:             AbsencesOn(d, absences),
		})
	}
	return views
}
