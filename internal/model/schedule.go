package model

import (
	"fmt"
	"reflect"
)

const (
	DefaultOpenTime  = "09:00"
	DefaultCloseTime = "22:00"
)

// DayKeys maps the resolution day index (0=Sunday ... 6=Saturday) to the
// key used in WeeklySchedule.
var DayKeys = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Shift is a contiguous open interval within a day.
type Shift struct {
	Start string `json:"start" yaml:"start"` // "09:00"
	End   string `json:"end" yaml:"end"`     // "14:00"
}

// DaySchedule is the recurring configuration for one day of the week.
type DaySchedule struct {
	IsOpen bool    `json:"is_open" yaml:"is_open"`
	Shifts []Shift `json:"shifts,omitempty" yaml:"shifts,omitempty"`
	// Legacy single-interval view: first shift start and last shift end.
	OpenTime  string `json:"open_time,omitempty" yaml:"open_time,omitempty"`
	CloseTime string `json:"close_time,omitempty" yaml:"close_time,omitempty"`
}

// Normalize fills shifts from the legacy open/close pair when shifts are
// missing and re-derives open/close from the shifts otherwise.
func (d DaySchedule) Normalize() DaySchedule {
	out := DaySchedule{IsOpen: d.IsOpen}
	switch {
	case len(d.Shifts) > 0:
		out.Shifts = append([]Shift(nil), d.Shifts...)
	case d.OpenTime != "" && d.CloseTime != "":
		out.Shifts = []Shift{{Start: d.OpenTime, End: d.CloseTime}}
	}
	if len(out.Shifts) > 0 {
		out.OpenTime = out.Shifts[0].Start
		out.CloseTime = out.Shifts[len(out.Shifts)-1].End
	}
	return out
}

// Equal reports whether two days are the same once normalized.
func (d DaySchedule) Equal(other DaySchedule) bool {
	return reflect.DeepEqual(d.Normalize(), other.Normalize())
}

// WeeklySchedule holds one entry per day of week keyed by DayKeys.
type WeeklySchedule map[string]DaySchedule

// DefaultWeeklySchedule is applied when a business is set up for the first time.
func DefaultWeeklySchedule() WeeklySchedule {
	w := make(WeeklySchedule, len(DayKeys))
	for i, key := range DayKeys {
		if i == 0 {
			w[key] = DaySchedule{IsOpen: false}
			continue
		}
		w[key] = DaySchedule{
			IsOpen: true,
			Shifts: []Shift{{Start: DefaultOpenTime, End: DefaultCloseTime}},
		}.Normalize()
	}
	return w
}

// Day returns the entry for a resolution day index.
func (w WeeklySchedule) Day(index int) (DaySchedule, bool) {
	if index < 0 || index >= len(DayKeys) {
		return DaySchedule{}, false
	}
	d, ok := w[DayKeys[index]]
	return d, ok
}

// Normalize returns a copy with every day normalized.
func (w WeeklySchedule) Normalize() WeeklySchedule {
	out := make(WeeklySchedule, len(w))
	for k, d := range w {
		out[k] = d.Normalize()
	}
	return out
}

// Equal reports structural equality after normalization.
func (w WeeklySchedule) Equal(other WeeklySchedule) bool {
	a, b := w.Normalize(), other.Normalize()
	for _, key := range DayKeys {
		da, okA := a[key]
		db, okB := b[key]
		if okA != okB || !da.Equal(db) {
			return false
		}
	}
	return len(a) == len(b)
}

// Validate enforces that open days carry ordered, non-overlapping shifts
// with end after start.
func (w WeeklySchedule) Validate() error {
	known := make(map[string]bool, len(DayKeys))
	for _, key := range DayKeys {
		known[key] = true
	}
	for key := range w {
		if !known[key] {
			return &ValidationError{Field: "hours." + key, Message: "unknown day of week"}
		}
	}

	for _, key := range DayKeys {
		day, ok := w[key]
		if !ok || !day.IsOpen {
			continue
		}
		day = day.Normalize()
		if len(day.Shifts) == 0 {
			return &ValidationError{Field: "hours." + key, Message: "open day needs at least one shift"}
		}
		prevEnd := -1
		for i, sh := range day.Shifts {
			field := fmt.Sprintf("hours.%s.shifts[%d]", key, i)
			start, err := ParseClock(sh.Start)
			if err != nil {
				return &ValidationError{Field: field + ".start", Message: err.Error()}
			}
			end, err := ParseClock(sh.End)
			if err != nil {
				return &ValidationError{Field: field + ".end", Message: err.Error()}
			}
			if end <= start {
				return &ValidationError{Field: field, Message: "shift end must be after start"}
			}
			if start < prevEnd {
				return &ValidationError{Field: field, Message: "shifts must be ordered and must not overlap"}
			}
			prevEnd = end
		}
	}
	return nil
}
