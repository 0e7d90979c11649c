package changes

import (
	"sort"

	"reservo/internal/model"
)

type interval struct{ start, end int }

// ShiftConflicts reports every part of an employee shift that is not covered
// by the business's shifts for the same weekday. Split shifts are checked
// interval by interval, so a gap between two business shifts is reported.
func ShiftConflicts(hours model.WeeklySchedule, shifts []model.EmployeeShift) []model.ShiftConflict {
	var conflicts []model.ShiftConflict

	for _, es := range shifts {
		start, err := model.ParseClock(es.Start)
		if err != nil {
			continue
		}
		end, err := model.ParseClock(es.End)
		if err != nil || end <= start {
			continue
		}

		day, ok := hours.Day(es.DayOfWeek)
		var open []interval
		if ok && day.IsOpen {
			open = businessIntervals(day.Normalize())
		}

		for _, gap := range uncovered(interval{start, end}, open) {
			conflicts = append(conflicts, model.ShiftConflict{
				EmployeeID:   es.EmployeeID,
				EmployeeName: es.EmployeeName,
				Day:          dayName(es.DayOfWeek),
				Start:        model.FormatClock(gap.start),
				End:          model.FormatClock(gap.end),
				ShiftStart:   es.Start,
				ShiftEnd:     es.End,
			})
		}
	}
	return conflicts
}

func businessIntervals(day model.DaySchedule) []interval {
	out := make([]interval, 0, len(day.Shifts))
	for _, sh := range day.Shifts {
		s, err1 := model.ParseClock(sh.Start)
		e, err2 := model.ParseClock(sh.End)
		if err1 != nil || err2 != nil || e <= s {
			continue
		}
		out = append(out, interval{s, e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func uncovered(target interval, open []interval) []interval {
	var gaps []interval
	cursor := target.start
	for _, iv := range open {
		if iv.end <= cursor {
			continue
		}
		if iv.start >= target.end {
			break
		}
		if iv.start > cursor {
			gaps = append(gaps, interval{cursor, iv.start})
		}
		if iv.end > cursor {
			cursor = iv.end
		}
		if cursor >= target.end {
			break
		}
	}
	if cursor < target.end {
		gaps = append(gaps, interval{cursor, target.end})
	}
	return gaps
}

func dayName(index int) string {
	if index < 0 || index >= len(model.DayKeys) {
		return "unknown"
	}
	return model.DayKeys[index]
}
