package slots

import (
	"context"
	"fmt"
	"sort"
	"time"

	"reservo/internal/model"
)

// Slot represents a time slot.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
}

// Generator materializes slots from an effective day schedule.
type Generator struct {
	loc *time.Location
}

// NewGenerator creates a new slot generator. Times are interpreted in loc
// (UTC when nil).
func NewGenerator(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{loc: loc}
}

// GenerateSlots generates back-to-back slots inside every shift of the day.
// Slots starting before notBefore are kept but marked unavailable.
func (g *Generator) GenerateSlots(day model.EffectiveDaySchedule, slotMinutes int, notBefore time.Time) ([]Slot, error) {
	if !day.IsOpen {
		return nil, nil
	}

	if slotMinutes <= 0 {
		slotMinutes = model.DefaultSlotDurationMinutes
	}

	date, err := time.ParseInLocation(model.DateLayout, day.Date, g.loc)
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}

	shifts := day.Shifts
	if len(shifts) == 0 {
		shifts = []model.Shift{{Start: day.OpenTime, End: day.CloseTime}}
	}

	slotDuration := time.Duration(slotMinutes) * time.Minute
	var slots []Slot

	for _, sh := range shifts {
		startTime, err := parseTimeOnDate(date, sh.Start)
		if err != nil {
			return nil, fmt.Errorf("parse start time: %w", err)
		}

		endTime, err := parseTimeOnDate(date, sh.End)
		if err != nil {
			return nil, fmt.Errorf("parse end time: %w", err)
		}

		for cursor := startTime; !cursor.Add(slotDuration).After(endTime); cursor = cursor.Add(slotDuration) {
			slots = append(slots, Slot{
				StartTime: cursor,
				EndTime:   cursor.Add(slotDuration),
				Available: !cursor.Before(notBefore),
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartTime.Before(slots[j].StartTime)
	})

	return slots, nil
}

// GenerateDay returns storable slots for one resolved day. Shift times are
// read in the location of now, which callers set to the business zone. Slots
// starting before now are marked unavailable; callers pass now shifted by the
// minimum booking lead time.
func (g *Generator) GenerateDay(ctx context.Context, day model.EffectiveDaySchedule, durationMinutes int, now time.Time) ([]model.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	generated, err := NewGenerator(now.Location()).GenerateSlots(day, durationMinutes, now)
	if err != nil {
		return nil, err
	}
	return ToModel(day.Date, generated), nil
}

// ToModel converts slots to their stored representation.
func ToModel(date string, slots []Slot) []model.Slot {
	result := make([]model.Slot, len(slots))
	for i, s := range slots {
		result[i] = model.Slot{
			Date:      date,
			Start:     s.StartTime.Format("15:04"),
			End:       s.EndTime.Format("15:04"),
			Available: s.Available,
		}
	}
	return result
}

func parseTimeOnDate(date time.Time, timeStr string) (time.Time, error) {
	minutes, err := model.ParseClock(timeStr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, date.Location()), nil
}
