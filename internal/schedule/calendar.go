package schedule

import (
	"context"
	"fmt"

	"reservo/internal/calendar"
	"reservo/internal/model"
)

type CalendarService struct {
	store  Store
	loader *Loader
	clock  Clock
}

func NewCalendarService(store Store, loader *Loader) *CalendarService {
	if loader == nil {
		loader = NewLoader(store)
	}
	return &CalendarService{store: store, loader: loader}
}

// WithClock overrides the clock used by Today.
func (s *CalendarService) WithClock(clock Clock) *CalendarService {
	s.clock = clock
	return s
}

// Today returns the current date of the business zone as YYYY-MM-DD.
func (s *CalendarService) Today(ctx context.Context, businessID int64) string {
	return calendar.DateKey(s.clock.today(businessLocation(ctx, s.store, businessID)))
}

// Days resolves every date of [from, to] with its absence overlay.
func (s *CalendarService) Days(ctx context.Context, businessID int64, from, to string) ([]calendar.DayView, error) {
	fromDate, err := model.ParseDate(from)
	if err != nil {
		return nil, &model.ValidationError{Field: "from", Message: err.Error()}
	}
	toDate, err := model.ParseDate(to)
	if err != nil {
		return nil, &model.ValidationError{Field: "to", Message: err.Error()}
	}
	if toDate.Before(fromDate) {
		return nil, &model.ValidationError{Field: "to", Message: "must not be before from"}
	}
	if int(toDate.Sub(fromDate).Hours()/24)+1 > MaxRangeDays {
		return nil, &model.ValidationError{Field: "to", Message: fmt.Sprintf("range exceeds %d days", MaxRangeDays)}
	}

	settings, err := s.loader.Settings(ctx, businessID)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.store.ListExceptions(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load exceptions: %w", err)
	}
	absences, err := s.store.ListApprovedAbsences(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load absences: %w", err)
	}

	memo := calendar.NewMemo()
	return calendar.BuildDayViews(fromDate, toDate, settings, calendar.ExceptionIndex(exceptions), absences, memo), nil
}
