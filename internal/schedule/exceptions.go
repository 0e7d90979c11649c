package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"reservo/internal/changes"
	"reservo/internal/metrics"
	"reservo/internal/model"
)

// EventRequest creates a special event for one date or an inclusive range.
type EventRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IsOpen    bool   `json:"is_open"`
	OpenTime  string `json:"open_time,omitempty" validate:"omitempty,datetime=15:04"`
	CloseTime string `json:"close_time,omitempty" validate:"omitempty,datetime=15:04"`
	Reason    string `json:"reason" validate:"max=200"`
}

type ExceptionService struct {
	store  Store
	loader *Loader
	regen  Regenerator
	clock  Clock
	logger *zerolog.Logger
}

func NewExceptionService(store Store, loader *Loader, regen Regenerator, clock Clock, logger *zerolog.Logger) *ExceptionService {
	return &ExceptionService{store: store, loader: loader, regen: regen, clock: clock, logger: logger}
}

// Create writes one exception per date of the request. Closing a date that
// holds active bookings rejects the whole request before anything is written.
func (s *ExceptionService) Create(ctx context.Context, businessID int64, req EventRequest) ([]model.CalendarException, error) {
	dates, err := expandRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	openTime, closeTime, err := eventHours(req)
	if err != nil {
		return nil, err
	}

	if !req.IsOpen {
		var blocked []string
		for _, d := range dates {
			bookings, err := s.store.ActiveBookingsOnDate(ctx, businessID, d)
			if err != nil {
				return nil, fmt.Errorf("check bookings on %s: %w", d, err)
			}
			if len(bookings) > 0 {
				blocked = append(blocked, fmt.Sprintf("%s (%d)", d, len(bookings)))
			}
		}
		if len(blocked) > 0 {
			return nil, &model.ValidationError{
				Field:   "start_date",
				Message: "cannot close dates with confirmed or pending bookings: " + strings.Join(blocked, ", "),
			}
		}
	}

	list := make([]*model.CalendarException, 0, len(dates))
	for _, d := range dates {
		list = append(list, &model.CalendarException{
			BusinessID: businessID,
			Date:       d,
			IsOpen:     req.IsOpen,
			OpenTime:   openTime,
			CloseTime:  closeTime,
			Reason:     req.Reason,
			Source:     model.SourceManual,
		})
	}

	if err := s.store.UpsertExceptions(ctx, businessID, list); err != nil {
		return nil, fmt.Errorf("save special event: %w", err)
	}
	if s.loader != nil {
		s.loader.Forget(businessID)
	}

	s.logger.Info().Int64("business_id", businessID).Str("start", dates[0]).
		Int("days", len(dates)).Bool("is_open", req.IsOpen).Msg("Special event created")

	created := make([]model.CalendarException, len(list))
	for i, ex := range list {
		created[i] = *ex
	}

	kind := changes.KindFor(created[0])
	s.notify(ctx, businessID, kind, dates)

	return created, nil
}

// Delete removes the exception of a date and restores the weekly schedule.
func (s *ExceptionService) Delete(ctx context.Context, businessID int64, date string) error {
	if _, err := model.ParseDate(date); err != nil {
		return &model.ValidationError{Field: "date", Message: err.Error()}
	}
	if err := s.store.DeleteException(ctx, businessID, date); err != nil {
		return err
	}
	if s.loader != nil {
		s.loader.Forget(businessID)
	}

	s.logger.Info().Int64("business_id", businessID).Str("date", date).Msg("Special event deleted")
	s.notify(ctx, businessID, changes.SpecialEventDeleted, []string{date})
	return nil
}

// notify starts one regeneration if any date is inside the horizon.
// Out-of-horizon dates are only logged.
func (s *ExceptionService) notify(ctx context.Context, businessID int64, kind changes.SpecialEventKind, dates []string) {
	horizon := model.DefaultAdvanceDays
	if settings, err := s.store.GetSettings(ctx, businessID); err == nil {
		horizon = settings.Policy.Horizon()
	} else {
		s.logger.Warn().Err(err).Int64("business_id", businessID).Msg("Using default horizon")
	}

	today := s.clock.today(businessLocation(ctx, s.store, businessID))
	var change *model.ChangeEvent
	for _, d := range dates {
		date, err := model.ParseDate(d)
		if err != nil {
			continue
		}
		if change = changes.DetectSpecialEvent(kind, date, today, horizon); change != nil {
			break
		}
	}

	if change == nil {
		s.logger.Debug().Int64("business_id", businessID).Strs("dates", dates).
			Msg("Special event outside booking horizon, regeneration suppressed")
		metrics.IncSuppressedEvent(string(kind.Reason()))
		return
	}
	if len(dates) > 1 {
		change.Details = fmt.Sprintf("special event %s..%s", dates[0], dates[len(dates)-1])
	}
	if s.regen != nil {
		s.regen.Handle(ctx, businessID, change)
	}
}

// expandRange returns every date key of [start, end]; an empty end means a
// single day.
func expandRange(start, end string) ([]string, error) {
	from, err := model.ParseDate(start)
	if err != nil {
		return nil, &model.ValidationError{Field: "start_date", Message: err.Error()}
	}
	to := from
	if end != "" {
		if to, err = model.ParseDate(end); err != nil {
			return nil, &model.ValidationError{Field: "end_date", Message: err.Error()}
		}
	}
	if to.Before(from) {
		return nil, &model.ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxRangeDays {
		return nil, &model.ValidationError{Field: "end_date", Message: fmt.Sprintf("range exceeds %d days", MaxRangeDays)}
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(model.DateLayout))
	}
	return dates, nil
}

// eventHours validates the optional hours of an open event. Closed events
// carry no times.
func eventHours(req EventRequest) (*string, *string, error) {
	if !req.IsOpen {
		return nil, nil, nil
	}
	if req.OpenTime == "" && req.CloseTime == "" {
		return nil, nil, nil
	}
	if req.OpenTime == "" || req.CloseTime == "" {
		return nil, nil, &model.ValidationError{Field: "open_time", Message: "open_time and close_time must be set together"}
	}
	open, err := model.ParseClock(req.OpenTime)
	if err != nil {
		return nil, nil, &model.ValidationError{Field: "open_time", Message: err.Error()}
	}
	closing, err := model.ParseClock(req.CloseTime)
	if err != nil {
		return nil, nil, &model.ValidationError{Field: "close_time", Message: err.Error()}
	}
	if closing <= open {
		return nil, nil, &model.ValidationError{Field: "close_time", Message: "must be after open_time"}
	}
	return model.StrPtr(req.OpenTime), model.StrPtr(req.CloseTime), nil
}
