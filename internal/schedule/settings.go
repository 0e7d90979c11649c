package schedule

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"reservo/internal/changes"
	"reservo/internal/events"
	"reservo/internal/model"
)

// SaveRequest replaces the hours and, when set, the booking policy.
type SaveRequest struct {
	Hours  model.WeeklySchedule `json:"hours" validate:"required"`
	Policy *model.BookingPolicy `json:"booking_policy,omitempty"`
	// Force saves even when employee shifts fall outside the new hours.
	Force bool `json:"force"`
}

// SaveResult describes a completed save.
type SaveResult struct {
	Settings  *model.Settings       `json:"settings"`
	Change    *model.ChangeEvent    `json:"change,omitempty"`
	Conflicts []model.ShiftConflict `json:"conflicts,omitempty"`
}

type SettingsService struct {
	store  Store
	loader *Loader
	bus    events.Publisher
	regen  Regenerator
	logger *zerolog.Logger
}

func NewSettingsService(store Store, loader *Loader, bus events.Publisher, regen Regenerator, logger *zerolog.Logger) *SettingsService {
	return &SettingsService{store: store, loader: loader, bus: bus, regen: regen, logger: logger}
}

// Save validates and persists hours and policy, then starts a regeneration
// when the change affects availability. The outcome of the save never
// depends on the regeneration.
func (s *SettingsService) Save(ctx context.Context, businessID int64, req SaveRequest) (*SaveResult, error) {
	if req.Hours == nil {
		return nil, &model.ValidationError{Field: "hours", Message: "is required"}
	}
	if err := req.Hours.Validate(); err != nil {
		return nil, err
	}
	if req.Policy != nil {
		if err := validatePolicy(*req.Policy); err != nil {
			return nil, err
		}
	}

	prev, err := s.store.GetSettings(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	next := *prev
	next.Hours = req.Hours.Normalize()
	if req.Policy != nil {
		next.Policy = *req.Policy
	}

	shifts, err := s.store.ListEmployeeShifts(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("load employee shifts: %w", err)
	}
	conflicts := changes.ShiftConflicts(next.Hours, shifts)
	if len(conflicts) > 0 {
		if !req.Force {
			return nil, &model.ConflictError{Conflicts: conflicts}
		}
		s.logger.Warn().
			Int64("business_id", businessID).
			Int("conflicts", len(conflicts)).
			Msg("Saving business hours that leave employee shifts uncovered")
	}

	if err := s.store.SaveSettings(ctx, &next); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	if s.loader != nil {
		s.loader.Forget(businessID)
	}

	s.logger.Info().Int64("business_id", businessID).Int64("version", next.Version).Msg("Settings saved")

	if s.bus != nil {
		s.bus.Publish(ctx, events.NewScheduleUpdated(events.ScheduleUpdated{
			BusinessID: businessID,
			Schedule:   next.Hours,
			Version:    next.Version,
		}))
	}

	change := changes.Detect(*prev, next)
	if change != nil && s.regen != nil {
		s.logger.Info().Int64("business_id", businessID).Str("reason", string(change.Reason)).
			Str("details", change.Details).Msg("Availability-impacting change detected")
		s.regen.Handle(ctx, businessID, change)
	}

	return &SaveResult{Settings: &next, Change: change, Conflicts: conflicts}, nil
}

func validatePolicy(p model.BookingPolicy) error {
	switch {
	case p.AdvanceDays < 0:
		return &model.ValidationError{Field: "booking_policy.advance_days", Message: "must not be negative"}
	case p.MinAdvanceMinutes != nil && *p.MinAdvanceMinutes < 0:
		return &model.ValidationError{Field: "booking_policy.min_advance_minutes", Message: "must not be negative"}
	case p.MinBookingHours != nil && *p.MinBookingHours < 0:
		return &model.ValidationError{Field: "booking_policy.min_booking_hours", Message: "must not be negative"}
	case p.SlotDurationMinutes < 0:
		return &model.ValidationError{Field: "booking_policy.slot_duration_minutes", Message: "must not be negative"}
	case p.MaxPartySize > 0 && p.MinPartySize > p.MaxPartySize:
		return &model.ValidationError{Field: "booking_policy.min_party_size", Message: "must not exceed max_party_size"}
	}
	return nil
}
