package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"reservo/internal/changes"
	"reservo/internal/config"
	"reservo/internal/model"
)

// Syncer applies businesses.yaml to the store.
type Syncer struct {
	store    Store
	settings *SettingsService
	regen    Regenerator
	clock    Clock
	logger   *zerolog.Logger
}

func NewSyncer(store Store, settings *SettingsService, regen Regenerator, clock Clock, logger *zerolog.Logger) *Syncer {
	return &Syncer{store: store, settings: settings, regen: regen, clock: clock, logger: logger}
}

// SyncFromConfig creates missing businesses, saves configured hours and
// policies through the regular save path and adds configured holidays that
// do not collide with existing exceptions or active bookings. A failure on
// one business does not stop the others.
func (s *Syncer) SyncFromConfig(ctx context.Context, cfg *config.BusinessesConfig) error {
	var errs []error
	for _, b := range cfg.Businesses {
		if err := s.syncBusiness(ctx, cfg, b); err != nil {
			s.logger.Error().Err(err).Int64("business_id", b.ID).Msg("Business sync failed")
			errs = append(errs, fmt.Errorf("business %d: %w", b.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Syncer) syncBusiness(ctx context.Context, cfg *config.BusinessesConfig, b config.BusinessConfig) error {
	if err := s.store.EnsureBusiness(ctx, &model.Business{
		ID:       b.ID,
		Name:     b.Name,
		Vertical: b.Vertical,
		Timezone: b.Timezone,
	}); err != nil {
		return fmt.Errorf("ensure business: %w", err)
	}

	// Configuration is authoritative; conflicts with employee shifts are logged.
	if _, err := s.settings.Save(ctx, b.ID, SaveRequest{Hours: b.Hours, Policy: b.Policy, Force: true}); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	return s.syncHolidays(ctx, b.ID, cfg.HolidaysFor(b.ID))
}

func (s *Syncer) syncHolidays(ctx context.Context, businessID int64, holidays []config.HolidayConfig) error {
	if len(holidays) == 0 {
		return nil
	}

	existing, err := s.store.ListExceptions(ctx, businessID, "", "")
	if err != nil {
		return fmt.Errorf("load exceptions: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, ex := range existing {
		taken[ex.Date] = true
	}

	var list []*model.CalendarException
	for _, h := range holidays {
		if taken[h.Date] {
			continue
		}
		bookings, err := s.store.ActiveBookingsOnDate(ctx, businessID, h.Date)
		if err != nil {
			return fmt.Errorf("check bookings on %s: %w", h.Date, err)
		}
		if len(bookings) > 0 {
			s.logger.Warn().Int64("business_id", businessID).Str("date", h.Date).
				Int("bookings", len(bookings)).Msg("Holiday skipped, date has active bookings")
			continue
		}
		list = append(list, &model.CalendarException{Date: h.Date, Reason: h.Name, Source: model.SourceManual})
	}
	if len(list) == 0 {
		return nil
	}

	if err := s.store.UpsertExceptions(ctx, businessID, list); err != nil {
		return fmt.Errorf("save holidays: %w", err)
	}
	s.logger.Info().Int64("business_id", businessID).Int("holidays", len(list)).Msg("Holidays added from configuration")

	settings, err := s.store.GetSettings(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	horizon := settings.Policy.Horizon()
	today := s.clock.today(businessLocation(ctx, s.store, businessID))
	for _, ex := range list {
		date, err := model.ParseDate(ex.Date)
		if err != nil || !changes.InHorizon(date, today, horizon) {
			continue
		}
		if s.regen != nil {
			s.regen.Handle(ctx, businessID, &model.ChangeEvent{
				Reason:      model.ReasonConfigSync,
				Details:     "holidays added from configuration",
				AdvanceDays: horizon,
			})
		}
		break
	}
	return nil
}
