// Package regen rewrites materialized slots after availability-impacting
// configuration changes while leaving dates with active bookings untouched.
package regen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"reservo/internal/calendar"
	"reservo/internal/events"
	"reservo/internal/metrics"
	"reservo/internal/model"
)

// Error codes reported in Result.ErrorCode.
const (
	ErrCodeLoadFailed  = "load_failed"
	ErrCodeWriteFailed = "write_failed"
	ErrCodeTimeout     = "timeout"
	ErrCodeInternal    = "internal"
)

// Store is the persistence a pass reads from and writes to.
type Store interface {
	SlotsExist(ctx context.Context, businessID int64) (bool, error)
	GetSettings(ctx context.Context, businessID int64) (*model.Settings, error)
	ListExceptions(ctx context.Context, businessID int64, from, to string) ([]model.CalendarException, error)
	ActiveBookingsOnDate(ctx context.Context, businessID int64, date string) ([]model.Booking, error)
	// WriteSlotsUnlessBooked replaces the slots of a date atomically with a
	// re-check of its bookings; when bookings exist it writes nothing and
	// returns them.
	WriteSlotsUnlessBooked(ctx context.Context, businessID int64, date string, slots []model.Slot) ([]model.Booking, error)
	GetBusiness(ctx context.Context, businessID int64) (*model.Business, error)
}

// SlotGenerator turns a resolved day into slots. Shift times are read in
// the location of now.
type SlotGenerator interface {
	GenerateDay(ctx context.Context, day model.EffectiveDaySchedule, durationMinutes int, now time.Time) ([]model.Slot, error)
}

// Options tune a single pass.
type Options struct {
	// AdvanceDays overrides the horizon; zero uses the business policy.
	AdvanceDays int
	// Silent suppresses the availability-regenerated signal.
	Silent bool
}

// Result is always returned; failures are reported through ErrorCode.
type Result struct {
	Success               bool                         `json:"success"`
	SlotsUpdated          int                          `json:"slots_updated"`
	DatesUpdated          int                          `json:"dates_updated"`
	ProtectedReservations []model.ProtectedReservation `json:"protected_reservations"`
	// Skipped is set when the business has no materialized slots yet.
	Skipped bool `json:"skipped"`
	// Superseded is set when a newer request stopped this pass early.
	Superseded   bool   `json:"superseded"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	RunID        string `json:"run_id"`
	Version      int64  `json:"version"`
}

type Config struct {
	DefaultAdvanceDays int
	MaxParallelDates   int
	// Timeout bounds background passes started with TriggerAsync.
	Timeout time.Duration
	// Location is used for businesses without a known time zone; UTC when
	// nil. Otherwise "today" and slot times follow the business zone.
	Location *time.Location
	// Now overrides the clock.
	Now func() time.Time
}

// Trigger runs regeneration passes, one at a time per business.
type Trigger struct {
	store     Store
	generator SlotGenerator
	versions  Versioner
	bus       events.Publisher
	cfg       Config
	logger    *zerolog.Logger
	locks     *keyedLock
	wg        sync.WaitGroup
	now       func() time.Time
}

func NewTrigger(store Store, generator SlotGenerator, versions Versioner, bus events.Publisher, cfg Config, logger *zerolog.Logger) *Trigger {
	if cfg.DefaultAdvanceDays <= 0 {
		cfg.DefaultAdvanceDays = model.DefaultAdvanceDays
	}
	if cfg.MaxParallelDates <= 0 {
		cfg.MaxParallelDates = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if versions == nil {
		versions = NewLocalVersioner()
	}
	return &Trigger{
		store:     store,
		generator: generator,
		versions:  versions,
		bus:       bus,
		cfg:       cfg,
		logger:    logger,
		locks:     newKeyedLock(),
		now:       cfg.Now,
	}
}

// Handle starts a background pass for a detected change.
func (t *Trigger) Handle(ctx context.Context, businessID int64, change *model.ChangeEvent) {
	if change == nil {
		return
	}
	t.TriggerAsync(ctx, businessID, change.Reason, Options{AdvanceDays: change.AdvanceDays})
}

// TriggerAsync runs Regenerate in the background, detached from ctx
// cancellation and bounded by the configured timeout.
func (t *Trigger) TriggerAsync(ctx context.Context, businessID int64, reason model.ChangeReason, opts Options) {
	detached := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		runCtx, cancel := context.WithTimeout(detached, t.cfg.Timeout)
		defer cancel()
		t.Regenerate(runCtx, businessID, reason, opts)
	}()
}

// Wait blocks until every background pass has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// Regenerate recomputes slots for [today, today+horizon]. It never returns an
// error; failures are converted into the result.
func (t *Trigger) Regenerate(ctx context.Context, businessID int64, reason model.ChangeReason, opts Options) (res Result) {
	started := time.Now()
	res.RunID = uuid.NewString()

	log := t.logger.With().
		Int64("business_id", businessID).
		Str("reason", string(reason)).
		Str("run_id", res.RunID).
		Logger()

	// The outcome is published before the business lock is released, so
	// signals of one business arrive in pass order.
	var release func()
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.ErrorCode = ErrCodeInternal
			res.ErrorMessage = fmt.Sprintf("panic: %v", r)
		}
		t.finish(ctx, &log, businessID, reason, opts, &res, time.Since(started))
		if release != nil {
			release()
		}
	}()

	version, err := t.versions.Next(ctx, businessID)
	if err != nil {
		t.fail(ctx, &res, ErrCodeInternal, fmt.Errorf("issue version: %w", err))
		return res
	}
	res.Version = version

	release, err = t.locks.acquire(ctx, businessID)
	if err != nil {
		t.fail(ctx, &res, ErrCodeTimeout, fmt.Errorf("wait for running pass: %w", err))
		return res
	}

	if t.superseded(ctx, businessID, version) {
		res.Success = true
		res.Superseded = true
		return res
	}

	exists, err := t.store.SlotsExist(ctx, businessID)
	if err != nil {
		t.fail(ctx, &res, ErrCodeLoadFailed, fmt.Errorf("check slots: %w", err))
		return res
	}
	if !exists {
		res.Success = true
		res.Skipped = true
		return res
	}

	settings, err := t.store.GetSettings(ctx, businessID)
	if err != nil {
		t.fail(ctx, &res, ErrCodeLoadFailed, fmt.Errorf("load settings: %w", err))
		return res
	}

	horizon := t.horizon(opts, settings.Policy)
	loc := calendar.BusinessLocation(ctx, t.store, businessID, t.cfg.Location)
	now := t.now().In(loc)
	today := calendar.Today(now, loc)
	last := today.AddDate(0, 0, horizon)

	exceptions, err := t.store.ListExceptions(ctx, businessID, calendar.DateKey(today), calendar.DateKey(last))
	if err != nil {
		t.fail(ctx, &res, ErrCodeLoadFailed, fmt.Errorf("load exceptions: %w", err))
		return res
	}

	log.Info().Int64("version", version).Int("advance_days", horizon).Msg("Regeneration started")

	pass := &pass{
		trigger:    t,
		businessID: businessID,
		version:    version,
		settings:   settings,
		exceptions: calendar.ExceptionIndex(exceptions),
		notBefore:  now.Add(time.Duration(settings.Policy.EffectiveMinAdvanceMinutes()) * time.Minute),
	}
	pass.run(ctx, today, horizon)
	pass.collect(ctx, &res)

	return res
}

func (t *Trigger) horizon(opts Options, policy model.BookingPolicy) int {
	switch {
	case opts.AdvanceDays > 0:
		return opts.AdvanceDays
	case policy.AdvanceDays > 0:
		return policy.AdvanceDays
	default:
		return t.cfg.DefaultAdvanceDays
	}
}

func (t *Trigger) superseded(ctx context.Context, businessID, version int64) bool {
	current, err := t.versions.Current(ctx, businessID)
	if err != nil {
		t.logger.Warn().Err(err).Int64("business_id", businessID).Msg("version check failed")
		return false
	}
	return current > version
}

func (t *Trigger) fail(ctx context.Context, res *Result, code string, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		code = ErrCodeTimeout
	}
	res.Success = false
	res.ErrorCode = code
	res.ErrorMessage = err.Error()
}

func (t *Trigger) finish(ctx context.Context, log *zerolog.Logger, businessID int64, reason model.ChangeReason, opts Options, res *Result, took time.Duration) {
	outcome := "success"
	switch {
	case !res.Success:
		outcome = res.ErrorCode
		log.Error().Str("error_code", res.ErrorCode).Str("error", res.ErrorMessage).
			Int("slots_updated", res.SlotsUpdated).Msg("Regeneration failed")
	case res.Skipped:
		outcome = "skipped"
		log.Debug().Msg("No slots generated yet, regeneration skipped")
	case res.Superseded:
		outcome = "superseded"
		log.Info().Int("slots_updated", res.SlotsUpdated).Msg("Regeneration superseded by a newer request")
	default:
		log.Info().
			Int("slots_updated", res.SlotsUpdated).
			Int("dates_updated", res.DatesUpdated).
			Int("protected", len(res.ProtectedReservations)).
			Dur("took", took).
			Msg("Regeneration completed")
	}
	metrics.ObserveRegeneration(string(reason), outcome, took, res.SlotsUpdated, len(res.ProtectedReservations))

	if opts.Silent || t.bus == nil || res.Skipped {
		return
	}
	t.bus.Publish(context.WithoutCancel(ctx), events.NewAvailabilityRegenerated(events.AvailabilityRegenerated{
		BusinessID:            businessID,
		Reason:                reason,
		RunID:                 res.RunID,
		Version:               res.Version,
		Success:               res.Success,
		SlotsUpdated:          res.SlotsUpdated,
		DatesUpdated:          res.DatesUpdated,
		ProtectedReservations: res.ProtectedReservations,
		Superseded:            res.Superseded,
		ErrorCode:             res.ErrorCode,
		ErrorMessage:          res.ErrorMessage,
	}))
}

// dateOutcome is the result of one date of a pass.
type dateOutcome struct {
	done      bool
	slots     int
	protected []model.ProtectedReservation
	errCode   string
	err       error
}

type pass struct {
	trigger    *Trigger
	businessID int64
	version    int64
	settings   *model.Settings
	exceptions map[string]model.CalendarException
	notBefore  time.Time

	outcomes   []dateOutcome
	stopped    atomic.Bool
	superseded atomic.Bool
}

func (p *pass) run(ctx context.Context, today time.Time, horizon int) {
	p.outcomes = make([]dateOutcome, horizon+1)

	var g errgroup.Group
	g.SetLimit(p.trigger.cfg.MaxParallelDates)

	for i := 0; i <= horizon; i++ {
		if p.stopped.Load() || ctx.Err() != nil {
			break
		}
		date := today.AddDate(0, 0, i)
		g.Go(func() error {
			p.outcomes[i] = p.processDate(ctx, date)
			if p.outcomes[i].err != nil {
				p.stopped.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// processDate reads the booking state of a date before writing its slots.
// Both steps run on the same goroutine.
func (p *pass) processDate(ctx context.Context, date time.Time) (out dateOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = dateOutcome{errCode: ErrCodeInternal, err: fmt.Errorf("panic on %s: %v", calendar.DateKey(date), r)}
		}
	}()

	if p.stopped.Load() {
		return out
	}
	if err := ctx.Err(); err != nil {
		return dateOutcome{errCode: ErrCodeTimeout, err: err}
	}
	if p.trigger.superseded(ctx, p.businessID, p.version) {
		p.superseded.Store(true)
		p.stopped.Store(true)
		return out
	}

	key := calendar.DateKey(date)
	store := p.trigger.store

	bookings, err := store.ActiveBookingsOnDate(ctx, p.businessID, key)
	if err != nil {
		return dateOutcome{errCode: ErrCodeLoadFailed, err: fmt.Errorf("bookings on %s: %w", key, err)}
	}
	if len(bookings) > 0 {
		return protectedOutcome(key, bookings)
	}

	day := calendar.ResolveDay(date, p.settings.Hours, p.exceptions)
	generated, err := p.trigger.generator.GenerateDay(ctx, day, p.settings.Policy.SlotDuration(), p.notBefore)
	if err != nil {
		return dateOutcome{errCode: ErrCodeInternal, err: fmt.Errorf("generate %s: %w", key, err)}
	}

	// A booking taken after the read above still wins: the write re-checks
	// inside its transaction.
	booked, err := store.WriteSlotsUnlessBooked(ctx, p.businessID, key, generated)
	if err != nil {
		return dateOutcome{errCode: ErrCodeWriteFailed, err: fmt.Errorf("write %s: %w", key, err)}
	}
	if len(booked) > 0 {
		return protectedOutcome(key, booked)
	}

	return dateOutcome{done: true, slots: len(generated)}
}

func protectedOutcome(date string, bookings []model.Booking) dateOutcome {
	out := dateOutcome{done: true}
	for _, b := range bookings {
		out.protected = append(out.protected, model.ProtectedReservation{
			Date:            date,
			CustomerName:    b.CustomerName,
			AppointmentTime: b.Time,
			ResourceName:    b.ResourceName,
		})
	}
	return out
}

// collect folds per-date outcomes in date order, so protected reservations
// come out sorted by date whatever the scheduling order was.
func (p *pass) collect(ctx context.Context, res *Result) {
	var firstErr *dateOutcome
	for i := range p.outcomes {
		o := &p.outcomes[i]
		if o.err != nil {
			if firstErr == nil {
				firstErr = o
			}
			continue
		}
		if !o.done {
			continue
		}
		res.ProtectedReservations = append(res.ProtectedReservations, o.protected...)
		if len(o.protected) == 0 {
			res.SlotsUpdated += o.slots
			res.DatesUpdated++
		}
	}

	res.Superseded = p.superseded.Load()

	switch {
	case firstErr != nil:
		p.trigger.fail(ctx, res, firstErr.errCode, firstErr.err)
	case ctx.Err() != nil && !res.Superseded:
		p.trigger.fail(ctx, res, ErrCodeTimeout, ctx.Err())
	default:
		res.Success = true
	}
}
