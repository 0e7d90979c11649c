package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reservo/internal/calendar"
	"reservo/internal/changes"
	"reservo/internal/config"
	"reservo/internal/metrics"
	"reservo/internal/model"
)

// Store is the persistence the importer reads and writes.
type Store interface {
	GetSettings(ctx context.Context, businessID int64) (*model.Settings, error)
	ListExceptions(ctx context.Context, businessID int64, from, to string) ([]model.CalendarException, error)
	UpsertExceptions(ctx context.Context, businessID int64, list []*model.CalendarException) error
	DeleteException(ctx context.Context, businessID int64, date string) error
	ActiveBookingsOnDate(ctx context.Context, businessID int64, date string) ([]model.Booking, error)
	GetBusiness(ctx context.Context, businessID int64) (*model.Business, error)
}

// Regenerator receives detected changes.
type Regenerator interface {
	Handle(ctx context.Context, businessID int64, change *model.ChangeEvent)
}

// Binding attaches a source to the business it feeds.
type Binding struct {
	BusinessID int64
	Source     Source
}

// SyncResult counts what one source sync did.
type SyncResult struct {
	Source        string
	BusinessID    int64
	Upserted      int
	Removed       int
	SkippedManual int
	SkippedBooked int
	Triggered     bool
}

type Importer struct {
	store     Store
	regen     Regenerator
	bindings  []Binding
	lookahead int
	loc       *time.Location
	now       func() time.Time
	logger    *zerolog.Logger
}

func New(store Store, regen Regenerator, bindings []Binding, lookaheadDays int, logger *zerolog.Logger) *Importer {
	if lookaheadDays <= 0 {
		lookaheadDays = 90
	}
	return &Importer{
		store:     store,
		regen:     regen,
		bindings:  bindings,
		lookahead: lookaheadDays,
		loc:       time.UTC,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock overrides the clock used for the import window.
func (im *Importer) WithClock(now func() time.Time) *Importer {
	if now != nil {
		im.now = now
	}
	return im
}

// Run syncs every source on each tick until ctx is done.
func (im *Importer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	im.SyncAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			im.SyncAll(ctx)
		}
	}
}

// SyncAll syncs every bound source. Failures of one source do not stop the
// others.
func (im *Importer) SyncAll(ctx context.Context) ([]SyncResult, error) {
	var (
		results []SyncResult
		errs    []error
	)
	for _, b := range im.bindings {
		res, err := im.Sync(ctx, b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Sync mirrors one source into the exceptions of its business for
// [today, today+lookahead]. Manual exceptions are never touched and imported
// closures never land on dates with active bookings.
func (im *Importer) Sync(ctx context.Context, b Binding) (SyncResult, error) {
	name := b.Source.Name()
	res := SyncResult{Source: name, BusinessID: b.BusinessID}
	log := im.logger.With().Str("source", name).Int64("business_id", b.BusinessID).Logger()

	loc := calendar.BusinessLocation(ctx, im.store, b.BusinessID, im.loc)
	today := calendar.Today(im.now(), loc)
	last := today.AddDate(0, 0, im.lookahead)
	from, to := today.Format(model.DateLayout), last.Format(model.DateLayout)

	events, err := b.Source.Events(ctx, today, last.AddDate(0, 0, 1))
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrSourceUnavailable) {
			outcome = "breaker_open"
		}
		metrics.IncImportRun(name, outcome)
		log.Error().Err(err).Msg("Calendar import failed")
		return res, fmt.Errorf("import %s: %w", name, err)
	}

	existing, err := im.store.ListExceptions(ctx, b.BusinessID, from, to)
	if err != nil {
		metrics.IncImportRun(name, "error")
		return res, fmt.Errorf("import %s: load exceptions: %w", name, err)
	}
	current := make(map[string]model.CalendarException, len(existing))
	for _, ex := range existing {
		current[ex.Date] = ex
	}

	wanted := ToExceptions(events, loc, from, to)
	seen := make(map[string]bool, len(wanted))
	var (
		upserts []*model.CalendarException
		changed []string
		kind    = changes.SpecialEventCreated
	)

	for i := range wanted {
		ex := wanted[i]
		seen[ex.Date] = true

		if prev, ok := current[ex.Date]; ok {
			if prev.Source != model.SourceImport {
				res.SkippedManual++
				continue
			}
			if sameImport(prev, ex) {
				continue
			}
		}
		if !ex.IsOpen {
			bookings, err := im.store.ActiveBookingsOnDate(ctx, b.BusinessID, ex.Date)
			if err != nil {
				metrics.IncImportRun(name, "error")
				return res, fmt.Errorf("import %s: check bookings on %s: %w", name, ex.Date, err)
			}
			if len(bookings) > 0 {
				log.Warn().Str("date", ex.Date).Int("bookings", len(bookings)).
					Msg("Imported closure skipped, date has active bookings")
				res.SkippedBooked++
				continue
			}
			kind = changes.SpecialEventClosed
		}
		ex.BusinessID = b.BusinessID
		upserts = append(upserts, &ex)
		changed = append(changed, ex.Date)
	}

	if len(upserts) > 0 {
		if err := im.store.UpsertExceptions(ctx, b.BusinessID, upserts); err != nil {
			metrics.IncImportRun(name, "error")
			return res, fmt.Errorf("import %s: save exceptions: %w", name, err)
		}
		res.Upserted = len(upserts)
	}

	for _, ex := range existing {
		if ex.Source != model.SourceImport || seen[ex.Date] {
			continue
		}
		if err := im.store.DeleteException(ctx, b.BusinessID, ex.Date); err != nil && !errors.Is(err, model.ErrNotFound) {
			metrics.IncImportRun(name, "error")
			return res, fmt.Errorf("import %s: remove %s: %w", name, ex.Date, err)
		}
		res.Removed++
		changed = append(changed, ex.Date)
	}
	if res.Upserted == 0 && res.Removed > 0 {
		kind = changes.SpecialEventDeleted
	}

	if len(changed) > 0 {
		res.Triggered = im.notify(ctx, b.BusinessID, name, kind, today, changed)
	}

	metrics.IncImportRun(name, "success")
	log.Info().
		Int("upserted", res.Upserted).
		Int("removed", res.Removed).
		Int("skipped_manual", res.SkippedManual).
		Int("skipped_booked", res.SkippedBooked).
		Msg("Calendar import finished")
	return res, nil
}

func (im *Importer) notify(ctx context.Context, businessID int64, source string, kind changes.SpecialEventKind, today time.Time, dates []string) bool {
	if im.regen == nil {
		return false
	}
	horizon := model.DefaultAdvanceDays
	if settings, err := im.store.GetSettings(ctx, businessID); err == nil {
		horizon = settings.Policy.Horizon()
	}

	for _, d := range dates {
		date, err := model.ParseDate(d)
		if err != nil {
			continue
		}
		if change := changes.DetectSpecialEvent(kind, date, today, horizon); change != nil {
			change.Details = fmt.Sprintf("calendar import %s: %d dates changed", source, len(dates))
			im.regen.Handle(ctx, businessID, change)
			return true
		}
	}
	metrics.IncSuppressedEvent(string(kind.Reason()))
	return false
}

func sameImport(a, b model.CalendarException) bool {
	return a.IsOpen == b.IsOpen &&
		a.Reason == b.Reason &&
		a.ExternalID == b.ExternalID &&
		equalPtr(a.OpenTime, b.OpenTime) &&
		equalPtr(a.CloseTime, b.CloseTime)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// BindingsFromConfig builds the configured sources, each behind a breaker.
// Floating event times are read in the zone of the bound business.
func BindingsFromConfig(ctx context.Context, cfg config.ImportConfig, zones calendar.BusinessGetter, cache redis.UniversalClient, logger *zerolog.Logger) ([]Binding, error) {
	var bindings []Binding
	for _, sc := range cfg.Sources {
		loc := time.UTC
		if zones != nil {
			loc = calendar.BusinessLocation(ctx, zones, sc.BusinessID, time.UTC)
		}
		src, err := newSource(ctx, sc, loc, cache, logger)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		bindings = append(bindings, Binding{
			BusinessID: sc.BusinessID,
			Source:     WithBreaker(src, BreakerConfig{}, logger),
		})
	}
	return bindings, nil
}

func newSource(ctx context.Context, sc config.SourceConfig, loc *time.Location, cache redis.UniversalClient, logger *zerolog.Logger) (Source, error) {
	switch sc.Type {
	case "ics":
		return NewICSSource(sc.Name, sc.URL, loc, logger).
			WithCache(cache, time.Duration(sc.CacheTTLMinutes)*time.Minute), nil
	case "caldav":
		return NewCalDAVSource(sc.Name, sc.URL, sc.Username, sc.Password, loc, logger).
			WithCalendarPath(sc.CalendarID), nil
	case "google":
		creds := GoogleCredentials{CredentialsFile: sc.CredentialsFile, AccessToken: sc.AccessToken, Endpoint: sc.URL}
		return NewGoogleSource(ctx, sc.Name, sc.CalendarID, loc, creds.ClientOptions()...)
	default:
		return nil, fmt.Errorf("unknown source type %q", sc.Type)
	}
}
