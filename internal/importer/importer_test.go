package importer

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/internal/db"
	"reservo/internal/model"
)

type staticSource struct {
	name   string
	events []ExternalEvent
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Events(_ context.Context, _, _ time.Time) ([]ExternalEvent, error) {
	return s.events, nil
}

type spyRegen struct {
	mu    sync.Mutex
	calls []*model.ChangeEvent
}

func (s *spyRegen) Handle(_ context.Context, _ int64, change *model.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, change)
}

func newTestImporter(t *testing.T, src Source) (*Importer, *db.DB, *spyRegen) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store, err := db.NewDB(filepath.Join(t.TempDir(), "import.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureBusiness(context.Background(), &model.Business{ID: 1, Name: "Salon"}))

	regen := &spyRegen{}
	im := New(store, regen, []Binding{{BusinessID: 1, Source: src}}, 60, &logger).
		WithClock(func() time.Time { return time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC) })
	return im, store, regen
}

func TestImporter_SyncUsesBusinessTimezone(t *testing.T) {
	ctx := context.Background()
	// 02:00-06:00 UTC on December 1 is the evening of November 30 in Honolulu.
	src := &staticSource{name: "luau", events: []ExternalEvent{
		{UID: "luau", Summary: "Luau night", Start: at(1, 2, 0), End: at(1, 6, 0)},
	}}
	im, store, _ := newTestImporter(t, src)
	require.NoError(t, store.EnsureBusiness(ctx, &model.Business{ID: 1, Name: "Salon", Timezone: "Pacific/Honolulu"}))

	res, err := im.Sync(ctx, im.bindings[0])
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)

	ex, err := store.GetException(ctx, 1, "2025-11-30")
	require.NoError(t, err)
	assert.True(t, ex.IsOpen)
	assert.Equal(t, "16:00", *ex.OpenTime)
	assert.Equal(t, "20:00", *ex.CloseTime)

	_, err = store.GetException(ctx, 1, "2025-12-01")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestImporter_Sync(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{name: "shop", events: []ExternalEvent{
		{UID: "xmas", Summary: "Christmas", Start: at(25, 0, 0), End: at(26, 0, 0), AllDay: true},
		{UID: "late", Summary: "Late opening", Start: at(10, 18, 0), End: at(10, 22, 0)},
		{UID: "manual", Summary: "Imported brunch", Start: at(14, 10, 0), End: at(14, 12, 0)},
		{UID: "booked", Summary: "Closed", Start: at(15, 0, 0), End: at(16, 0, 0), AllDay: true},
	}}
	im, store, regen := newTestImporter(t, src)

	require.NoError(t, store.UpsertException(ctx, &model.CalendarException{
		BusinessID: 1, Date: "2025-12-14", IsOpen: true, Reason: "Manual", Source: model.SourceManual,
	}))
	require.NoError(t, store.CreateBooking(ctx, &model.Booking{
		BusinessID: 1, Date: "2025-12-15", Time: "11:00", CustomerName: "Ito", Status: model.BookingConfirmed,
	}))

	res, err := im.Sync(ctx, im.bindings[0])
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 1, res.SkippedManual)
	assert.Equal(t, 1, res.SkippedBooked)
	assert.True(t, res.Triggered)

	manual, err := store.GetException(ctx, 1, "2025-12-14")
	require.NoError(t, err)
	assert.Equal(t, model.SourceManual, manual.Source)
	assert.Equal(t, "Manual", manual.Reason)

	xmas, err := store.GetException(ctx, 1, "2025-12-25")
	require.NoError(t, err)
	assert.False(t, xmas.IsOpen)
	assert.Equal(t, model.SourceImport, xmas.Source)
	assert.Equal(t, "xmas", xmas.ExternalID)

	_, err = store.GetException(ctx, 1, "2025-12-15")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.Len(t, regen.calls, 1)
	assert.Equal(t, model.ReasonSpecialEventClosed, regen.calls[0].Reason)

	// Unchanged feed: nothing is written and nothing is triggered.
	res, err = im.Sync(ctx, im.bindings[0])
	require.NoError(t, err)
	assert.Zero(t, res.Upserted)
	assert.Zero(t, res.Removed)
	assert.Len(t, regen.calls, 1)

	// Events removed from the feed are removed from the store.
	src.events = src.events[1:2]
	res, err = im.Sync(ctx, im.bindings[0])
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	_, err = store.GetException(ctx, 1, "2025-12-25")
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.Len(t, regen.calls, 2)
	assert.Equal(t, model.ReasonSpecialEventDeleted, regen.calls[1].Reason)

	_, err = store.GetException(ctx, 1, "2025-12-14")
	assert.NoError(t, err, "manual rows survive stale cleanup")
}

func TestImporter_OutsideHorizon(t *testing.T) {
	src := &staticSource{name: "far", events: []ExternalEvent{
		{UID: "feb", Start: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 21, 0, 0, 0, 0, time.UTC), AllDay: true},
	}}
	im, store, regen := newTestImporter(t, src)

	res, err := im.Sync(context.Background(), im.bindings[0])
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted, "stored inside the lookahead window")
	assert.False(t, res.Triggered, "but beyond the booking horizon")
	assert.Empty(t, regen.calls)

	_, err = store.GetException(context.Background(), 1, "2026-01-20")
	assert.NoError(t, err)
}

func TestImporter_SyncAllReportsFailures(t *testing.T) {
	logger := zerolog.New(io.Discard)
	failing := WithBreaker(&mockFailing{}, BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour}, &logger)
	im, _, _ := newTestImporter(t, &staticSource{name: "ok"})
	im.bindings = append(im.bindings, Binding{BusinessID: 1, Source: failing})

	results, err := im.SyncAll(context.Background())
	require.Error(t, err)
	assert.Len(t, results, 1)

	_, err = im.SyncAll(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

type mockFailing struct{}

func (mockFailing) Name() string { return "failing" }

func (mockFailing) Events(context.Context, time.Time, time.Time) ([]ExternalEvent, error) {
	return nil, assert.AnError
}
