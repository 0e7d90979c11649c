package schedule

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"reservo/internal/db"
	"reservo/internal/events"
	"reservo/internal/model"
)

type spyRegen struct {
	mu    sync.Mutex
	calls []*model.ChangeEvent
}

func (s *spyRegen) Handle(_ context.Context, _ int64, change *model.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, change)
}

func (s *spyRegen) reasons() []model.ChangeReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ChangeReason
	for _, c := range s.calls {
		out = append(out, c.Reason)
	}
	return out
}

type testEnv struct {
	store      *db.DB
	bus        *events.Bus
	regen      *spyRegen
	loader     *Loader
	settings   *SettingsService
	exceptions *ExceptionService
	calendar   *CalendarService
	clock      Clock
	logger     *zerolog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store, err := db.NewDB(filepath.Join(t.TempDir(), "schedule.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureBusiness(context.Background(), &model.Business{ID: 1, Name: "Bistro"}))

	env := &testEnv{
		store:  store,
		bus:    events.NewBus(&logger),
		regen:  &spyRegen{},
		clock:  func() time.Time { return time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC) },
		logger: &logger,
	}
	env.loader = NewLoader(store)
	env.settings = NewSettingsService(store, env.loader, env.bus, env.regen, &logger)
	env.exceptions = NewExceptionService(store, env.loader, env.regen, env.clock, &logger)
	env.calendar = NewCalendarService(store, env.loader)
	return env
}

func hoursWith(day string, d model.DaySchedule) model.WeeklySchedule {
	h := model.DefaultWeeklySchedule()
	h[day] = d
	return h
}

func openDay(start, end string) model.DaySchedule {
	return model.DaySchedule{IsOpen: true, Shifts: []model.Shift{{Start: start, End: end}}}
}

func intPtr(v int) *int { return &v }
