package calendar

import (
	"sync"
	"time"

	"reservo/internal/model"
)

type memoKey struct {
	date              string
	scheduleVersion   int64
	exceptionsVersion int64
}

// Memo caches ResolveDay results for one request or session. Entries are
// keyed by date and by the versions of the schedule and exceptions they were
// computed from, so a newer save never reads a stale entry.
type Memo struct {
	mu      sync.Mutex
	entries map[memoKey]model.EffectiveDaySchedule
	hits    int
}

// NewMemo creates an empty cache.
func NewMemo() *Memo {
	return &Memo{entries: make(map[memoKey]model.EffectiveDaySchedule)}
}

// Resolve returns the cached resolution or computes and stores it.
func (m *Memo) Resolve(date time.Time, settings *model.Settings, exceptions map[string]model.CalendarException) model.EffectiveDaySchedule {
	key := memoKey{
		date:              DateKey(date),
		scheduleVersion:   settings.Version,
		exceptionsVersion: settings.ExceptionsVersion,
	}

	m.mu.Lock()
	if day, ok := m.entries[key]; ok {
		m.hits++
		m.mu.Unlock()
		return day
	}
	m.mu.Unlock()

	day := ResolveDay(date, settings.Hours, exceptions)

	m.mu.Lock()
	m.entries[key] = day
	m.mu.Unlock()
	return day
}

// Hits reports how many lookups were served from the cache.
func (m *Memo) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}
