package config

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBusinesses = `
defaults:
  hours:
    monday: {is_open: true, shifts: [{start: "10:00", end: "18:00"}]}
    tuesday: {is_open: true, open_time: "10:00", close_time: "18:00"}
  booking_policy:
    advance_days: 14
    slot_duration_minutes: 60
businesses:
  - id: 1
    name: Trattoria
    vertical: restaurant
    timezone: Europe/Rome
  - id: 2
    name: Smile Clinic
    vertical: clinic
    hours:
      saturday: {is_open: true, shifts: [{start: "09:00", end: "13:00"}, {start: "14:00", end: "17:00"}]}
holidays:
  - date: "2025-12-25"
    name: Christmas
  - date: "2025-08-15"
    name: Ferragosto
    business_ids: [1]
`

func TestLoadBusinessesConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", sampleBusinesses)

	cfg, err := LoadBusinessesConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Businesses, 2)

	trattoria := cfg.Businesses[0]
	assert.Equal(t, "10:00", trattoria.Hours["tuesday"].Shifts[0].Start, "defaults are normalized")
	require.NotNil(t, trattoria.Policy)
	assert.Equal(t, 14, trattoria.Policy.AdvanceDays)

	clinic := cfg.Businesses[1]
	assert.Len(t, clinic.Hours["saturday"].Shifts, 2)
	assert.Equal(t, 14, clinic.Policy.AdvanceDays)

	assert.Len(t, cfg.HolidaysFor(1), 2)
	assert.Len(t, cfg.HolidaysFor(2), 1)
}

func TestBusinessesConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "empty", yaml: "businesses: []", wantErr: "no businesses defined"},
		{name: "bad id", yaml: "businesses: [{id: 0, name: A}]", wantErr: "id must be positive"},
		{name: "duplicate id", yaml: "businesses: [{id: 1, name: A}, {id: 1, name: B}]", wantErr: "duplicate id"},
		{name: "missing name", yaml: "businesses: [{id: 1}]", wantErr: "name is required"},
		{name: "bad timezone", yaml: "businesses: [{id: 1, name: A, timezone: Mars/Base}]", wantErr: "unknown timezone"},
		{
			name:    "invalid hours",
			yaml:    "businesses: [{id: 1, name: A, hours: {monday: {is_open: true, shifts: [{start: '18:00', end: '09:00'}]}}}]",
			wantErr: "shift end must be after start",
		},
		{name: "bad holiday", yaml: "businesses: [{id: 1, name: A}]\nholidays: [{date: 25-12-2025}]", wantErr: "invalid date format"},
		{name: "holiday for unknown business", yaml: "businesses: [{id: 1, name: A}]\nholidays: [{date: '2025-12-25', business_ids: [9]}]", wantErr: "unknown business id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "businesses.yaml", tt.yaml)
			_, err := LoadBusinessesConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestChangedBusinesses(t *testing.T) {
	load := func(content string) *BusinessesConfig {
		cfg, err := parseBusinessesConfig([]byte(content))
		require.NoError(t, err)
		return cfg
	}
	prev := load(sampleBusinesses)

	assert.Same(t, prev, ChangedBusinesses(nil, prev))
	assert.Nil(t, ChangedBusinesses(prev, load(sampleBusinesses)))

	renamed := load(strings.Replace(sampleBusinesses, "name: Trattoria", "name: Trattoria Roma", 1))
	delta := ChangedBusinesses(prev, renamed)
	require.NotNil(t, delta)
	require.Len(t, delta.Businesses, 1)
	assert.Equal(t, int64(1), delta.Businesses[0].ID)
	assert.Len(t, delta.Holidays, 2, "holidays stay complete")

	// Ferragosto only applies to business 1.
	moved := load(strings.Replace(sampleBusinesses, "business_ids: [1]", "business_ids: [2]", 1))
	delta = ChangedBusinesses(prev, moved)
	require.NotNil(t, delta)
	assert.Len(t, delta.Businesses, 2)

	christmas := load(strings.Replace(sampleBusinesses, "name: Christmas", "name: Natale", 1))
	delta = ChangedBusinesses(prev, christmas)
	require.NotNil(t, delta)
	assert.Len(t, delta.Businesses, 2)

	added := load(sampleBusinesses + "\nextra: true\n")
	assert.Nil(t, ChangedBusinesses(prev, added))
}

func TestWatchBusinesses_ReloadsChangedBusinesses(t *testing.T) {
	path := writeFile(t, t.TempDir(), "businesses.yaml", "businesses: [{id: 1, name: A}, {id: 2, name: X}]")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var updates [][]int64
	ids := func() [][]int64 {
		mu.Lock()
		defer mu.Unlock()
		return append([][]int64(nil), updates...)
	}
	err := WatchBusinesses(ctx, path, 10*time.Millisecond, func(cfg *BusinessesConfig) {
		var got []int64
		for _, b := range cfg.Businesses {
			got = append(got, b.ID)
		}
		mu.Lock()
		updates = append(updates, got)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{1, 2}}, ids())

	// Same bytes with a newer mtime is not a change.
	require.NoError(t, os.WriteFile(path, []byte("businesses: [{id: 1, name: A}, {id: 2, name: X}]"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, ids(), 1)

	require.NoError(t, os.WriteFile(path, []byte("businesses: [{id: 1, name: B}, {id: 2, name: X}]"), 0o600))
	require.Eventually(t, func() bool {
		got := ids()
		return len(got) == 2 && assert.ObjectsAreEqual([]int64{1}, got[1])
	}, 2*time.Second, 10*time.Millisecond)

	// A broken file is skipped and the next valid one is diffed against the
	// last applied config.
	require.NoError(t, os.WriteFile(path, []byte("businesses: ["), 0o600))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("businesses: [{id: 1, name: B}, {id: 2, name: Y}]"), 0o600))
	require.Eventually(t, func() bool {
		got := ids()
		return len(got) == 3 && assert.ObjectsAreEqual([]int64{2}, got[2])
	}, 2*time.Second, 10*time.Millisecond)
}
