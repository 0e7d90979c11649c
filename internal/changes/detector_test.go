package changes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/internal/model"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func baseSettings() model.Settings {
	return model.Settings{Hours: model.DefaultWeeklySchedule(), Policy: model.DefaultBookingPolicy()}
}

func TestDetect_Identical(t *testing.T) {
	s := baseSettings()
	assert.Nil(t, Detect(s, s))
	assert.Nil(t, Detect(s, baseSettings()))
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Settings)
		want   model.ChangeReason
	}{
		{
			name: "hours changed",
			mutate: func(s *model.Settings) {
				s.Hours["monday"] = model.DaySchedule{IsOpen: false}
			},
			want: model.ReasonBusinessHoursChanged,
		},
		{
			name:   "advance days changed",
			mutate: func(s *model.Settings) { s.Policy.AdvanceDays = 60 },
			want:   model.ReasonAvailabilitySettingsChanged,
		},
		{
			name:   "min advance minutes changed",
			mutate: func(s *model.Settings) { s.Policy.MinAdvanceMinutes = intPtr(30) },
			want:   model.ReasonAvailabilitySettingsChanged,
		},
		{
			name:   "legacy hours field changed",
			mutate: func(s *model.Settings) { s.Policy.MinBookingHours = floatPtr(4) },
			want:   model.ReasonAvailabilitySettingsChanged,
		},
		{
			name:   "party size changed",
			mutate: func(s *model.Settings) { s.Policy.MaxPartySize = 20 },
			want:   model.ReasonBookingPolicyChanged,
		},
		{
			name:   "confirmation requirement changed",
			mutate: func(s *model.Settings) { s.Policy.RequireConfirmation = true },
			want:   model.ReasonBookingPolicyChanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, next := baseSettings(), baseSettings()
			tt.mutate(&next)
			ev := Detect(prev, next)
			require.NotNil(t, ev)
			assert.Equal(t, tt.want, ev.Reason)
			assert.Equal(t, next.Policy.Horizon(), ev.AdvanceDays)
		})
	}
}

func TestDetect_HoursTakePriority(t *testing.T) {
	prev, next := baseSettings(), baseSettings()
	next.Hours["monday"] = model.DaySchedule{IsOpen: true, Shifts: []model.Shift{{Start: "09:00", End: "18:00"}}}
	next.Policy.AdvanceDays = 90
	next.Policy.MaxPartySize = 2

	ev := Detect(prev, next)
	require.NotNil(t, ev)
	assert.Equal(t, model.ReasonBusinessHoursChanged, ev.Reason)
	assert.Contains(t, ev.Details, "monday")
	assert.Equal(t, 90, ev.AdvanceDays)
}

func TestChangedDays(t *testing.T) {
	base := model.DefaultWeeklySchedule()

	tests := []struct {
		name   string
		mutate func(model.WeeklySchedule)
		want   []string
	}{
		{name: "identical", mutate: func(model.WeeklySchedule) {}},
		{
			name: "legacy pair matches shift",
			mutate: func(w model.WeeklySchedule) {
				w["tuesday"] = model.DaySchedule{IsOpen: true, OpenTime: "09:00", CloseTime: "22:00"}
			},
		},
		{
			name: "sunday opened",
			mutate: func(w model.WeeklySchedule) {
				w["sunday"] = model.DaySchedule{IsOpen: true, Shifts: []model.Shift{{Start: "10:00", End: "14:00"}}}
			},
			want: []string{"sunday"},
		},
		{
			name: "split shift and closed day",
			mutate: func(w model.WeeklySchedule) {
				w["friday"] = model.DaySchedule{IsOpen: true, Shifts: []model.Shift{
					{Start: "09:00", End: "13:00"},
					{Start: "17:00", End: "22:00"},
				}}
				w["saturday"] = model.DaySchedule{IsOpen: false}
			},
			want: []string{"friday", "saturday"},
		},
		{
			name:   "day removed",
			mutate: func(w model.WeeklySchedule) { delete(w, "wednesday") },
			want:   []string{"wednesday"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base.Normalize()
			tt.mutate(next)
			assert.Equal(t, tt.want, changedDays(base, next))
		})
	}
}

func TestDetect_SameHorizonIsNotAChange(t *testing.T) {
	prev, next := baseSettings(), baseSettings()
	prev.Policy.AdvanceDays = 0
	next.Policy.AdvanceDays = model.DefaultAdvanceDays
	assert.Nil(t, Detect(prev, next))

	next.Policy.AdvanceDays = 45
	ev := Detect(prev, next)
	require.NotNil(t, ev)
	assert.Equal(t, model.ReasonAvailabilitySettingsChanged, ev.Reason)
	assert.Equal(t, "advance days 30 -> 45", ev.Details)
}

func TestDetect_NormalizedMinAdvanceIsNotAChange(t *testing.T) {
	prev, next := baseSettings(), baseSettings()
	prev.Policy.MinBookingHours = floatPtr(2)
	next.Policy.MinAdvanceMinutes = intPtr(120)
	assert.Nil(t, Detect(prev, next))
}

func TestDetectSpecialEvent(t *testing.T) {
	today := time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		kind SpecialEventKind
		date time.Time
		days int
		want model.ChangeReason
	}{
		{name: "created today", kind: SpecialEventCreated, date: today, days: 30, want: model.ReasonSpecialEventCreated},
		{name: "closed in horizon", kind: SpecialEventClosed, date: today.AddDate(0, 0, 24), days: 30, want: model.ReasonSpecialEventClosed},
		{name: "deleted at horizon edge", kind: SpecialEventDeleted, date: today.AddDate(0, 0, 30), days: 30, want: model.ReasonSpecialEventDeleted},
		{name: "beyond horizon", kind: SpecialEventClosed, date: today.AddDate(0, 0, 31), days: 30},
		{name: "in the past", kind: SpecialEventCreated, date: today.AddDate(0, 0, -1), days: 30},
		{name: "default horizon", kind: SpecialEventCreated, date: today.AddDate(0, 0, 29), days: 0, want: model.ReasonSpecialEventCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := DetectSpecialEvent(tt.kind, tt.date, today, tt.days)
			if tt.want == "" {
				assert.Nil(t, ev)
				return
			}
			require.NotNil(t, ev)
			assert.Equal(t, tt.want, ev.Reason)
		})
	}
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, SpecialEventCreated, KindFor(model.CalendarException{IsOpen: true}))
	assert.Equal(t, SpecialEventClosed, KindFor(model.CalendarException{IsOpen: false}))
}
