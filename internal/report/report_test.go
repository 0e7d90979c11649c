package report

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"reservo/internal/events"
	"reservo/internal/model"
)

func TestGroup(t *testing.T) {
	tests := []struct {
		name  string
		input []model.ProtectedReservation
		want  []DateGroup
	}{
		{name: "empty", input: nil, want: []DateGroup{}},
		{
			name: "sorted by date, input order kept inside a date",
			input: []model.ProtectedReservation{
				{Date: "2025-10-13", CustomerName: "Late"},
				{Date: "2025-10-06", CustomerName: "B", AppointmentTime: "18:00"},
				{Date: "2025-10-06", CustomerName: "A", AppointmentTime: "09:00"},
			},
			want: []DateGroup{
				{Date: "2025-10-06", Reservations: []model.ProtectedReservation{
					{Date: "2025-10-06", CustomerName: "B", AppointmentTime: "18:00"},
					{Date: "2025-10-06", CustomerName: "A", AppointmentTime: "09:00"},
				}},
				{Date: "2025-10-13", Reservations: []model.ProtectedReservation{
					{Date: "2025-10-13", CustomerName: "Late"},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Group(tt.input))
		})
	}
}

func TestKeeper_FollowsRegenerationSignal(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := events.NewBus(&logger)
	keeper := NewKeeper()
	detach := keeper.Attach(bus)
	defer detach()

	_, ok := keeper.Latest(3)
	assert.False(t, ok)

	bus.Publish(context.Background(), events.NewAvailabilityRegenerated(events.AvailabilityRegenerated{
		BusinessID:   3,
		Reason:       model.ReasonBusinessHoursChanged,
		Success:      true,
		SlotsUpdated: 40,
		ProtectedReservations: []model.ProtectedReservation{
			{Date: "2025-10-20", CustomerName: "Zed"},
			{Date: "2025-10-13", CustomerName: "Amy"},
		},
	}))

	r, ok := keeper.Latest(3)
	require.True(t, ok)
	assert.Equal(t, 40, r.SlotsUpdated)
	require.Len(t, r.Groups, 2)
	assert.Equal(t, "2025-10-13", r.Groups[0].Date)
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestKeeper_KeepsLatestCompletedPass(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := events.NewBus(&logger)
	keeper := NewKeeper()
	defer keeper.Attach(bus)()

	publish := func(p events.AvailabilityRegenerated) {
		p.BusinessID = 5
		bus.Publish(context.Background(), events.NewAvailabilityRegenerated(p))
	}

	publish(events.AvailabilityRegenerated{RunID: "v2", Version: 2, Success: true, SlotsUpdated: 10})

	tests := []struct {
		name    string
		payload events.AvailabilityRegenerated
	}{
		{name: "superseded", payload: events.AvailabilityRegenerated{RunID: "v3", Version: 3, Success: true, Superseded: true}},
		{name: "failed", payload: events.AvailabilityRegenerated{RunID: "v4", Version: 4, ErrorCode: "write_failed"}},
		{name: "older pass arriving late", payload: events.AvailabilityRegenerated{RunID: "v1", Version: 1, Success: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publish(tt.payload)
			r, ok := keeper.Latest(5)
			require.True(t, ok)
			assert.Equal(t, "v2", r.RunID)
		})
	}

	publish(events.AvailabilityRegenerated{RunID: "v5", Version: 5, Success: true, SlotsUpdated: 3})
	r, ok := keeper.Latest(5)
	require.True(t, ok)
	assert.Equal(t, "v5", r.RunID)
	assert.Equal(t, 3, r.SlotsUpdated)
}

func TestWriteXLSX(t *testing.T) {
	r := Report{
		BusinessID:   9,
		Reason:       model.ReasonSpecialEventClosed,
		RunID:        "run-1",
		SlotsUpdated: 12,
		GeneratedAt:  time.Date(2025, 10, 6, 10, 0, 0, 0, time.UTC),
		Groups: Group([]model.ProtectedReservation{
			{Date: "2025-10-07", CustomerName: "Ada", AppointmentTime: "12:00", ResourceName: "Chair 2"},
		}),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, r))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, protectedSheet}, f.GetSheetList())

	rows, err := f.GetRows(protectedSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Date", "Customer", "Time", "Resource"}, rows[0])
	assert.Equal(t, []string{"2025-10-07", "Ada", "12:00", "Chair 2"}, rows[1])

	reason, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSpecialEventClosed.Message(), reason)
}
