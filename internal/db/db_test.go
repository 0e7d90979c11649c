package db

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/internal/config"
	"reservo/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureBusiness(context.Background(), &model.Business{ID: 1, Name: "Trattoria"}))
	return db
}

func TestEnsureBusiness_Defaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.True(t, s.Hours.Equal(model.DefaultWeeklySchedule()))
	assert.Equal(t, model.DefaultBookingPolicy(), s.Policy)
	assert.Equal(t, int64(1), s.Version)

	// A second call keeps the stored settings.
	s.Hours["sunday"] = model.DaySchedule{IsOpen: true, Shifts: []model.Shift{{Start: "10:00", End: "14:00"}}}
	require.NoError(t, db.SaveSettings(ctx, s))
	require.NoError(t, db.EnsureBusiness(ctx, &model.Business{ID: 1, Name: "Trattoria Roma"}))

	got, err := db.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Hours["sunday"].IsOpen)

	b, err := db.GetBusiness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Trattoria Roma", b.Name)
	assert.Equal(t, "UTC", b.Timezone)
}

func TestGetSettings_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetSettings(context.Background(), 42)
	assert.ErrorIs(t, err, model.ErrNotFound)

	err = db.SaveSettings(context.Background(), &model.Settings{BusinessID: 42, Hours: model.DefaultWeeklySchedule()})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSaveSettings_RoundTripAndVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	minutes := 45
	s, err := db.GetSettings(ctx, 1)
	require.NoError(t, err)
	s.Policy.MinAdvanceMinutes = &minutes
	s.Hours["monday"] = model.DaySchedule{IsOpen: true, OpenTime: "08:00", CloseTime: "12:00"}

	require.NoError(t, db.SaveSettings(ctx, s))
	assert.Equal(t, int64(2), s.Version)

	got, err := db.GetSettings(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.Policy.MinAdvanceMinutes)
	assert.Equal(t, 45, *got.Policy.MinAdvanceMinutes)
	assert.Equal(t, []model.Shift{{Start: "08:00", End: "12:00"}}, got.Hours["monday"].Shifts)

	hours, err := db.GetWeeklySchedule(ctx, 1)
	require.NoError(t, err)
	assert.True(t, hours.Equal(got.Hours))
}

func TestExceptions_UpsertListDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	closed := &model.CalendarException{BusinessID: 1, Date: "2025-12-25", Reason: "Christmas"}
	require.NoError(t, db.UpsertException(ctx, closed))
	assert.NotZero(t, closed.ID)
	assert.Equal(t, model.SourceManual, closed.Source)

	open := &model.CalendarException{
		Date: "2025-12-24", IsOpen: true,
		OpenTime: model.StrPtr("10:00"), CloseTime: model.StrPtr("15:00"),
	}
	require.NoError(t, db.UpsertExceptions(ctx, 1, []*model.CalendarException{open}))

	list, err := db.ListExceptions(ctx, 1, "2025-12-01", "2025-12-31")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2025-12-24", list[0].Date)
	assert.Equal(t, "15:00", *list[0].CloseTime)
	assert.Nil(t, list[1].OpenTime)

	// Same date replaces the row instead of adding one.
	replaced := &model.CalendarException{BusinessID: 1, Date: "2025-12-25", IsOpen: true, OpenTime: model.StrPtr("12:00"), CloseTime: model.StrPtr("16:00")}
	require.NoError(t, db.UpsertException(ctx, replaced))
	assert.Equal(t, closed.ID, replaced.ID)

	got, err := db.GetException(ctx, 1, "2025-12-25")
	require.NoError(t, err)
	assert.True(t, got.IsOpen)

	s, err := db.GetSettings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.ExceptionsVersion)

	require.NoError(t, db.DeleteException(ctx, 1, "2025-12-25"))
	_, err = db.GetException(ctx, 1, "2025-12-25")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, db.DeleteException(ctx, 1, "2025-12-25"), model.ErrNotFound)

	all, err := db.ListExceptions(ctx, 1, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestClosedExceptionDropsTimes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ex := &model.CalendarException{BusinessID: 1, Date: "2025-11-01", OpenTime: model.StrPtr("10:00"), CloseTime: model.StrPtr("12:00")}
	require.NoError(t, db.UpsertException(ctx, ex))

	got, err := db.GetException(ctx, 1, "2025-11-01")
	require.NoError(t, err)
	assert.Nil(t, got.OpenTime)
	assert.Nil(t, got.CloseTime)
}

func TestApprovedAbsences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	absences := []model.EmployeeAbsence{
		{BusinessID: 1, EmployeeID: 1, EmployeeName: "Ann", StartDate: "2025-10-01", EndDate: "2025-10-10", AllDay: true, Reason: model.AbsenceVacation, Approved: true},
		{BusinessID: 1, EmployeeID: 2, EmployeeName: "Bob", StartDate: "2025-10-05", EndDate: "2025-10-05", StartTime: model.StrPtr("10:00"), EndTime: model.StrPtr("12:00"), Reason: model.AbsenceMedicalAppointment, Approved: true},
		{BusinessID: 1, EmployeeID: 3, EmployeeName: "Cid", StartDate: "2025-10-05", EndDate: "2025-10-05", AllDay: true, Reason: model.AbsenceSickLeave, Approved: false},
		{BusinessID: 1, EmployeeID: 4, EmployeeName: "Dee", StartDate: "2025-11-01", EndDate: "2025-11-02", AllDay: true, Reason: model.AbsenceOther, Approved: true},
	}
	for i := range absences {
		require.NoError(t, db.CreateAbsence(ctx, &absences[i]))
	}

	got, err := db.ListApprovedAbsences(ctx, 1, "2025-10-05", "2025-10-06")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ann", got[0].EmployeeName)
	assert.Equal(t, "Bob", got[1].EmployeeName)
	assert.Equal(t, "10:00", *got[1].StartTime)
	assert.Equal(t, model.AbsenceMedicalAppointment, got[1].Reason)
}

func TestEmployeeShifts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateEmployeeShift(ctx, 1, model.EmployeeShift{EmployeeID: 7, EmployeeName: "Eve", DayOfWeek: 2, Start: "12:00", End: "20:00"}))
	require.NoError(t, db.CreateEmployeeShift(ctx, 1, model.EmployeeShift{EmployeeID: 7, EmployeeName: "Eve", DayOfWeek: 1, Start: "09:00", End: "17:00"}))

	got, err := db.ListEmployeeShifts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].DayOfWeek)

	none, err := db.ListEmployeeShifts(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestActiveBookingsOnDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	bookings := []model.Booking{
		{BusinessID: 1, Date: "2025-10-06", Time: "19:00", CustomerName: "Late", Status: model.BookingConfirmed},
		{BusinessID: 1, Date: "2025-10-06", Time: "12:00", CustomerName: "Early", ResourceName: "Table 4"},
		{BusinessID: 1, Date: "2025-10-06", Time: "13:00", CustomerName: "Gone", Status: model.BookingCanceled},
		{BusinessID: 1, Date: "2025-10-07", Time: "13:00", CustomerName: "Other day", Status: model.BookingConfirmed},
	}
	for i := range bookings {
		require.NoError(t, db.CreateBooking(ctx, &bookings[i]))
	}

	got, err := db.ActiveBookingsOnDate(ctx, 1, "2025-10-06")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Early", got[0].CustomerName)
	assert.Equal(t, model.BookingPending, got[0].Status)
	assert.Equal(t, "Late", got[1].CustomerName)

	has, err := db.HasActiveBookingsOnDate(ctx, 1, "2025-10-08")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, db.UpdateBookingStatus(ctx, bookings[3].ID, model.BookingCanceled))
	has, err = db.HasActiveBookingsOnDate(ctx, 1, "2025-10-07")
	require.NoError(t, err)
	assert.False(t, has)
	assert.ErrorIs(t, db.UpdateBookingStatus(ctx, 999, model.BookingCanceled), model.ErrNotFound)
}

func TestSlots_WriteReplacesDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	exists, err := db.SlotsExist(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	first := []model.Slot{
		{Date: "2025-10-06", Start: "09:00", End: "09:30", Available: true},
		{Date: "2025-10-06", Start: "09:30", End: "10:00", Available: true},
	}
	require.NoError(t, db.WriteSlots(ctx, 1, "2025-10-06", first))
	require.NoError(t, db.WriteSlots(ctx, 1, "2025-10-07", first[:1]))

	exists, err = db.SlotsExist(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	second := []model.Slot{{Date: "2025-10-06", Start: "12:00", End: "13:00", Available: false}}
	require.NoError(t, db.WriteSlots(ctx, 1, "2025-10-06", second))

	got, err := db.ListSlots(ctx, 1, "2025-10-06")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	other, err := db.ListSlots(ctx, 1, "2025-10-07")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	require.NoError(t, db.WriteSlots(ctx, 1, "2025-10-07", nil))
	other, err = db.ListSlots(ctx, 1, "2025-10-07")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSlots_WriteUnlessBooked(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	original := []model.Slot{{Date: "2025-10-06", Start: "09:00", End: "10:00", Available: true}}
	require.NoError(t, db.WriteSlots(ctx, 1, "2025-10-06", original))

	fresh := []model.Slot{
		{Date: "2025-10-06", Start: "10:00", End: "11:00", Available: true},
		{Date: "2025-10-06", Start: "11:00", End: "12:00", Available: true},
	}
	booked, err := db.WriteSlotsUnlessBooked(ctx, 1, "2025-10-06", fresh)
	require.NoError(t, err)
	assert.Empty(t, booked)
	got, err := db.ListSlots(ctx, 1, "2025-10-06")
	require.NoError(t, err)
	assert.Equal(t, fresh, got)

	b := &model.Booking{BusinessID: 1, Date: "2025-10-06", Time: "10:00", CustomerName: "Gil", Status: model.BookingPending}
	require.NoError(t, db.CreateBooking(ctx, b))

	booked, err = db.WriteSlotsUnlessBooked(ctx, 1, "2025-10-06", original)
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, "Gil", booked[0].CustomerName)

	got, err = db.ListSlots(ctx, 1, "2025-10-06")
	require.NoError(t, err)
	assert.Equal(t, fresh, got, "booked date keeps its slots")

	require.NoError(t, db.UpdateBookingStatus(ctx, b.ID, model.BookingCanceled))
	booked, err = db.WriteSlotsUnlessBooked(ctx, 1, "2025-10-06", original)
	require.NoError(t, err)
	assert.Empty(t, booked)
}

func TestBackupService_PerformBackup(t *testing.T) {
	db := newTestDB(t)
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	svc := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: dir, RetentionDays: 7}, &logger)
	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	svc.CleanupOldBackups()
	_, err = os.Stat(path)
	assert.NoError(t, err, "fresh backups are kept")
}
