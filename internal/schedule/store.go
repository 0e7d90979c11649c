// Package schedule is the application layer over the availability core:
// saving hours and policy, managing special events, resolving calendars and
// applying businesses.yaml.
package schedule

import (
	"context"
	"time"

	"reservo/internal/calendar"
	"reservo/internal/model"
)

// Store is the persistence the application services need.
type Store interface {
	EnsureBusiness(ctx context.Context, b *model.Business) error
	GetBusiness(ctx context.Context, businessID int64) (*model.Business, error)
	GetSettings(ctx context.Context, businessID int64) (*model.Settings, error)
	SaveSettings(ctx context.Context, s *model.Settings) error
	ListEmployeeShifts(ctx context.Context, businessID int64) ([]model.EmployeeShift, error)
	ListExceptions(ctx context.Context, businessID int64, from, to string) ([]model.CalendarException, error)
	UpsertExceptions(ctx context.Context, businessID int64, list []*model.CalendarException) error
	DeleteException(ctx context.Context, businessID int64, date string) error
	ActiveBookingsOnDate(ctx context.Context, businessID int64, date string) ([]model.Booking, error)
	ListApprovedAbsences(ctx context.Context, businessID int64, from, to string) ([]model.EmployeeAbsence, error)
}

// Regenerator reacts to detected changes, typically in the background.
type Regenerator interface {
	Handle(ctx context.Context, businessID int64, change *model.ChangeEvent)
}

// MaxRangeDays bounds date ranges of special events and calendar queries.
const MaxRangeDays = 366

// Clock returns "now" for horizon checks.
type Clock func() time.Time

// today returns the current date of the business zone loc.
func (c Clock) today(loc *time.Location) time.Time {
	now := time.Now()
	if c != nil {
		now = c()
	}
	return model.DateOnly(calendar.Today(now, loc))
}

func businessLocation(ctx context.Context, store Store, businessID int64) *time.Location {
	return calendar.BusinessLocation(ctx, store, businessID, nil)
}
