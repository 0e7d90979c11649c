package calendar

import (
	"context"
	"time"

	"reservo/internal/model"
)

// BusinessGetter loads a business record.
type BusinessGetter interface {
	GetBusiness(ctx context.Context, businessID int64) (*model.Business, error)
}

// BusinessLocation returns the time zone of a business. fallback is used
// when the business cannot be loaded; UTC when fallback is nil too.
func BusinessLocation(ctx context.Context, store BusinessGetter, businessID int64, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	b, err := store.GetBusiness(ctx, businessID)
	if err != nil || b == nil {
		return fallback
	}
	return b.LocationOr(fallback)
}

// Today returns the calendar date of now in loc, at midnight in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
