package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservo/internal/model"
)

// CreateBooking stores a booking. Booking management itself lives outside
// this service; the table is kept so date protection can be checked locally.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking) error {
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO bookings (business_id, booking_date, booking_time, customer_name, resource_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.BusinessID, b.Date, b.Time, b.CustomerName, b.ResourceName, b.Status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

// UpdateBookingStatus changes the status of a booking.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	res, err := db.ExecContext(ctx, "UPDATE bookings SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ActiveBookingsOnDate returns confirmed and pending bookings on a date,
// ordered by time.
func (db *DB) ActiveBookingsOnDate(ctx context.Context, businessID int64, date string) ([]model.Booking, error) {
	return activeBookings(ctx, db.DB, businessID, date)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func activeBookings(ctx context.Context, q queryer, businessID int64, date string) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, business_id, booking_date, booking_time, customer_name, resource_name, status
		FROM bookings
		WHERE business_id = ? AND booking_date = ? AND status IN (?, ?)
		ORDER BY booking_time, id`,
		businessID, date, model.BookingConfirmed, model.BookingPending,
	)
	if err != nil {
		return nil, fmt.Errorf("active bookings on %s: %w", date, err)
	}
	defer rows.Close()

	var result []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.BusinessID, &b.Date, &b.Time, &b.CustomerName, &b.ResourceName, &b.Status); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// HasActiveBookingsOnDate reports whether a date holds confirmed or pending bookings.
func (db *DB) HasActiveBookingsOnDate(ctx context.Context, businessID int64, date string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE business_id = ? AND booking_date = ? AND status IN (?, ?)`,
		businessID, date, model.BookingConfirmed, model.BookingPending,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count active bookings on %s: %w", date, err)
	}
	return count > 0, nil
}
