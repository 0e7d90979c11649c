package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservo/internal/model"
)

// SlotsExist reports whether any slots were ever generated for the business.
func (db *DB) SlotsExist(ctx context.Context, businessID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM availability_slots WHERE business_id = ?)", businessID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slots: %w", err)
	}
	return exists, nil
}

// WriteSlots replaces all slots of a date in one transaction. An empty list
// clears the date.
func (db *DB) WriteSlots(ctx context.Context, businessID int64, date string, slots []model.Slot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := replaceSlots(ctx, tx, businessID, date, slots); err != nil {
		return err
	}
	return tx.Commit()
}

// WriteSlotsUnlessBooked replaces the slots of a date only while the date
// holds no confirmed or pending bookings. The delete runs first so the
// transaction owns the write lock before bookings are read; a booking
// committed by anyone else is either visible here or waits for this commit.
// When bookings are found nothing is written and they are returned.
func (db *DB) WriteSlotsUnlessBooked(ctx context.Context, businessID int64, date string, slots []model.Slot) ([]model.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := replaceSlots(ctx, tx, businessID, date, slots); err != nil {
		return nil, err
	}

	booked, err := activeBookings(ctx, tx, businessID, date)
	if err != nil {
		return nil, err
	}
	if len(booked) > 0 {
		return booked, nil
	}

	return nil, tx.Commit()
}

func replaceSlots(ctx context.Context, tx *sql.Tx, businessID int64, date string, slots []model.Slot) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM availability_slots WHERE business_id = ? AND slot_date = ?", businessID, date); err != nil {
		return fmt.Errorf("clear slots %s: %w", date, err)
	}
	if len(slots) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO availability_slots (business_id, slot_date, start_time, end_time, is_available, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, s := range slots {
		if _, err := stmt.ExecContext(ctx, businessID, date, s.Start, s.End, s.Available, now); err != nil {
			return fmt.Errorf("insert slot %s %s: %w", date, s.Start, err)
		}
	}
	return nil
}

// ListSlots returns the slots of a date ordered by start time.
func (db *DB) ListSlots(ctx context.Context, businessID int64, date string) ([]model.Slot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT slot_date, start_time, end_time, is_available
		FROM availability_slots
		WHERE business_id = ? AND slot_date = ?
		ORDER BY start_time`, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots %s: %w", date, err)
	}
	defer rows.Close()

	var result []model.Slot
	for rows.Next() {
		var s model.Slot
		if err := rows.Scan(&s.Date, &s.Start, &s.End, &s.Available); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
