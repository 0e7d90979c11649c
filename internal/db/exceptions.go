package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reservo/internal/model"
)

const exceptionColumns = `id, business_id, exception_date, is_open, open_time, close_time,
	reason, source, external_id, created_at, updated_at`

// ListExceptions returns exceptions of a business within [from, to] ordered by
// date. Empty bounds are open-ended.
func (db *DB) ListExceptions(ctx context.Context, businessID int64, from, to string) ([]model.CalendarException, error) {
	query := "SELECT " + exceptionColumns + " FROM calendar_exceptions WHERE business_id = ?"
	args := []interface{}{businessID}
	if from != "" {
		query += " AND exception_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND exception_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY exception_date"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var result []model.CalendarException
	for rows.Next() {
		ex, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ex)
	}
	return result, rows.Err()
}

// GetException returns the exception stored for a date.
func (db *DB) GetException(ctx context.Context, businessID int64, date string) (*model.CalendarException, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+exceptionColumns+" FROM calendar_exceptions WHERE business_id = ? AND exception_date = ?",
		businessID, date,
	)
	ex, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return ex, err
}

// UpsertException writes a single exception.
func (db *DB) UpsertException(ctx context.Context, ex *model.CalendarException) error {
	return db.UpsertExceptions(ctx, ex.BusinessID, []*model.CalendarException{ex})
}

// UpsertExceptions writes all exceptions in one transaction, replacing any
// existing row for the same date, and bumps the exceptions version once.
func (db *DB) UpsertExceptions(ctx context.Context, businessID int64, list []*model.CalendarException) error {
	if len(list) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, ex := range list {
		ex.BusinessID = businessID
		if ex.Source == "" {
			ex.Source = model.SourceManual
		}
		if !ex.IsOpen {
			ex.OpenTime, ex.CloseTime = nil, nil
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO calendar_exceptions
				(business_id, exception_date, is_open, open_time, close_time, reason, source, external_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(business_id, exception_date) DO UPDATE SET
				is_open = excluded.is_open,
				open_time = excluded.open_time,
				close_time = excluded.close_time,
				reason = excluded.reason,
				source = excluded.source,
				external_id = excluded.external_id,
				updated_at = excluded.updated_at`,
			businessID, ex.Date, ex.IsOpen, nullString(ex.OpenTime), nullString(ex.CloseTime),
			ex.Reason, string(ex.Source), ex.ExternalID, now, now,
		)
		if err != nil {
			return fmt.Errorf("upsert exception %s: %w", ex.Date, err)
		}
		if err := tx.QueryRowContext(ctx,
			"SELECT id, created_at FROM calendar_exceptions WHERE business_id = ? AND exception_date = ?",
			businessID, ex.Date,
		).Scan(&ex.ID, &ex.CreatedAt); err != nil {
			return fmt.Errorf("read exception %s: %w", ex.Date, err)
		}
		ex.UpdatedAt = now
	}

	if err := bumpExceptionsVersion(ctx, tx, businessID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteException removes the exception for a date, re-exposing the weekly schedule.
func (db *DB) DeleteException(ctx context.Context, businessID int64, date string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM calendar_exceptions WHERE business_id = ? AND exception_date = ?", businessID, date)
	if err != nil {
		return fmt.Errorf("delete exception %s: %w", date, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}

	if err := bumpExceptionsVersion(ctx, tx, businessID); err != nil {
		return err
	}
	return tx.Commit()
}

func bumpExceptionsVersion(ctx context.Context, tx *sql.Tx, businessID int64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE business_settings SET exceptions_version = exceptions_version + 1 WHERE business_id = ?", businessID)
	if err != nil {
		return fmt.Errorf("bump exceptions version: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanException(row rowScanner) (*model.CalendarException, error) {
	var (
		ex            model.CalendarException
		openT, closeT sql.NullString
		source        string
	)
	if err := row.Scan(&ex.ID, &ex.BusinessID, &ex.Date, &ex.IsOpen, &openT, &closeT,
		&ex.Reason, &source, &ex.ExternalID, &ex.CreatedAt, &ex.UpdatedAt); err != nil {
		return nil, err
	}
	ex.OpenTime = stringPtr(openT)
	ex.CloseTime = stringPtr(closeT)
	ex.Source = model.ExceptionSource(source)
	return &ex, nil
}
