package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reservo/internal/model"
)

// EnsureBusiness creates the business with default hours and policy unless it
// already exists. Existing names are refreshed.
func (db *DB) EnsureBusiness(ctx context.Context, b *model.Business) error {
	tz := b.Timezone
	if tz == "" {
		tz = "UTC"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO businesses (id, name, vertical, timezone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			vertical = excluded.vertical,
			timezone = excluded.timezone`,
		b.ID, b.Name, b.Vertical, tz, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert business: %w", err)
	}

	hours, err := json.Marshal(model.DefaultWeeklySchedule())
	if err != nil {
		return fmt.Errorf("marshal hours: %w", err)
	}
	policy, err := json.Marshal(model.DefaultBookingPolicy())
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO business_settings (business_id, hours, booking_policy, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(business_id) DO NOTHING`,
		b.ID, string(hours), string(policy), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert default settings: %w", err)
	}

	return tx.Commit()
}

// GetBusiness returns a business by ID.
func (db *DB) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	var b model.Business
	err := db.QueryRowContext(ctx,
		"SELECT id, name, vertical, timezone, created_at FROM businesses WHERE id = ?", id,
	).Scan(&b.ID, &b.Name, &b.Vertical, &b.Timezone, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get business %d: %w", id, err)
	}
	return &b, nil
}

// ListBusinesses returns all businesses ordered by ID.
func (db *DB) ListBusinesses(ctx context.Context) ([]model.Business, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, name, vertical, timezone, created_at FROM businesses ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	var result []model.Business
	for rows.Next() {
		var b model.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Vertical, &b.Timezone, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// GetSettings loads the settings blob of a business.
func (db *DB) GetSettings(ctx context.Context, businessID int64) (*model.Settings, error) {
	var (
		hoursJSON, policyJSON string
		s                     = model.Settings{BusinessID: businessID}
	)
	err := db.QueryRowContext(ctx, `
		SELECT hours, booking_policy, version, exceptions_version
		FROM business_settings WHERE business_id = ?`, businessID,
	).Scan(&hoursJSON, &policyJSON, &s.Version, &s.ExceptionsVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings %d: %w", businessID, err)
	}

	if err := json.Unmarshal([]byte(hoursJSON), &s.Hours); err != nil {
		return nil, fmt.Errorf("decode hours: %w", err)
	}
	if err := json.Unmarshal([]byte(policyJSON), &s.Policy); err != nil {
		return nil, fmt.Errorf("decode booking policy: %w", err)
	}
	return &s, nil
}

// SaveSettings overwrites hours and policy and bumps the settings version.
// Concurrent saves are last-write-wins.
func (db *DB) SaveSettings(ctx context.Context, s *model.Settings) error {
	hours, err := json.Marshal(s.Hours.Normalize())
	if err != nil {
		return fmt.Errorf("marshal hours: %w", err)
	}
	policy, err := json.Marshal(s.Policy)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE business_settings
		SET hours = ?, booking_policy = ?, version = version + 1, updated_at = ?
		WHERE business_id = ?`,
		string(hours), string(policy), time.Now().UTC(), s.BusinessID,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT version, exceptions_version FROM business_settings WHERE business_id = ?", s.BusinessID,
	).Scan(&s.Version, &s.ExceptionsVersion); err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	return tx.Commit()
}

// GetWeeklySchedule returns only the hours part of the settings.
func (db *DB) GetWeeklySchedule(ctx context.Context, businessID int64) (model.WeeklySchedule, error) {
	s, err := db.GetSettings(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return s.Hours, nil
}

// SaveWeeklySchedule replaces the hours and keeps the booking policy.
func (db *DB) SaveWeeklySchedule(ctx context.Context, businessID int64, hours model.WeeklySchedule) error {
	s, err := db.GetSettings(ctx, businessID)
	if err != nil {
		return err
	}
	s.Hours = hours
	return db.SaveSettings(ctx, s)
}
