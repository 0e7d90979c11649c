package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservo/internal/model"
)

// CreateAbsence stores an employee absence.
func (db *DB) CreateAbsence(ctx context.Context, a *model.EmployeeAbsence) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO employee_absences
			(business_id, employee_id, employee_name, start_date, end_date, all_day, start_time, end_time, reason, approved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.BusinessID, a.EmployeeID, a.EmployeeName, a.StartDate, a.EndDate, a.AllDay,
		nullString(a.StartTime), nullString(a.EndTime), string(a.Reason), a.Approved, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// ListApprovedAbsences returns approved absences overlapping [from, to].
func (db *DB) ListApprovedAbsences(ctx context.Context, businessID int64, from, to string) ([]model.EmployeeAbsence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, business_id, employee_id, employee_name, start_date, end_date, all_day,
			start_time, end_time, reason, approved, created_at
		FROM employee_absences
		WHERE business_id = ? AND approved = 1 AND start_date <= ? AND end_date >= ?
		ORDER BY start_date, id`,
		businessID, to, from,
	)
	if err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	defer rows.Close()

	var result []model.EmployeeAbsence
	for rows.Next() {
		var (
			a            model.EmployeeAbsence
			startT, endT sql.NullString
			reason       string
		)
		if err := rows.Scan(&a.ID, &a.BusinessID, &a.EmployeeID, &a.EmployeeName, &a.StartDate, &a.EndDate,
			&a.AllDay, &startT, &endT, &reason, &a.Approved, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.StartTime = stringPtr(startT)
		a.EndTime = stringPtr(endT)
		a.Reason = model.AbsenceReason(reason)
		result = append(result, a)
	}
	return result, rows.Err()
}

// CreateEmployeeShift stores a recurring employee shift.
func (db *DB) CreateEmployeeShift(ctx context.Context, businessID int64, s model.EmployeeShift) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO employee_shifts (business_id, employee_id, employee_name, day_of_week, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		businessID, s.EmployeeID, s.EmployeeName, s.DayOfWeek, s.Start, s.End,
	)
	if err != nil {
		return fmt.Errorf("create employee shift: %w", err)
	}
	return nil
}

// ListEmployeeShifts returns all recurring shifts of a business.
func (db *DB) ListEmployeeShifts(ctx context.Context, businessID int64) ([]model.EmployeeShift, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT employee_id, employee_name, day_of_week, start_time, end_time
		FROM employee_shifts WHERE business_id = ?
		ORDER BY day_of_week, start_time, employee_id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list employee shifts: %w", err)
	}
	defer rows.Close()

	var result []model.EmployeeShift
	for rows.Next() {
		var s model.EmployeeShift
		if err := rows.Scan(&s.EmployeeID, &s.EmployeeName, &s.DayOfWeek, &s.Start, &s.End); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
