package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a write before anything is stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ShiftConflict is an employee shift interval not covered by business hours.
type ShiftConflict struct {
	EmployeeID   int64  `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Day          string `json:"day"`
	Start        string `json:"start"` // uncovered interval
	End          string `json:"end"`
	ShiftStart   string `json:"shift_start"`
	ShiftEnd     string `json:"shift_end"`
}

// ConflictError asks the caller to either fix the input or save with force.
type ConflictError struct {
	Conflicts []ShiftConflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s %s %s-%s", c.EmployeeName, c.Day, c.Start, c.End))
	}
	return "business hours do not cover employee shifts: " + strings.Join(parts, ", ")
}
