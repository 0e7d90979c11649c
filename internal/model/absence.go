package model

import "time"

// AbsenceReason classifies employee unavailability.
type AbsenceReason string

const (
	AbsenceVacation           AbsenceReason = "vacation"
	AbsenceSickLeave          AbsenceReason = "sick_leave"
	AbsenceMedicalAppointment AbsenceReason = "medical_appointment"
	AbsencePersonalLeave      AbsenceReason = "personal_leave"
	AbsenceOther              AbsenceReason = "other"
)

// Valid reports whether r is one of the known reasons.
func (r AbsenceReason) Valid() bool {
	switch r {
	case AbsenceVacation, AbsenceSickLeave, AbsenceMedicalAppointment, AbsencePersonalLeave, AbsenceOther:
		return true
	}
	return false
}

// EmployeeAbsence is an informational overlay; it never changes whether the
// business itself is open.
type EmployeeAbsence struct {
	ID           int64         `json:"id"`
	BusinessID   int64         `json:"business_id"`
	EmployeeID   int64         `json:"employee_id"`
	EmployeeName string        `json:"employee_name"`
	StartDate    string        `json:"start_date"` // inclusive
	EndDate      string        `json:"end_date"`   // inclusive
	AllDay       bool          `json:"all_day"`
	StartTime    *string       `json:"start_time,omitempty"`
	EndTime      *string       `json:"end_time,omitempty"`
	Reason       AbsenceReason `json:"reason"`
	Approved     bool          `json:"approved"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Covers reports whether the absence spans the given date key.
func (a EmployeeAbsence) Covers(dateKey string) bool {
	return a.StartDate <= dateKey && dateKey <= a.EndDate
}
