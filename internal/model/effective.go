package model

// EffectiveDaySchedule is the resolved view of one concrete date. It is
// computed on demand and never persisted.
type EffectiveDaySchedule struct {
	Date            string  `json:"date"`
	IsOpen          bool    `json:"is_open"`
	OpenTime        string  `json:"open_time,omitempty"`
	CloseTime       string  `json:"close_time,omitempty"`
	Shifts          []Shift `json:"shifts,omitempty"`
	IsException     bool    `json:"is_exception"`
	ExceptionReason string  `json:"exception_reason,omitempty"`
}

// EmployeeShift is a recurring employee working interval.
type EmployeeShift struct {
	EmployeeID   int64  `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	DayOfWeek    int    `json:"day_of_week"` // 0-6 (Sunday-Saturday)
	Start        string `json:"start"`
	End          string `json:"end"`
}
