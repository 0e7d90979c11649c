package model

import "time"

// ExceptionSource tells manual events apart from imported calendar events.
type ExceptionSource string

const (
	SourceManual ExceptionSource = "manual"
	SourceImport ExceptionSource = "import"
)

// CalendarException overrides the weekly schedule for a single date.
type CalendarException struct {
	ID         int64           `json:"id"`
	BusinessID int64           `json:"business_id"`
	Date       string          `json:"exception_date"` // YYYY-MM-DD
	IsOpen     bool            `json:"is_open"`
	OpenTime   *string         `json:"open_time"`  // nil when closed
	CloseTime  *string         `json:"close_time"` // nil when closed
	Reason     string          `json:"reason"`
	Source     ExceptionSource `json:"source"`
	ExternalID string          `json:"external_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// StrPtr is a small helper for optional time fields.
func StrPtr(s string) *string {
	return &s
}
