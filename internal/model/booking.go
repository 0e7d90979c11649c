package model

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCanceled  = "canceled"
	BookingCompleted = "completed"
	BookingNoShow    = "no_show"
)

// ActiveBookingStatuses protect a date from regeneration and from closing.
var ActiveBookingStatuses = []string{BookingConfirmed, BookingPending}

// Booking is the part of a reservation this core needs to know about.
type Booking struct {
	ID           int64  `json:"id"`
	BusinessID   int64  `json:"business_id"`
	Date         string `json:"date"` // YYYY-MM-DD
	Time         string `json:"time"` // HH:MM
	CustomerName string `json:"customer_name"`
	ResourceName string `json:"resource_name"`
	Status       string `json:"status"`
}

// IsActive reports whether the booking still holds its slot.
func (b Booking) IsActive() bool {
	return b.Status == BookingConfirmed || b.Status == BookingPending
}

// ProtectedReservation is one booking on a date skipped during regeneration.
type ProtectedReservation struct {
	Date            string `json:"date"`
	CustomerName    string `json:"customer_name"`
	AppointmentTime string `json:"appointment_time"`
	ResourceName    string `json:"resource_name"`
}

// Slot is a materialized bookable unit.
type Slot struct {
	Date      string `json:"date"`
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "10:30"
	Available bool   `json:"available"`
}
