package model

import "math"

const (
	DefaultAdvanceDays         = 30
	DefaultMinAdvanceMinutes   = 120
	DefaultSlotDurationMinutes = 30
)

// BookingPolicy carries the booking rules stored alongside business hours.
type BookingPolicy struct {
	AdvanceDays       int  `json:"advance_days" yaml:"advance_days"`
	MinAdvanceMinutes *int `json:"min_advance_minutes,omitempty" yaml:"min_advance_minutes,omitempty"`
	// Legacy lead time in hours, read only when MinAdvanceMinutes is absent.
	MinBookingHours     *float64 `json:"min_booking_hours,omitempty" yaml:"min_booking_hours,omitempty"`
	MinPartySize        int      `json:"min_party_size" yaml:"min_party_size"`
	MaxPartySize        int      `json:"max_party_size" yaml:"max_party_size"`
	CancellationHours   int      `json:"cancellation_hours" yaml:"cancellation_hours"`
	RequireConfirmation bool     `json:"require_confirmation" yaml:"require_confirmation"`
	SlotDurationMinutes int      `json:"slot_duration_minutes" yaml:"slot_duration_minutes"`
}

// DefaultBookingPolicy is used for freshly created businesses.
func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{
		AdvanceDays:         DefaultAdvanceDays,
		MinPartySize:        1,
		MaxPartySize:        10,
		CancellationHours:   24,
		SlotDurationMinutes: DefaultSlotDurationMinutes,
	}
}

// EffectiveMinAdvanceMinutes resolves min_advance_minutes, then the legacy
// hours field, then the 120 minute default.
func (p BookingPolicy) EffectiveMinAdvanceMinutes() int {
	if p.MinAdvanceMinutes != nil {
		return *p.MinAdvanceMinutes
	}
	if p.MinBookingHours != nil {
		return int(math.Round(*p.MinBookingHours * 60))
	}
	return DefaultMinAdvanceMinutes
}

// Horizon is the regeneration look-ahead in days.
func (p BookingPolicy) Horizon() int {
	if p.AdvanceDays <= 0 {
		return DefaultAdvanceDays
	}
	return p.AdvanceDays
}

// SlotDuration returns the configured slot length in minutes.
func (p BookingPolicy) SlotDuration() int {
	if p.SlotDurationMinutes <= 0 {
		return DefaultSlotDurationMinutes
	}
	return p.SlotDurationMinutes
}

// Settings is the per-business settings blob.
type Settings struct {
	BusinessID int64          `json:"business_id"`
	Hours      WeeklySchedule `json:"hours"`
	Policy     BookingPolicy  `json:"booking_policy"`
	// Version increments on every save of the blob.
	Version int64 `json:"version"`
	// ExceptionsVersion increments on every exception upsert or delete.
	ExceptionsVersion int64 `json:"exceptions_version"`
}
