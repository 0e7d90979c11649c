package model

// ChangeReason explains why availability has to be regenerated.
type ChangeReason string

const (
	ReasonBusinessHoursChanged        ChangeReason = "business_hours_changed"
	ReasonAvailabilitySettingsChanged ChangeReason = "availability_settings_changed"
	ReasonBookingPolicyChanged        ChangeReason = "booking_policy_changed"
	ReasonSpecialEventCreated         ChangeReason = "special_event_created"
	ReasonSpecialEventClosed          ChangeReason = "special_event_closed"
	ReasonSpecialEventDeleted         ChangeReason = "special_event_deleted"
	ReasonManual                      ChangeReason = "manual"
	ReasonConfigSync                  ChangeReason = "config_sync"
)

// Message is the user-facing text shown after a regeneration.
func (r ChangeReason) Message() string {
	switch r {
	case ReasonBusinessHoursChanged:
		return "Business hours changed, availability was updated"
	case ReasonAvailabilitySettingsChanged:
		return "Availability settings changed, bookable dates were updated"
	case ReasonBookingPolicyChanged:
		return "Booking policy changed, availability was updated"
	case ReasonSpecialEventCreated:
		return "Special opening hours added, availability was updated"
	case ReasonSpecialEventClosed:
		return "Closure added, availability was updated"
	case ReasonSpecialEventDeleted:
		return "Special event removed, regular hours restored"
	case ReasonConfigSync:
		return "Configuration reloaded, availability was updated"
	default:
		return "Availability was updated"
	}
}

// ChangeEvent is produced by change detection and consumed once by the
// regeneration trigger.
type ChangeEvent struct {
	Reason      ChangeReason `json:"reason"`
	Details     string       `json:"details"`
	AdvanceDays int          `json:"advance_days"`
}
