package model

import "time"

// Business is a tenant with its own hours, exceptions and slots.
type Business struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Vertical  string    `json:"vertical" yaml:"vertical"` // restaurant, clinic, salon
	Timezone  string    `json:"timezone" yaml:"timezone"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// LocationOr returns the business time zone, or fallback when the name is
// empty or unknown.
func (b *Business) LocationOr(fallback *time.Location) *time.Location {
	if b == nil || b.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
