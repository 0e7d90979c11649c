package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"reservo/internal/model"
)

// BusinessConfig seeds one business.
type BusinessConfig struct {
	ID       int64                `yaml:"id"`
	Name     string               `yaml:"name"`
	Vertical string               `yaml:"vertical"` // restaurant, clinic, salon
	Timezone string               `yaml:"timezone"`
	Hours    model.WeeklySchedule `yaml:"hours,omitempty"`
	Policy   *model.BookingPolicy `yaml:"booking_policy,omitempty"`
}

// HolidayConfig is a closed day. Empty BusinessIDs applies it to every business.
type HolidayConfig struct {
	Date        string  `yaml:"date"` // "2026-01-01"
	Name        string  `yaml:"name"`
	BusinessIDs []int64 `yaml:"business_ids,omitempty"`
}

// DefaultsConfig is applied to businesses without explicit hours or policy.
type DefaultsConfig struct {
	Hours  model.WeeklySchedule `yaml:"hours,omitempty"`
	Policy *model.BookingPolicy `yaml:"booking_policy,omitempty"`
}

// BusinessesConfig is the root configuration for businesses.yaml.
type BusinessesConfig struct {
	Businesses []BusinessConfig `yaml:"businesses"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	Holidays   []HolidayConfig  `yaml:"holidays"`
}

// LoadBusinessesConfig loads and validates businesses configuration from YAML file.
func LoadBusinessesConfig(path string) (*BusinessesConfig, error) {
	if path == "" {
		path = "configs/businesses.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read businesses config: %w", err)
	}
	return parseBusinessesConfig(data)
}

func parseBusinessesConfig(data []byte) (*BusinessesConfig, error) {
	var cfg BusinessesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse businesses config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate businesses config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *BusinessesConfig) Validate() error {
	if len(c.Businesses) == 0 {
		return fmt.Errorf("no businesses defined")
	}

	ids := make(map[int64]bool)

	for i, b := range c.Businesses {
		if b.ID <= 0 {
			return fmt.Errorf("business[%d]: id must be positive, got %d", i, b.ID)
		}
		if ids[b.ID] {
			return fmt.Errorf("business[%d]: duplicate id %d", i, b.ID)
		}
		ids[b.ID] = true

		if b.Name == "" {
			return fmt.Errorf("business[%d]: name is required", i)
		}

		if b.Timezone != "" {
			if _, err := time.LoadLocation(b.Timezone); err != nil {
				return fmt.Errorf("business[%d]: unknown timezone '%s'", i, b.Timezone)
			}
		}

		if b.Hours != nil {
			if err := b.Hours.Validate(); err != nil {
				return fmt.Errorf("business[%d]: %w", i, err)
			}
		}
	}

	if c.Defaults.Hours != nil {
		if err := c.Defaults.Hours.Validate(); err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse(model.DateLayout, h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
		for _, id := range h.BusinessIDs {
			if !ids[id] {
				return fmt.Errorf("holiday[%d]: unknown business id %d", i, id)
			}
		}
	}

	return nil
}

// applyDefaults fills hours and policy of businesses without explicit values.
func (c *BusinessesConfig) applyDefaults() {
	for i := range c.Businesses {
		b := &c.Businesses[i]
		if b.Hours == nil {
			if c.Defaults.Hours != nil {
				b.Hours = c.Defaults.Hours.Normalize()
			} else {
				b.Hours = model.DefaultWeeklySchedule()
			}
		}
		if b.Policy == nil {
			p := model.DefaultBookingPolicy()
			if c.Defaults.Policy != nil {
				p = *c.Defaults.Policy
			}
			b.Policy = &p
		}
	}
}

// HolidaysFor returns the holidays that apply to a business.
func (c *BusinessesConfig) HolidaysFor(businessID int64) []HolidayConfig {
	var result []HolidayConfig
	for _, h := range c.Holidays {
		if len(h.BusinessIDs) == 0 {
			result = append(result, h)
			continue
		}
		for _, id := range h.BusinessIDs {
			if id == businessID {
				result = append(result, h)
				break
			}
		}
	}
	return result
}
