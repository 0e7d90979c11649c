// Package report surfaces the dates a regeneration pass left untouched
// because they hold active bookings.
package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"reservo/internal/events"
	"reservo/internal/model"
)

// DateGroup lists the protected reservations of one date.
type DateGroup struct {
	Date         string                       `json:"date"`
	Reservations []model.ProtectedReservation `json:"reservations"`
}

// Group groups reservations by date in ascending date order. Reservations
// keep their input order inside a date.
func Group(protected []model.ProtectedReservation) []DateGroup {
	if len(protected) == 0 {
		return []DateGroup{}
	}

	index := make(map[string]int)
	var groups []DateGroup
	for _, p := range protected {
		i, ok := index[p.Date]
		if !ok {
			i = len(groups)
			index[p.Date] = i
			groups = append(groups, DateGroup{Date: p.Date})
		}
		groups[i].Reservations = append(groups[i].Reservations, p)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Date < groups[j].Date
	})
	return groups
}

// Report is the latest regeneration outcome of a business.
type Report struct {
	BusinessID   int64              `json:"business_id"`
	Reason       model.ChangeReason `json:"reason"`
	RunID        string             `json:"run_id"`
	Version      int64              `json:"version"`
	Success      bool               `json:"success"`
	SlotsUpdated int                `json:"slots_updated"`
	Groups       []DateGroup        `json:"protected_dates"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// Keeper keeps the latest report per business.
type Keeper struct {
	mu      sync.RWMutex
	reports map[int64]Report
}

func NewKeeper() *Keeper {
	return &Keeper{reports: make(map[int64]Report)}
}

// Attach subscribes the keeper to regeneration signals.
func (k *Keeper) Attach(bus *events.Bus) func() {
	return bus.Subscribe(events.TopicAvailabilityRegenerated, k.handle)
}

// handle keeps only completed passes. Failed and superseded passes leave the
// previous report in place.
func (k *Keeper) handle(_ context.Context, e events.Event) error {
	p, ok := e.Payload.(events.AvailabilityRegenerated)
	if !ok || !p.Success || p.Superseded {
		return nil
	}
	k.Store(Report{
		BusinessID:   p.BusinessID,
		Reason:       p.Reason,
		RunID:        p.RunID,
		Version:      p.Version,
		Success:      p.Success,
		SlotsUpdated: p.SlotsUpdated,
		Groups:       Group(p.ProtectedReservations),
		GeneratedAt:  e.CreatedAt,
	})
	return nil
}

// Store replaces the report of a business unless the stored one comes from
// a newer pass.
func (k *Keeper) Store(r Report) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if prev, ok := k.reports[r.BusinessID]; ok && prev.Version > r.Version {
		return
	}
	k.reports[r.BusinessID] = r
}

// Latest returns the most recent report of a business.
func (k *Keeper) Latest(businessID int64) (Report, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	r, ok := k.reports[businessID]
	return r, ok
}
