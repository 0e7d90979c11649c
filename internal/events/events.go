package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reservo/internal/model"
)

const (
	TopicScheduleUpdated         = "schedule.updated"
	TopicAvailabilityRegenerated = "availability.regenerated"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	ID         string      `json:"id"`
	Topic      string      `json:"topic"`
	BusinessID int64       `json:"business_id"`
	Payload    interface{} `json:"payload"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ScheduleUpdated is published after weekly hours or policy were saved.
type ScheduleUpdated struct {
	BusinessID int64                `json:"business_id"`
	Schedule   model.WeeklySchedule `json:"schedule"`
	Version    int64                `json:"version"`
}

// AvailabilityRegenerated is published after every non-silent regeneration pass.
type AvailabilityRegenerated struct {
	BusinessID            int64                        `json:"business_id"`
	Reason                model.ChangeReason           `json:"reason"`
	RunID                 string                       `json:"run_id"`
	Version               int64                        `json:"version"`
	Success               bool                         `json:"success"`
	SlotsUpdated          int                          `json:"slots_updated"`
	DatesUpdated          int                          `json:"dates_updated"`
	ProtectedReservations []model.ProtectedReservation `json:"protected_reservations"`
	Superseded            bool                         `json:"superseded"`
	ErrorCode             string                       `json:"error_code,omitempty"`
	ErrorMessage          string                       `json:"error_message,omitempty"`
}

// NewScheduleUpdated wraps a ScheduleUpdated payload.
func NewScheduleUpdated(p ScheduleUpdated) Event {
	return Event{Topic: TopicScheduleUpdated, BusinessID: p.BusinessID, Payload: p}
}

// NewAvailabilityRegenerated wraps an AvailabilityRegenerated payload.
func NewAvailabilityRegenerated(p AvailabilityRegenerated) Event {
	return Event{Topic: TopicAvailabilityRegenerated, BusinessID: p.BusinessID, Payload: p}
}

// Handler reacts to an event.
type Handler func(ctx context.Context, event Event) error

// Publisher is implemented by the in-process bus and by test doubles.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus provides in-process pub/sub. Handlers run synchronously on the
// publishing goroutine; a failing handler does not affect the others.
type Bus struct {
	subscribers map[string][]subscription
	nextID      uint64
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zerolog.Logger) *Bus {
	return &Bus{subscribers: make(map[string][]subscription), logger: logger}
}

// Subscribe registers a handler for a topic and returns a function removing it.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers[topic] = append(b.subscribers[topic], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subscribers[topic]
			for i, s := range subs {
				if s.id == id {
					b.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish notifies subscribers of the event topic.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[event.Topic]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, s := range subs {
		if err := b.call(ctx, s.handler, event); err != nil {
			b.logger.Error().Err(err).
				Str("topic", event.Topic).
				Int64("business_id", event.BusinessID).
				Msg("event handler failed")
		}
	}
}

func (b *Bus) call(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, event)
}
