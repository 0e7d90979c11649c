// Package notify alerts staff about regenerations that left booked dates
// untouched or failed.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"reservo/internal/events"
	"reservo/internal/metrics"
	"reservo/internal/report"
)

const queueSize = 64

type Sender interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options throttle outgoing messages.
type Options struct {
	RatePerSecond float64
	Burst         int
}

// Telegram sends protected-date alerts to a set of chats.
type Telegram struct {
	sender  Sender
	chatIDs []int64
	limiter *rate.Limiter
	queue   chan string
	logger  *zerolog.Logger
}

func NewTelegram(sender Sender, chatIDs []int64, opts Options, logger *zerolog.Logger) *Telegram {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Telegram{
		sender:  sender,
		chatIDs: chatIDs,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		queue:   make(chan string, queueSize),
		logger:  logger,
	}
}

// NewTelegramFromToken connects to the Bot API.
func NewTelegramFromToken(token string, chatIDs []int64, opts Options, logger *zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegram(api, chatIDs, opts, logger), nil
}

// Attach subscribes to regeneration signals.
func (t *Telegram) Attach(bus *events.Bus) func() {
	return bus.Subscribe(events.TopicAvailabilityRegenerated, t.handle)
}

func (t *Telegram) handle(_ context.Context, e events.Event) error {
	p, ok := e.Payload.(events.AvailabilityRegenerated)
	if !ok || p.Superseded {
		return nil
	}
	if p.Success && len(p.ProtectedReservations) == 0 {
		return nil
	}

	select {
	case t.queue <- FormatMessage(p):
	default:
		metrics.IncNotification("dropped")
		t.logger.Warn().Int64("business_id", p.BusinessID).Msg("Notification queue full, alert dropped")
	}
	return nil
}

// Run delivers queued alerts until ctx is done.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-t.queue:
			t.deliver(ctx, text)
		}
	}
}

func (t *Telegram) deliver(ctx context.Context, text string) {
	for _, chatID := range t.chatIDs {
		if err := t.limiter.Wait(ctx); err != nil {
			return
		}
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := t.sender.Send(msg); err != nil {
			metrics.IncNotification("failed")
			t.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send notification")
			continue
		}
		metrics.IncNotification("sent")
	}
}

// FormatMessage renders a regeneration outcome for staff.
func FormatMessage(p events.AvailabilityRegenerated) string {
	var b strings.Builder
	if !p.Success {
		fmt.Fprintf(&b, "Availability update failed for business %d (%s): %s\n", p.BusinessID, p.ErrorCode, p.ErrorMessage)
	} else {
		fmt.Fprintf(&b, "%s (business %d)\n", p.Reason.Message(), p.BusinessID)
		fmt.Fprintf(&b, "Slots updated: %d on %d dates\n", p.SlotsUpdated, p.DatesUpdated)
	}

	groups := report.Group(p.ProtectedReservations)
	if len(groups) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("\nDates kept because of existing reservations:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "%s\n", g.Date)
		for _, r := range g.Reservations {
			line := fmt.Sprintf("  %s %s", r.AppointmentTime, r.CustomerName)
			if r.ResourceName != "" {
				line += " (" + r.ResourceName + ")"
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\nPlease review these dates manually.")
	return b.String()
}
