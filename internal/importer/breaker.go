package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"reservo/internal/metrics"
)

// ErrSourceUnavailable is returned while the breaker of a source is open.
var ErrSourceUnavailable = errors.New("calendar source unavailable")

// BreakerConfig tunes the per-source circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// breakerSource stops calling a failing source until the open timeout
// elapses.
type breakerSource struct {
	Source
	cb *gobreaker.CircuitBreaker[[]ExternalEvent]
}

// WithBreaker wraps src in a circuit breaker.
func WithBreaker(src Source, cfg BreakerConfig, logger *zerolog.Logger) Source {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 5 * time.Minute
	}

	settings := gobreaker.Settings{
		Name:        src.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Calendar source breaker state changed")
			metrics.SetBreakerState(name, int(to))
		},
	}
	metrics.SetBreakerState(src.Name(), int(gobreaker.StateClosed))

	return &breakerSource{Source: src, cb: gobreaker.NewCircuitBreaker[[]ExternalEvent](settings)}
}

func (b *breakerSource) Events(ctx context.Context, from, to time.Time) ([]ExternalEvent, error) {
	events, err := b.cb.Execute(func() ([]ExternalEvent, error) {
		return b.Source.Events(ctx, from, to)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", b.Name(), ErrSourceUnavailable)
	}
	return events, err
}
