package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	regenerationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservo",
			Name:      "regeneration_runs_total",
			Help:      "Count of regeneration passes by reason and outcome.",
		},
		[]string{"reason", "outcome"},
	)

	regenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reservo",
			Name:      "regeneration_duration_seconds",
			Help:      "Duration of regeneration passes.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	slotsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reservo",
			Name:      "slots_written_total",
			Help:      "Count of slots written by regeneration.",
		},
	)

	protectedDates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reservo",
			Name:      "protected_dates_total",
			Help:      "Count of dates skipped because they hold active bookings.",
		},
	)

	suppressedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservo",
			Name:      "special_events_suppressed_total",
			Help:      "Count of special events outside the booking horizon.",
		},
		[]string{"reason"},
	)

	importRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservo",
			Name:      "calendar_import_runs_total",
			Help:      "Count of calendar import runs by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "reservo",
			Name:      "calendar_source_breaker_state",
			Help:      "Circuit breaker state per calendar source (0 closed, 1 half-open, 2 open).",
		},
		[]string{"source"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservo",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservo",
			Name:      "notifications_total",
			Help:      "Count of protected-date notifications by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			regenerationRuns,
			regenerationDuration,
			slotsWritten,
			protectedDates,
			suppressedEvents,
			importRuns,
			breakerState,
			httpRequests,
			notifications,
		)
	})
}

func ObserveRegeneration(reason, outcome string, took time.Duration, slots, protected int) {
	regenerationRuns.WithLabelValues(reason, outcome).Inc()
	regenerationDuration.Observe(took.Seconds())
	slotsWritten.Add(float64(slots))
	protectedDates.Add(float64(protected))
}

func IncSuppressedEvent(reason string) {
	suppressedEvents.WithLabelValues(reason).Inc()
}

func IncImportRun(source, outcome string) {
	importRuns.WithLabelValues(source, outcome).Inc()
}

func SetBreakerState(source string, state int) {
	breakerState.WithLabelValues(source).Set(float64(state))
}

func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func IncNotification(outcome string) {
	notifications.WithLabelValues(outcome).Inc()
}
