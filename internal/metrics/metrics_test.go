package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRegeneration(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(slotsWritten)
	ObserveRegeneration("manual", "success", 10*time.Millisecond, 24, 1)

	assert.Equal(t, before+24, testutil.ToFloat64(slotsWritten))
	assert.Equal(t, float64(1), testutil.ToFloat64(regenerationRuns.WithLabelValues("manual", "success")))
}

func TestBreakerState(t *testing.T) {
	SetBreakerState("holidays", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(breakerState.WithLabelValues("holidays")))

	IncImportRun("holidays", "failure")
	assert.Equal(t, float64(1), testutil.ToFloat64(importRuns.WithLabelValues("holidays", "failure")))
}
