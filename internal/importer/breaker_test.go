package importer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Events(ctx context.Context, from, to time.Time) ([]ExternalEvent, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ExternalEvent), args.Error(1)
}

func TestWithBreaker(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()
	from, to := time.Now(), time.Now().Add(time.Hour)

	src := new(mockSource)
	src.On("Events", ctx, from, to).Return(nil, errors.New("connection refused")).Times(2)

	wrapped := WithBreaker(src, BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour}, &logger)
	assert.Equal(t, "mock", wrapped.Name())

	for i := 0; i < 2; i++ {
		_, err := wrapped.Events(ctx, from, to)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSourceUnavailable)
	}

	_, err := wrapped.Events(ctx, from, to)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	src.AssertExpectations(t)
}

func TestWithBreaker_PassesEvents(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()
	from, to := time.Now(), time.Now().Add(time.Hour)

	want := []ExternalEvent{{UID: "x", Start: from, End: to}}
	src := new(mockSource)
	src.On("Events", ctx, from, to).Return(want, nil).Once()

	got, err := WithBreaker(src, BreakerConfig{}, &logger).Events(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
