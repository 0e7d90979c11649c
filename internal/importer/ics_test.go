package importer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFeed = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//Test//Feed//EN",
	"BEGIN:VEVENT",
	"UID:xmas@example.com",
	"DTSTAMP:20251101T000000Z",
	"DTSTART;VALUE=DATE:20251225",
	"DTEND;VALUE=DATE:20251226",
	"SUMMARY:Christmas",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:late@example.com",
	"DTSTAMP:20251101T000000Z",
	"DTSTART:20251210T180000Z",
	"DTEND:20251210T220000Z",
	"SUMMARY:Late opening",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:training@example.com",
	"DTSTAMP:20251101T000000Z",
	"DTSTART:20251202T080000Z",
	"DTEND:20251202T100000Z",
	"RRULE:FREQ=WEEKLY;COUNT=3",
	"SUMMARY:Staff training",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:gone@example.com",
	"DTSTAMP:20251101T000000Z",
	"DTSTART;VALUE=DATE:20251220",
	"STATUS:CANCELLED",
	"SUMMARY:Cancelled",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:old@example.com",
	"DTSTAMP:20251101T000000Z",
	"DTSTART;VALUE=DATE:20251101",
	"SUMMARY:Before window",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

func newFeedServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, testFeed)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestICSSource_Events(t *testing.T) {
	var hits atomic.Int32
	srv := newFeedServer(t, &hits)
	logger := zerolog.New(io.Discard)

	src := NewICSSource("feed", srv.URL, time.UTC, &logger)
	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	events, err := src.Events(context.Background(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)

	byUID := make(map[string][]ExternalEvent)
	for _, ev := range events {
		byUID[ev.UID] = append(byUID[ev.UID], ev)
	}
	require.Len(t, events, 5)

	require.Len(t, byUID["xmas@example.com"], 1)
	assert.True(t, byUID["xmas@example.com"][0].AllDay)
	assert.Equal(t, "Christmas", byUID["xmas@example.com"][0].Summary)

	require.Len(t, byUID["late@example.com"], 1)
	assert.False(t, byUID["late@example.com"][0].AllDay)
	assert.Equal(t, 4*time.Hour, byUID["late@example.com"][0].End.Sub(byUID["late@example.com"][0].Start))

	training := byUID["training@example.com"]
	require.Len(t, training, 3)
	assert.Equal(t, 2, training[0].Start.Day())
	assert.Equal(t, 16, training[2].Start.Day())
	assert.Equal(t, 2*time.Hour, training[2].End.Sub(training[2].Start))

	assert.Empty(t, byUID["gone@example.com"])
	assert.Empty(t, byUID["old@example.com"])
}

func TestICSSource_Cache(t *testing.T) {
	var hits atomic.Int32
	srv := newFeedServer(t, &hits)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := zerolog.New(io.Discard)

	src := NewICSSource("cached", srv.URL, time.UTC, &logger).WithCache(client, time.Minute)
	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := src.Events(context.Background(), from, from.AddDate(0, 1, 0))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, mr.Exists("reservo:ics:cached"))

	mr.FastForward(2 * time.Minute)
	_, err := src.Events(context.Background(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestICSSource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	logger := zerolog.New(io.Discard)

	_, err := NewICSSource("down", srv.URL, time.UTC, &logger).Events(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
