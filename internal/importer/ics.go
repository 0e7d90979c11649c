package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
)

const (
	feedCachePrefix = "reservo:ics:"
	maxFeedBytes    = 10 << 20
)

// ICSSource reads an iCalendar feed over HTTP. The raw feed can be cached in
// Redis so several instances do not hammer the same URL.
type ICSSource struct {
	name     string
	url      string
	client   *http.Client
	cache    redis.UniversalClient
	cacheTTL time.Duration
	loc      *time.Location
	logger   *zerolog.Logger
}

func NewICSSource(name, url string, loc *time.Location, logger *zerolog.Logger) *ICSSource {
	if loc == nil {
		loc = time.UTC
	}
	return &ICSSource{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		loc:    loc,
		logger: logger,
	}
}

// WithCache stores the feed body in Redis for ttl.
func (s *ICSSource) WithCache(client redis.UniversalClient, ttl time.Duration) *ICSSource {
	if client != nil && ttl > 0 {
		s.cache = client
		s.cacheTTL = ttl
	}
	return s
}

// WithHTTPClient replaces the default client.
func (s *ICSSource) WithHTTPClient(client *http.Client) *ICSSource {
	if client != nil {
		s.client = client
	}
	return s
}

func (s *ICSSource) Name() string { return s.name }

func (s *ICSSource) Events(ctx context.Context, from, to time.Time) ([]ExternalEvent, error) {
	body, err := s.feed(ctx)
	if err != nil {
		return nil, err
	}

	cals, err := decodeFeed(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.name, err)
	}

	var out []ExternalEvent
	for _, cal := range cals {
		out = append(out, calendarEvents(cal, s.loc, from, to, s.logger)...)
	}
	return out, nil
}

func (s *ICSSource) feed(ctx context.Context) ([]byte, error) {
	key := feedCachePrefix + s.name
	if s.cache != nil {
		body, err := s.cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			return body, nil
		case !errors.Is(err, redis.Nil):
			s.logger.Warn().Err(err).Str("source", s.name).Msg("Feed cache read failed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed %s: unexpected status %d", s.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", s.name, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, body, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Str("source", s.name).Msg("Feed cache write failed")
		}
	}
	return body, nil
}

func decodeFeed(r io.Reader) ([]*ical.Calendar, error) {
	dec := ical.NewDecoder(r)
	var cals []*ical.Calendar
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return cals, nil
		}
		if err != nil {
			return nil, err
		}
		cals = append(cals, cal)
	}
}

// calendarEvents extracts the VEVENTs of cal that overlap [from, to),
// expanding recurring ones.
func calendarEvents(cal *ical.Calendar, loc *time.Location, from, to time.Time, logger *zerolog.Logger) []ExternalEvent {
	var out []ExternalEvent
	for _, ev := range cal.Events() {
		if status := ev.Props.Get(ical.PropStatus); status != nil && strings.EqualFold(status.Value, "CANCELLED") {
			continue
		}

		start, err := ev.DateTimeStart(loc)
		if err != nil {
			logger.Debug().Err(err).Msg("Skipping event without a valid DTSTART")
			continue
		}
		end, err := ev.DateTimeEnd(loc)
		if err != nil || end.Before(start) {
			end = start
		}

		base := ExternalEvent{AllDay: isAllDay(ev)}
		base.UID, _ = ev.Props.Text(ical.PropUID)
		base.Summary, _ = ev.Props.Text(ical.PropSummary)

		var set *rrule.Set
		if set, err = ev.RecurrenceSet(loc); err != nil {
			logger.Debug().Err(err).Str("uid", base.UID).Msg("Skipping event with an invalid RRULE")
			continue
		}
		if set == nil {
			if overlaps(start, end, from, to) {
				base.Start, base.End = start, end
				out = append(out, base)
			}
			continue
		}

		length := end.Sub(start)
		for _, occ := range set.Between(from.Add(-length), to, true) {
			if !overlaps(occ, occ.Add(length), from, to) {
				continue
			}
			e := base
			e.Start, e.End = occ, occ.Add(length)
			out = append(out, e)
		}
	}
	return out
}

func isAllDay(ev ical.Event) bool {
	prop := ev.Props.Get(ical.PropDateTimeStart)
	return prop != nil && prop.ValueType() == ical.ValueDate
}

func overlaps(start, end, from, to time.Time) bool {
	if end.Equal(start) {
		return !start.Before(from) && start.Before(to)
	}
	return start.Before(to) && end.After(from)
}
