package importer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"reservo/internal/model"
)

// GoogleSource reads events from a Google Calendar.
type GoogleSource struct {
	name       string
	calendarID string
	service    *calendar.Service
	loc        *time.Location
}

// GoogleCredentials selects how the calendar API is authorized. A service
// account file takes precedence over a static access token.
type GoogleCredentials struct {
	CredentialsFile string
	AccessToken     string
	// Endpoint overrides the API base URL.
	Endpoint string
}

// ClientOptions builds the API client options for the credentials.
func (c GoogleCredentials) ClientOptions() []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(calendar.CalendarReadonlyScope)}
	switch {
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	case c.AccessToken != "":
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.AccessToken})))
	}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	return opts
}

func NewGoogleSource(ctx context.Context, name, calendarID string, loc *time.Location, opts ...option.ClientOption) (*GoogleSource, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar client: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleSource{name: name, calendarID: calendarID, service: srv, loc: loc}, nil
}

func (s *GoogleSource) Name() string { return s.name }

func (s *GoogleSource) Events(ctx context.Context, from, to time.Time) ([]ExternalEvent, error) {
	call := s.service.Events.List(s.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	var out []ExternalEvent
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" || item.Start == nil {
				continue
			}
			ev, err := s.toEvent(item)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", s.name, err)
	}
	return out, nil
}

func (s *GoogleSource) toEvent(item *calendar.Event) (ExternalEvent, error) {
	ev := ExternalEvent{UID: item.Id, Summary: item.Summary}

	if item.Start.Date != "" {
		start, err := model.ParseDate(item.Start.Date)
		if err != nil {
			return ev, err
		}
		ev.AllDay = true
		ev.Start, ev.End = start, start.AddDate(0, 0, 1)
		if item.End != nil && item.End.Date != "" {
			if end, err := model.ParseDate(item.End.Date); err == nil {
				ev.End = end
			}
		}
		return ev, nil
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return ev, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	ev.Start, ev.End = start.In(s.loc), start.In(s.loc)
	if item.End != nil && item.End.DateTime != "" {
		if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			ev.End = end.In(s.loc)
		}
	}
	return ev, nil
}
