package importer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/rs/zerolog"
)

// CalDAVSource reads events from a CalDAV calendar (Nextcloud, Fastmail,
// iCloud). An empty path uses the first calendar of the principal.
type CalDAVSource struct {
	name     string
	baseURL  string
	username string
	password string
	path     string
	loc      *time.Location
	logger   *zerolog.Logger
}

func NewCalDAVSource(name, baseURL, username, password string, loc *time.Location, logger *zerolog.Logger) *CalDAVSource {
	if loc == nil {
		loc = time.UTC
	}
	return &CalDAVSource{
		name:     name,
		baseURL:  baseURL,
		username: username,
		password: password,
		loc:      loc,
		logger:   logger,
	}
}

// WithCalendarPath pins the calendar collection.
func (s *CalDAVSource) WithCalendarPath(path string) *CalDAVSource {
	s.path = path
	return s
}

func (s *CalDAVSource) Name() string { return s.name }

func (s *CalDAVSource) Events(ctx context.Context, from, to time.Time) ([]ExternalEvent, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	client, err := caldav.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, s.username, s.password), s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}

	path, err := s.calendarPath(ctx, client)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Props: []string{ical.PropVersion},
			Comps: []caldav.CalendarCompRequest{{
				Name: ical.CompEvent,
				Props: []string{
					ical.PropUID, ical.PropSummary, ical.PropStatus,
					ical.PropDateTimeStart, ical.PropDateTimeEnd, ical.PropDuration,
					ical.PropRecurrenceRule, ical.PropExceptionDates,
				},
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from,
				End:   to,
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar %s: %w", s.name, err)
	}

	var out []ExternalEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		out = append(out, calendarEvents(obj.Data, s.loc, from, to, s.logger)...)
	}
	return out, nil
}

func (s *CalDAVSource) calendarPath(ctx context.Context, client *caldav.Client) (string, error) {
	if s.path != "" {
		return s.path, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find calendar home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("find calendars: %w", err)
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("no calendars found for %s", s.name)
	}

	s.path = cals[0].Path
	return s.path, nil
}
