// Package importer pulls events from external calendars and stores them as
// calendar exceptions.
package importer

import (
	"context"
	"sort"
	"strings"
	"time"

	"reservo/internal/model"
)

// ExternalEvent is one occurrence read from an external calendar.
type ExternalEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// Source lists the events that overlap [from, to).
type Source interface {
	Name() string
	Events(ctx context.Context, from, to time.Time) ([]ExternalEvent, error)
}

// ToExceptions turns events into one exception per date of [from, to].
// All-day events close the date, timed events open it with the event's
// hours. A closing event wins over timed ones on the same date and timed
// events on one date are merged into the widest interval.
func ToExceptions(events []ExternalEvent, loc *time.Location, from, to string) []model.CalendarException {
	if loc == nil {
		loc = time.UTC
	}
	byDate := make(map[string]*model.CalendarException)
	reasons := make(map[string][]string)

	add := func(date string, ev ExternalEvent, open, closing string) {
		if date < from || date > to {
			return
		}
		if ev.Summary != "" && !contains(reasons[date], ev.Summary) {
			reasons[date] = append(reasons[date], ev.Summary)
		}

		cur, ok := byDate[date]
		if !ok {
			cur = &model.CalendarException{Date: date, Source: model.SourceImport, ExternalID: ev.UID}
			if open != "" {
				cur.IsOpen = true
				cur.OpenTime = model.StrPtr(open)
				cur.CloseTime = model.StrPtr(closing)
			}
			byDate[date] = cur
			return
		}
		if !cur.IsOpen {
			return
		}
		if open == "" {
			cur.IsOpen = false
			cur.OpenTime, cur.CloseTime = nil, nil
			cur.ExternalID = ev.UID
			return
		}
		if open < *cur.OpenTime {
			cur.OpenTime = model.StrPtr(open)
		}
		if closing > *cur.CloseTime {
			cur.CloseTime = model.StrPtr(closing)
		}
	}

	for _, ev := range events {
		if ev.AllDay {
			start := model.DateOnly(ev.Start)
			end := model.DateOnly(ev.End)
			if !end.After(start) {
				end = start.AddDate(0, 0, 1)
			}
			for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
				add(d.Format(model.DateLayout), ev, "", "")
			}
			continue
		}

		start, end := ev.Start.In(loc), ev.End.In(loc)
		closing := "23:59"
		if sameDate(start, end) {
			closing = end.Format("15:04")
		}
		open := start.Format("15:04")
		if closing <= open {
			continue
		}
		add(start.Format(model.DateLayout), ev, open, closing)
	}

	out := make([]model.CalendarException, 0, len(byDate))
	for date, ex := range byDate {
		ex.Reason = strings.Join(reasons[date], "; ")
		out = append(out, *ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
