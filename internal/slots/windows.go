package slots

import (
	"fmt"
	"sort"

	"reservo/internal/model"
)

// Window is a run of back-to-back available slots on one date.
type Window struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Minutes int    `json:"minutes"`
	Label   string `json:"label"`
}

// Windows merges the available stored slots of a date into bookable
// windows. A slot joins the previous window when it starts where that
// window ends.
func Windows(stored []model.Slot) []Window {
	available := make([]model.Slot, 0, len(stored))
	for _, s := range stored {
		if s.Available {
			available = append(available, s)
		}
	}
	sort.SliceStable(available, func(i, j int) bool { return available[i].Start < available[j].Start })

	var windows []Window
	for _, s := range available {
		if n := len(windows); n > 0 && windows[n-1].End == s.Start {
			windows[n-1].End = s.End
			continue
		}
		windows = append(windows, Window{Start: s.Start, End: s.End})
	}

	for i := range windows {
		start, _ := model.ParseClock(windows[i].Start)
		end, _ := model.ParseClock(windows[i].End)
		windows[i].Minutes = end - start
		windows[i].Label = FormatDuration(windows[i].Minutes)
	}
	return windows
}

// LongerThan keeps the windows that fit a booking of the given length.
func LongerThan(windows []Window, minutes int) []Window {
	if minutes <= 0 {
		return windows
	}
	var out []Window
	for _, w := range windows {
		if w.Minutes >= minutes {
			out = append(out, w)
		}
	}
	return out
}

// FitsAt reports whether a booking of the given length starting at start
// is covered by back-to-back available slots.
func FitsAt(stored []model.Slot, start string, minutes int) bool {
	if minutes <= 0 {
		return false
	}
	from, err := model.ParseClock(start)
	if err != nil {
		return false
	}
	for _, w := range Windows(stored) {
		ws, _ := model.ParseClock(w.Start)
		we, _ := model.ParseClock(w.End)
		if ws <= from && from+minutes <= we {
			return true
		}
	}
	return false
}

// FormatDuration renders minutes as "45 min", "1 hour", "2 hours" or
// "1 h 30 min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours, mins := minutes/60, minutes%60
	switch {
	case mins != 0:
		return fmt.Sprintf("%d h %d min", hours, mins)
	case hours == 1:
		return "1 hour"
	default:
		return fmt.Sprintf("%d hours", hours)
	}
}
