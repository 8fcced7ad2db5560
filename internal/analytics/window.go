// Package analytics derives listening statistics from the session log.
//
// All functions are pure: they read a slice of sessions and a caller
// supplied reference time, and never mutate their input. Calling the
// same function twice with the same input yields the same result.
package analytics

import (
	"time"

	"github.com/tunelog-labs/tunelog/internal/history"
)

// Window selects how far back from the reference time sessions count.
type Window string

const (
	WindowWeek    Window = "week"
	WindowMonth   Window = "month"
	WindowYear    Window = "year"
	WindowAllTime Window = "allTime"
)

// ParseWindow maps a query value to a Window. The empty string means
// all time. The second return is false for unrecognized values.
func ParseWindow(s string) (Window, bool) {
	switch s {
	case "":
		return WindowAllTime, true
	case string(WindowWeek):
		return WindowWeek, true
	case string(WindowMonth):
		return WindowMonth, true
	case string(WindowYear):
		return WindowYear, true
	case string(WindowAllTime):
		return WindowAllTime, true
	}
	return "", false
}

// cutoff returns the inclusive lower bound for w relative to now.
// The second return is false when the window spans all time.
func (w Window) cutoff(now time.Time) (time.Time, bool) {
	switch w {
	case WindowWeek:
		return now.AddDate(0, 0, -7), true
	case WindowMonth:
		return now.AddDate(0, -1, 0), true
	case WindowYear:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

// filter returns the sessions inside w. Sessions exactly on the cutoff
// are included.
func (w Window) filter(sessions []history.PlaySession, now time.Time) []history.PlaySession {
	cut, bounded := w.cutoff(now)
	if !bounded {
		return sessions
	}
	var out []history.PlaySession
	for _, s := range sessions {
		if !s.Timestamp.Before(cut) {
			out = append(out, s)
		}
	}
	return out
}
