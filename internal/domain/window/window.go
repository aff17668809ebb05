// Package window slices activity collections into week-anchored and rolling
// 7-day windows.
//
// Every computation uses the location of the time it is given. Callers pick
// the location; nothing here assumes UTC or the process local zone.
package window

import (
	"time"

	"github.com/okian/stride/internal/domain/model"
)

// DaysPerWeek is the length of every window produced by this package.
const DaysPerWeek = 7

// DateKeyLayout is the canonical YYYY-MM-DD layout of a date key.
const DateKeyLayout = "2006-01-02"

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Midnight returns local midnight of t's calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days, keeping wall-clock time across DST shifts.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// WeekStart returns the most recent occurrence of anchor at local midnight,
// which is t's own date when t already falls on anchor.
func WeekStart(t time.Time, anchor time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(anchor) + DaysPerWeek) % DaysPerWeek
	return AddDays(Midnight(t), -offset)
}

// CurrentWeek returns the anchored week containing now.
func CurrentWeek(now time.Time, anchor time.Weekday) Window {
	start := WeekStart(now, anchor)
	return Window{Start: start, End: AddDays(start, DaysPerWeek)}
}

// Rolling returns n consecutive, non-overlapping 7-day windows ending at now,
// most recent first.
func Rolling(now time.Time, n int) []Window {
	if n <= 0 {
		return nil
	}
	out := make([]Window, n)
	end := now
	for i := range out {
		start := AddDays(end, -DaysPerWeek)
		out[i] = Window{Start: start, End: end}
		end = start
	}
	return out
}

// Weeks returns n anchored weeks ending with the one containing now, oldest
// first.
func Weeks(now time.Time, anchor time.Weekday, n int) []Window {
	if n <= 0 {
		return nil
	}
	out := make([]Window, n)
	start := WeekStart(now, anchor)
	for i := n - 1; i >= 0; i-- {
		out[i] = Window{Start: start, End: AddDays(start, DaysPerWeek)}
		start = AddDays(start, -DaysPerWeek)
	}
	return out
}

// Filter returns the activities that started inside w, in input order.
func Filter(activities []model.Activity, w Window) []model.Activity {
	var out []model.Activity
	for _, a := range activities {
		if w.Contains(a.StartTime) {
			out = append(out, a)
		}
	}
	return out
}

// Count returns the number of activities that started inside w.
func Count(activities []model.Activity, w Window) int {
	n := 0
	for _, a := range activities {
		if w.Contains(a.StartTime) {
			n++
		}
	}
	return n
}

// SumMeters returns the total distance of activities that started inside w.
func SumMeters(activities []model.Activity, w Window) float64 {
	var total float64
	for _, a := range activities {
		if w.Contains(a.StartTime) {
			total += a.DistanceMeters
		}
	}
	return total
}

// DateKey formats t's local calendar date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD key as midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateKeyLayout, key, loc)
}
