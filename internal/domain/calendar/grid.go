// Package calendar lays out a training block as a grid of days and merges
// planned entries and completed activities into it by date key.
package calendar

import (
	"time"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/units"
	"github.com/okian/stride/internal/domain/window"
)

// Grid defaults.
const (
	DefaultBlockDays = 14
	GridAnchor       = time.Monday
)

// Cell is one day of the grid.
type Cell struct {
	Date            time.Time            `json:"date"`
	DateKey         string               `json:"date_key"`
	Entry           *model.CalendarEntry `json:"entry"`
	EffectiveStatus model.EntryStatus    `json:"effective_status,omitempty"`
	IsToday         bool                 `json:"is_today"`
	Activities      []model.Activity     `json:"activities,omitempty"`
	CompletedMiles  float64              `json:"completed_miles"`
}

// Summary aggregates the whole grid window.
type Summary struct {
	PlannedMiles   float64 `json:"planned_miles"`
	CompletedMiles float64 `json:"completed_miles"`
	Planned        int     `json:"planned"`
	Completed      int     `json:"completed"`
	Missed         int     `json:"missed"`
	RestDays       int     `json:"rest_days"`
}

// Grid is the built training block.
type Grid struct {
	Start   time.Time `json:"start"`
	Cells   []Cell    `json:"cells"`
	Summary Summary   `json:"summary"`
}

type buildOptions struct {
	today      time.Time
	activities []model.Activity
}

// Option applies a configuration option to BuildGrid.
type Option func(*buildOptions)

// WithToday marks the cell for today and drives the derived "missed" status.
func WithToday(today time.Time) Option {
	return func(o *buildOptions) {
		o.today = today
	}
}

// WithActivities merges completed activities into the cells of their start date.
func WithActivities(activities []model.Activity) Option {
	return func(o *buildOptions) {
		o.activities = activities
	}
}

// BuildGrid lays out lengthDays cells starting at the Monday on or before
// anchor. Entries are matched to cells by date key; when several entries share
// a key the last one wins. Entries outside the window are ignored.
func BuildGrid(anchor time.Time, lengthDays int, entries []model.CalendarEntry, opts ...Option) Grid {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if lengthDays < 0 {
		lengthDays = 0
	}

	start := window.WeekStart(anchor, GridAnchor)
	loc := start.Location()

	byKey := make(map[string]model.CalendarEntry, len(entries))
	for _, e := range entries {
		byKey[window.DateKey(e.Date.In(loc))] = e
	}

	actsByKey := make(map[string][]model.Activity)
	for _, a := range o.activities {
		key := window.DateKey(a.StartTime.In(loc))
		actsByKey[key] = append(actsByKey[key], a)
	}

	todayKey := ""
	if !o.today.IsZero() {
		todayKey = window.DateKey(o.today.In(loc))
	}

	g := Grid{Start: start, Cells: make([]Cell, lengthDays)}
	var plannedMeters, completedMeters float64
	for i := range g.Cells {
		day := window.AddDays(start, i)
		key := window.DateKey(day)
		cell := Cell{
			Date:       day,
			DateKey:    key,
			IsToday:    key == todayKey,
			Activities: actsByKey[key],
		}

		var dayMeters float64
		for _, a := range cell.Activities {
			dayMeters += a.DistanceMeters
		}
		cell.CompletedMiles = units.Round(units.MetersToMiles(dayMeters), 1)
		completedMeters += dayMeters

		if e, ok := byKey[key]; ok {
			entry := e
			cell.Entry = &entry
			cell.EffectiveStatus = effectiveStatus(entry, key, todayKey)
			if entry.PlannedDistanceMeters != nil {
				plannedMeters += *entry.PlannedDistanceMeters
			}
			g.Summary.count(entry, cell.EffectiveStatus)
		}
		g.Cells[i] = cell
	}

	g.Summary.PlannedMiles = units.Round(units.MetersToMiles(plannedMeters), 1)
	g.Summary.CompletedMiles = units.Round(units.MetersToMiles(completedMeters), 1)
	return g
}

// Cell returns the cell for a date key.
func (g Grid) Cell(dateKey string) (Cell, bool) {
	for _, c := range g.Cells {
		if c.DateKey == dateKey {
			return c, true
		}
	}
	return Cell{}, false
}

// Window returns the date range covered by the grid.
func (g Grid) Window() window.Window {
	return window.Window{Start: g.Start, End: window.AddDays(g.Start, len(g.Cells))}
}

// WeekKeys returns the date key of every week start inside the grid, in order.
func (g Grid) WeekKeys() []string {
	var keys []string
	for i := 0; i < len(g.Cells); i += window.DaysPerWeek {
		keys = append(keys, g.Cells[i].DateKey)
	}
	return keys
}

func (s *Summary) count(e model.CalendarEntry, status model.EntryStatus) {
	if e.WorkoutType == model.WorkoutRest {
		s.RestDays++
		return
	}
	switch status {
	case model.StatusCompleted:
		s.Completed++
	case model.StatusMissed:
		s.Missed++
	default:
		s.Planned++
	}
}
