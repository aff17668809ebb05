// Package repository defines the data gateway used by the coaching service
// and an in-memory implementation of it.
package repository

import (
	"context"

	"github.com/okian/stride/internal/domain/model"
)

// Gateway is the persistence boundary. Every call is scoped to one user.
// Distances cross it in meters, paces in seconds per kilometer and durations
// in minutes.
type Gateway interface {
	// ListActivities returns the user's activities ordered by start time.
	ListActivities(ctx context.Context, userID string) ([]model.Activity, error)
	// AddActivity stores an activity, replacing one with the same id.
	AddActivity(ctx context.Context, a model.Activity) error

	// ActiveGoal returns the user's active goal or ErrNotFound.
	ActiveGoal(ctx context.Context, userID string) (model.Goal, error)
	// SaveGoal stores g as the active goal and deactivates the previous one.
	SaveGoal(ctx context.Context, g model.Goal) (model.Goal, error)

	// CalendarWeek returns the entries of the seven days starting at startDateKey.
	CalendarWeek(ctx context.Context, userID, startDateKey string) ([]model.CalendarEntry, error)
	// CalendarEntry returns one entry by id or ErrNotFound.
	CalendarEntry(ctx context.Context, userID, id string) (model.CalendarEntry, error)
	// UpsertCalendarEntry stores e keyed by (user, date). An existing entry on
	// that date is replaced and its id is kept when e has none.
	UpsertCalendarEntry(ctx context.Context, e model.CalendarEntry) (model.CalendarEntry, error)
	// DeleteCalendarEntry removes an entry by id or returns ErrNotFound.
	DeleteCalendarEntry(ctx context.Context, userID, id string) error
	// UpdateCalendarEntryStatus stores a planned or completed status.
	UpdateCalendarEntryStatus(ctx context.Context, userID, id string, status model.EntryStatus) error
}

// Stats is a point-in-time view of the store size.
type Stats struct {
	Users           int `json:"users"`
	Activities      int `json:"activities"`
	Goals           int `json:"goals"`
	CalendarEntries int `json:"calendar_entries"`
}
