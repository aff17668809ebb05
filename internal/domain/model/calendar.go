package model

import (
	"strings"
	"time"
)

// WorkoutType classifies a planned session.
type WorkoutType string

// Workout types.
const (
	WorkoutEasy       WorkoutType = "easy"
	WorkoutTempo      WorkoutType = "tempo"
	WorkoutInterval   WorkoutType = "interval"
	WorkoutLong       WorkoutType = "long"
	WorkoutRecovery   WorkoutType = "recovery"
	WorkoutRest       WorkoutType = "rest"
	WorkoutRace       WorkoutType = "race"
	WorkoutCrossTrain WorkoutType = "cross_train"
)

// Valid reports whether t is a known workout type.
func (t WorkoutType) Valid() bool {
	switch t {
	case WorkoutEasy, WorkoutTempo, WorkoutInterval, WorkoutLong,
		WorkoutRecovery, WorkoutRest, WorkoutRace, WorkoutCrossTrain:
		return true
	}
	return false
}

// EntryStatus is the stored state of a calendar entry.
type EntryStatus string

// Entry statuses. StatusMissed is only ever derived for display.
const (
	StatusPlanned   EntryStatus = "planned"
	StatusCompleted EntryStatus = "completed"
	StatusMissed    EntryStatus = "missed"
)

// Valid reports whether s is a known status.
func (s EntryStatus) Valid() bool {
	return s == StatusPlanned || s == StatusCompleted || s == StatusMissed
}

// EntrySource records who wrote the entry.
type EntrySource string

// Entry sources.
const (
	SourceManual  EntrySource = "manual"
	SourceAICoach EntrySource = "ai_coach"
)

// Valid reports whether s is a known source.
func (s EntrySource) Valid() bool {
	return s == SourceManual || s == SourceAICoach
}

// CalendarEntry is one planned workout. Date is the natural key: a user has
// at most one entry per local date.
type CalendarEntry struct {
	ID                     string      `json:"id"`
	UserID                 string      `json:"user_id"`
	Date                   time.Time   `json:"date"`
	WorkoutType            WorkoutType `json:"workout_type"`
	Title                  string      `json:"title"`
	Description            string      `json:"description,omitempty"`
	PlannedDistanceMeters  *float64    `json:"planned_distance_meters,omitempty"`
	PlannedDurationMinutes *float64    `json:"planned_duration_minutes,omitempty"`
	PlannedPaceSecPerKm    *float64    `json:"planned_pace_sec_per_km,omitempty"`
	Status                 EntryStatus `json:"status"`
	Source                 EntrySource `json:"source"`
}

// Validate rejects entries that must never reach the merge step.
func (e CalendarEntry) Validate() error {
	switch {
	case strings.TrimSpace(e.Title) == "":
		return invalid("title", "missing")
	case e.Date.IsZero():
		return invalid("date", "missing")
	case !e.WorkoutType.Valid():
		return invalid("workout_type", "unknown workout type "+string(e.WorkoutType))
	case !e.Status.Valid():
		return invalid("status", "unknown status "+string(e.Status))
	case !e.Source.Valid():
		return invalid("source", "unknown source "+string(e.Source))
	}
	if v := e.PlannedDistanceMeters; v != nil && (!finite(*v) || *v < 0) {
		return invalid("planned_distance_meters", "must be a non-negative number")
	}
	if v := e.PlannedDurationMinutes; v != nil && (!finite(*v) || *v < 0) {
		return invalid("planned_duration_minutes", "must be a non-negative number")
	}
	if v := e.PlannedPaceSecPerKm; v != nil && (!finite(*v) || *v <= 0) {
		return invalid("planned_pace_sec_per_km", "must be positive")
	}
	return nil
}
