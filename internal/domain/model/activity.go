// Package model contains domain models passed between layers.
package model

import (
	"math"
	"strings"
	"time"
)

// Activity is a completed run as reported by the gateway. The core never
// mutates it.
type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	// DistanceMeters is the covered distance, never negative.
	DistanceMeters float64 `json:"distance_meters"`
	// AveragePaceSecPerKm is nil when the source did not record a pace.
	AveragePaceSecPerKm *float64 `json:"average_pace_sec_per_km,omitempty"`
}

// HasPace reports whether the activity carries a usable pace value.
func (a Activity) HasPace() bool {
	return a.AveragePaceSecPerKm != nil && *a.AveragePaceSecPerKm > 0
}

// Validate checks the activity invariants.
func (a Activity) Validate() error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return invalid("id", "missing")
	case a.StartTime.IsZero():
		return invalid("start_time", "missing")
	case !finite(a.DistanceMeters) || a.DistanceMeters < 0:
		return invalid("distance_meters", "must be a non-negative number")
	}
	if a.AveragePaceSecPerKm != nil {
		if p := *a.AveragePaceSecPerKm; !finite(p) || p <= 0 {
			return invalid("average_pace_sec_per_km", "must be positive")
		}
	}
	return nil
}

// Float returns a pointer to v. Handy for optional numeric fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
