package model

import "time"

// Goal is a race the athlete is training for. At most one goal per user is
// active at a time; the gateway enforces that.
type Goal struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	RaceDate time.Time `json:"race_date"`
	// DistanceMeters is the race distance, always positive.
	DistanceMeters float64 `json:"distance_meters"`
	// TargetTimeSeconds is nil when the athlete only wants to finish.
	TargetTimeSeconds *int      `json:"target_time_seconds,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	IsActive          bool      `json:"is_active"`
}

// Validate checks the goal invariants.
func (g Goal) Validate() error {
	switch {
	case g.RaceDate.IsZero():
		return invalid("race_date", "missing")
	case !finite(g.DistanceMeters) || g.DistanceMeters <= 0:
		return invalid("distance_meters", "must be positive")
	case g.TargetTimeSeconds != nil && *g.TargetTimeSeconds <= 0:
		return invalid("target_time_seconds", "must be positive")
	}
	return nil
}
