package seed

import "time"

// Config holds configuration for a seed run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Users      int           // Number of athletes to create
	Weeks      int           // Weeks of run history per athlete
	PlanDays   int           // Days of calendar plan from today
	Workers    int           // Concurrent athletes being submitted
	Timeout    time.Duration // HTTP request timeout
	Seed       int64         // Random seed; the same seed yields the same data
	OutputFile string        // Where the generated data is written, empty to skip
	Verbose    bool          // Log every request
}

// Athlete is everything generated for one user.
type Athlete struct {
	UserID     string          `json:"user_id"`
	Goal       GoalInput       `json:"goal"`
	Activities []ActivityInput `json:"activities"`
	Plan       []EntryInput    `json:"plan"`
}

// GoalInput is the body of PUT /goal.
type GoalInput struct {
	RaceDate          string  `json:"race_date"`
	DistanceMeters    float64 `json:"distance_meters"`
	TargetTimeSeconds *int    `json:"target_time_seconds,omitempty"`
}

// ActivityInput is the body of POST /activities.
type ActivityInput struct {
	ID                  string    `json:"id"`
	StartTime           time.Time `json:"start_time"`
	DistanceMeters      float64   `json:"distance_meters"`
	AveragePaceSecPerKm *float64  `json:"average_pace_sec_per_km,omitempty"`
}

// EntryInput is the body of PUT /calendar/entries.
type EntryInput struct {
	Date                  string   `json:"date"`
	WorkoutType           string   `json:"workout_type"`
	Title                 string   `json:"title"`
	Description           string   `json:"description,omitempty"`
	PlannedDistanceMeters *float64 `json:"planned_distance_meters,omitempty"`
	Status                string   `json:"status,omitempty"`
	Source                string   `json:"source,omitempty"`
}

// AckResponse is the reply to POST /activities.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	Athletes           int
	ActivitiesCreated  int64
	ActivitiesRepeated int64
	EntriesWritten     int64
	Failed             int64
	DashboardsVerified int64
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
