// Package training derives the dashboard metrics (weekly mileage, pace delta,
// training progress, readiness and consistency) from activities and a goal.
package training

import "time"

// Params holds the empirical constants of the scoring model. Zero values are
// not meaningful; start from DefaultParams and override.
type Params struct {
	// WeekAnchor is the first day of the dashboard week.
	WeekAnchor time.Weekday `koanf:"-"`

	// Weekly mileage target ramp.
	MinWeeklyTargetMiles  float64 `koanf:"min_weekly_target_miles"`
	PeakMileageMultiplier float64 `koanf:"peak_mileage_multiplier"`
	PeakMileageCapMiles   float64 `koanf:"peak_mileage_cap_miles"`
	DefaultRaceMiles      float64 `koanf:"default_race_miles"`
	RampStartFraction     float64 `koanf:"ramp_start_fraction"`
	RampFullProgressPct   float64 `koanf:"ramp_full_progress_pct"`

	// Readiness composite.
	VolumeWeight          float64 `koanf:"volume_weight"`
	ConsistentWeekRuns    int     `koanf:"consistent_week_runs"`
	ConsistencyBonusHigh  float64 `koanf:"consistency_bonus_high"`
	ConsistencyBonusLow   float64 `koanf:"consistency_bonus_low"`
	PaceCloseWindowSec    float64 `koanf:"pace_close_window_sec"`
	PaceBonusClose        float64 `koanf:"pace_bonus_close"`
	PaceBonusKnown        float64 `koanf:"pace_bonus_known"`
	ProgressWeight        float64 `koanf:"progress_weight"`
	ConsistencyWeeks      int     `koanf:"consistency_weeks"`
	ConsistencyWeekPoints int     `koanf:"consistency_week_points"`
}

// DefaultParams returns the stock coaching model.
func DefaultParams() Params {
	return Params{
		WeekAnchor:            time.Sunday,
		MinWeeklyTargetMiles:  10,
		PeakMileageMultiplier: 3,
		PeakMileageCapMiles:   60,
		DefaultRaceMiles:      26.2,
		RampStartFraction:     0.5,
		RampFullProgressPct:   80,
		VolumeWeight:          0.5,
		ConsistentWeekRuns:    3,
		ConsistencyBonusHigh:  20,
		ConsistencyBonusLow:   10,
		PaceCloseWindowSec:    10,
		PaceBonusClose:        15,
		PaceBonusKnown:        5,
		ProgressWeight:        0.15,
		ConsistencyWeeks:      4,
		ConsistencyWeekPoints: 25,
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithParams replaces the whole parameter set.
func WithParams(p Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}

// WithWeekAnchor sets the first day of the dashboard week.
func WithWeekAnchor(d time.Weekday) Option {
	return func(e *Engine) {
		if d >= time.Sunday && d <= time.Saturday {
			e.params.WeekAnchor = d
		}
	}
}
