package training

import (
	"math"
	"time"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/units"
	"github.com/okian/stride/internal/domain/window"
)

const (
	maxPct    = 100
	hoursADay = 24
)

// Metrics is the dashboard-ready view of a training state. Nil pointers mark
// values that cannot be derived from the inputs.
type Metrics struct {
	WeeklyMileageMiles       float64  `json:"weekly_mileage_miles"`
	RunsThisWeek             int      `json:"runs_this_week"`
	CurrentPaceSecPerKm      *float64 `json:"current_pace_sec_per_km"`
	TargetPaceSecPerKm       *float64 `json:"target_pace_sec_per_km"`
	CurrentPaceSecPerMile    *float64 `json:"current_pace_sec_per_mile"`
	TargetPaceSecPerMile     *float64 `json:"target_pace_sec_per_mile"`
	CurrentPaceLabel         string   `json:"current_pace_label,omitempty"`
	TargetPaceLabel          string   `json:"target_pace_label,omitempty"`
	PaceDiffSecPerMile       *int     `json:"pace_diff_sec_per_mile"`
	TrainingProgressPct      int      `json:"training_progress_pct"`
	WeeklyMileageTargetMiles int      `json:"weekly_mileage_target_miles"`
	ReadinessScore           int      `json:"readiness_score"`
	ConsistencyScore         int      `json:"consistency_score"`
	DaysToRace               *int     `json:"days_to_race"`
	HasGoal                  bool     `json:"has_goal"`
}

// Engine computes Metrics. It holds only configuration, so one Engine can be
// shared by any number of goroutines.
type Engine struct {
	params Params
}

// NewEngine creates an engine with the default parameters and the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{params: DefaultParams()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the parameters in use.
func (e *Engine) Params() Params {
	return e.params
}

// Compute derives every metric from a consistent snapshot of activities, goal
// and now. A nil goal degrades goal-dependent values to their empty state.
func (e *Engine) Compute(activities []model.Activity, goal *model.Goal, now time.Time) Metrics {
	week := window.CurrentWeek(now, e.params.WeekAnchor)

	m := Metrics{
		WeeklyMileageMiles: e.WeeklyMileage(activities, now),
		RunsThisWeek:       window.Count(activities, week),
		HasGoal:            goal != nil,
	}

	m.CurrentPaceSecPerKm = CurrentPace(activities)
	m.TargetPaceSecPerKm = TargetPace(goal)
	if m.CurrentPaceSecPerKm != nil {
		perMile := units.SecPerKmToSecPerMile(*m.CurrentPaceSecPerKm)
		m.CurrentPaceSecPerMile = &perMile
		m.CurrentPaceLabel = units.FormatPace(perMile)
	}
	if m.TargetPaceSecPerKm != nil {
		perMile := units.SecPerKmToSecPerMile(*m.TargetPaceSecPerKm)
		m.TargetPaceSecPerMile = &perMile
		m.TargetPaceLabel = units.FormatPace(perMile)
	}
	m.PaceDiffSecPerMile = PaceDiff(m.CurrentPaceSecPerKm, m.TargetPaceSecPerKm)

	m.TrainingProgressPct = TrainingProgress(goal, now)
	m.WeeklyMileageTargetMiles = e.WeeklyMileageTarget(goal, m.TrainingProgressPct)
	m.ReadinessScore = e.Readiness(m.WeeklyMileageMiles, m.WeeklyMileageTargetMiles, m.RunsThisWeek, m.PaceDiffSecPerMile, m.TrainingProgressPct)
	m.ConsistencyScore = e.Consistency(activities, now)
	m.DaysToRace = DaysToRace(goal, now)
	return m
}

// WeeklyMileage sums the distance of this week's activities, in miles, 1 dp.
func (e *Engine) WeeklyMileage(activities []model.Activity, now time.Time) float64 {
	meters := window.SumMeters(activities, window.CurrentWeek(now, e.params.WeekAnchor))
	return units.Round(units.MetersToMiles(meters), 1)
}

// CurrentPace is the plain mean of every recorded pace, in s/km.
func CurrentPace(activities []model.Activity) *float64 {
	var sum float64
	n := 0
	for _, a := range activities {
		if a.HasPace() {
			sum += *a.AveragePaceSecPerKm
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// TargetPace is the goal's required pace in s/km.
func TargetPace(goal *model.Goal) *float64 {
	if goal == nil || goal.TargetTimeSeconds == nil || goal.DistanceMeters <= 0 {
		return nil
	}
	pace := float64(*goal.TargetTimeSeconds) / (goal.DistanceMeters / units.MetersPerKm)
	return &pace
}

// PaceDiff is current minus target in whole seconds per mile. Negative means
// the athlete is running faster than the goal requires.
func PaceDiff(current, target *float64) *int {
	if current == nil || target == nil {
		return nil
	}
	diff := units.RoundInt(units.SecPerKmToSecPerMile(*current - *target))
	return &diff
}

// TrainingProgress is the elapsed share of the goal's build-up, 0..100.
func TrainingProgress(goal *model.Goal, now time.Time) int {
	if goal == nil {
		return 0
	}
	total := goal.RaceDate.Sub(goal.CreatedAt)
	if total <= 0 {
		return maxPct
	}
	elapsed := now.Sub(goal.CreatedAt)
	pct := units.RoundInt(float64(elapsed) / float64(total) * maxPct)
	return units.Clamp(pct, 0, maxPct)
}

// WeeklyMileageTarget ramps linearly from RampStartFraction of the estimated
// peak volume to the full peak as progress approaches RampFullProgressPct.
func (e *Engine) WeeklyMileageTarget(goal *model.Goal, progressPct int) int {
	p := e.params
	raceMiles := p.DefaultRaceMiles
	if goal != nil {
		raceMiles = units.MetersToMiles(goal.DistanceMeters)
	}
	peak := math.Min(raceMiles*p.PeakMileageMultiplier, p.PeakMileageCapMiles)

	ramp := 1.0
	if p.RampFullProgressPct > 0 {
		ramp = math.Min(1, float64(progressPct)/p.RampFullProgressPct)
	}
	factor := p.RampStartFraction + (1-p.RampStartFraction)*ramp
	return units.RoundInt(math.Max(p.MinWeeklyTargetMiles, peak*factor))
}

// Readiness blends volume, consistency, pace and progress into a 0..100 score.
func (e *Engine) Readiness(weeklyMiles float64, targetMiles, runsThisWeek int, paceDiff *int, progressPct int) int {
	p := e.params

	var volumePct float64
	if targetMiles > 0 {
		volumePct = math.Min(maxPct, weeklyMiles/float64(targetMiles)*maxPct)
	}

	var consistencyBonus float64
	switch {
	case runsThisWeek >= p.ConsistentWeekRuns:
		consistencyBonus = p.ConsistencyBonusHigh
	case runsThisWeek >= 1:
		consistencyBonus = p.ConsistencyBonusLow
	}

	var paceBonus float64
	if paceDiff != nil {
		if math.Abs(float64(*paceDiff)) < p.PaceCloseWindowSec {
			paceBonus = p.PaceBonusClose
		} else {
			paceBonus = p.PaceBonusKnown
		}
	}

	score := volumePct*p.VolumeWeight + consistencyBonus + paceBonus + float64(progressPct)*p.ProgressWeight
	return units.Clamp(units.RoundInt(score), 0, maxPct)
}

// Consistency awards points for each recent rolling week with enough runs.
func (e *Engine) Consistency(activities []model.Activity, now time.Time) int {
	if len(activities) == 0 {
		return 0
	}
	p := e.params
	score := 0
	for _, w := range window.Rolling(now, p.ConsistencyWeeks) {
		if window.Count(activities, w) >= p.ConsistentWeekRuns {
			score += p.ConsistencyWeekPoints
		}
	}
	return units.Clamp(score, 0, maxPct)
}

// DaysToRace counts whole days left until the race, rounding partial days up.
func DaysToRace(goal *model.Goal, now time.Time) *int {
	if goal == nil {
		return nil
	}
	days := int(math.Ceil(goal.RaceDate.Sub(now).Hours() / hoursADay))
	return &days
}
