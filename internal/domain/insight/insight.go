// Package insight picks the single coaching message shown on the dashboard.
//
// Selection is an ordered decision table: rules are evaluated top to bottom
// and the first match wins. The order is part of the contract.
package insight

import (
	"fmt"
	"math"

	"github.com/okian/stride/internal/domain/training"
)

// Rule names, stable identifiers used in API responses and metrics labels.
const (
	RuleNoGoal      = "no_goal"
	RuleTaper       = "taper"
	RuleNoRuns      = "no_runs"
	RuleTargetHit   = "target_hit"
	RuleAheadOfPace = "ahead_of_pace"
	RuleBehindPace  = "behind_pace"
	RuleConsistent  = "consistent"
	RuleProgress    = "progress"
)

// Tone hints how the message should be styled.
type Tone string

// Tones.
const (
	ToneInfo      Tone = "info"
	ToneCelebrate Tone = "celebrate"
	ToneEncourage Tone = "encourage"
	ToneMotivate  Tone = "motivate"
)

const (
	daysPerWeek          = 7
	defaultTaperDays     = 14
	defaultFastDeltaSec  = -5
	defaultSlowDeltaSec  = 10
	defaultConsistentRun = 3
)

// Insight is the one message produced per evaluation.
type Insight struct {
	Rule    string `json:"rule"`
	Tone    Tone   `json:"tone"`
	Message string `json:"message"`
}

// Thresholds are the tunable cut-offs of the rule chain.
type Thresholds struct {
	TaperWindowDays int `koanf:"taper_window_days"`
	// FastDeltaSec: pace deltas strictly below this count as ahead of goal.
	FastDeltaSec int `koanf:"fast_delta_sec"`
	// SlowDeltaSec: pace deltas strictly above this count as off target.
	SlowDeltaSec   int `koanf:"slow_delta_sec"`
	ConsistentRuns int `koanf:"consistent_runs"`
}

// DefaultThresholds returns the stock cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TaperWindowDays: defaultTaperDays,
		FastDeltaSec:    defaultFastDeltaSec,
		SlowDeltaSec:    defaultSlowDeltaSec,
		ConsistentRuns:  defaultConsistentRun,
	}
}

type rule struct {
	name  string
	tone  Tone
	match func(m training.Metrics, t Thresholds) bool
	build func(m training.Metrics) string
}

// rules is evaluated in order; never reorder.
var rules = []rule{
	{
		name: RuleNoGoal,
		tone: ToneInfo,
		match: func(m training.Metrics, _ Thresholds) bool {
			return !m.HasGoal
		},
		build: func(training.Metrics) string {
			return "Set a race goal to unlock personalized coaching insights."
		},
	},
	{
		name: RuleTaper,
		tone: ToneInfo,
		match: func(m training.Metrics, t Thresholds) bool {
			return m.DaysToRace != nil && *m.DaysToRace <= t.TaperWindowDays
		},
		build: func(m training.Metrics) string {
			if *m.DaysToRace <= 0 {
				return "Race day is here. Trust your training and enjoy it."
			}
			return fmt.Sprintf("Race day is %s away. Time to taper: cut back volume, keep a little intensity and prioritize rest.",
				plural(*m.DaysToRace, "day"))
		},
	},
	{
		name: RuleNoRuns,
		tone: ToneMotivate,
		match: func(m training.Metrics, _ Thresholds) bool {
			return m.RunsThisWeek == 0 && m.WeeklyMileageMiles == 0
		},
		build: func(training.Metrics) string {
			return "No runs logged yet this week. A short easy run today is a great way to get going."
		},
	},
	{
		name: RuleTargetHit,
		tone: ToneCelebrate,
		match: func(m training.Metrics, _ Thresholds) bool {
			return m.WeeklyMileageMiles >= float64(m.WeeklyMileageTargetMiles)
		},
		build: func(m training.Metrics) string {
			return fmt.Sprintf("Weekly target hit: %.1f of %d miles. Great work, now make sure you recover well.",
				m.WeeklyMileageMiles, m.WeeklyMileageTargetMiles)
		},
	},
	{
		name: RuleAheadOfPace,
		tone: ToneCelebrate,
		match: func(m training.Metrics, t Thresholds) bool {
			return m.PaceDiffSecPerMile != nil && *m.PaceDiffSecPerMile < t.FastDeltaSec
		},
		build: func(m training.Metrics) string {
			return fmt.Sprintf("You're averaging %d sec/mile faster than goal pace. You might be ready for a more ambitious target.",
				-*m.PaceDiffSecPerMile)
		},
	},
	{
		name: RuleBehindPace,
		tone: ToneEncourage,
		match: func(m training.Metrics, t Thresholds) bool {
			return m.PaceDiffSecPerMile != nil && *m.PaceDiffSecPerMile > t.SlowDeltaSec
		},
		build: func(m training.Metrics) string {
			return fmt.Sprintf("Your average pace is %d sec/mile off goal pace. Don't stress, speed follows consistent easy miles.",
				*m.PaceDiffSecPerMile)
		},
	},
	{
		name: RuleConsistent,
		tone: ToneCelebrate,
		match: func(m training.Metrics, t Thresholds) bool {
			return m.RunsThisWeek >= t.ConsistentRuns
		},
		build: func(m training.Metrics) string {
			return fmt.Sprintf("%s this week. That consistency is what builds race fitness.",
				plural(m.RunsThisWeek, "run"))
		},
	},
}

// fallback always matches and closes the chain.
var fallback = rule{
	name: RuleProgress,
	tone: ToneInfo,
	build: func(m training.Metrics) string {
		weeks := 0
		if m.DaysToRace != nil {
			weeks = int(math.Ceil(float64(*m.DaysToRace) / daysPerWeek))
		}
		return fmt.Sprintf("%s until race day and you're %d%% through your build. Keep stacking steady weeks.",
			plural(weeks, "week"), m.TrainingProgressPct)
	},
}

// Selector evaluates the rule chain with a fixed set of thresholds.
type Selector struct {
	thresholds Thresholds
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithThresholds replaces the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *Selector) {
		s.thresholds = t
	}
}

// NewSelector creates a selector with default thresholds and the given options.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns exactly one insight for the metrics. Numbers in the message
// are the already-rounded metric values.
func (s *Selector) Select(m training.Metrics) Insight {
	for _, r := range rules {
		if r.match(m, s.thresholds) {
			return Insight{Rule: r.name, Tone: r.tone, Message: r.build(m)}
		}
	}
	return Insight{Rule: fallback.name, Tone: fallback.tone, Message: fallback.build(m)}
}

// Rules lists the rule names in evaluation order, fallback last.
func Rules() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.name)
	}
	return append(out, fallback.name)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
