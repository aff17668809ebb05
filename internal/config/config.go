// Package config defines service configuration and its loading.
package config

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/okian/stride/internal/domain/calendar"
	"github.com/okian/stride/internal/domain/chart"
	"github.com/okian/stride/internal/domain/insight"
	"github.com/okian/stride/internal/domain/training"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`
	// LogFile, when set, receives logs through a rotating file writer.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Timezone names the location that decides where a day starts.
	// "Local" uses the process timezone.
	Timezone string `koanf:"timezone"`

	// DatabaseURL selects the Postgres gateway.
	DatabaseURL string `koanf:"database_url"`
	// SQLitePath selects the embedded SQLite gateway when DatabaseURL is
	// empty. With neither set data lives in memory.
	SQLitePath string `koanf:"sqlite_path"`

	// RedisAddr enables the shared idempotency set and the write rate limit.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	// RateLimitPerMin caps writes per user and route. Zero disables it.
	RateLimitPerMin int `koanf:"rate_limit_per_min"`

	// KafkaBrokers is a comma separated broker list. Empty disables events.
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`

	// TracingEnabled exports spans to stdout.
	TracingEnabled bool `koanf:"tracing_enabled"`

	Metrics Metrics `koanf:"metrics"`

	RefreshQueueSize int `koanf:"refresh_queue_size"`
	RefreshWorkers   int `koanf:"refresh_workers"`

	// DedupeSize bounds the remembered activity ids.
	DedupeSize int `koanf:"dedupe_size"`
	// SnapshotCacheMB bounds the memory kept for stale dashboards and grids.
	SnapshotCacheMB int `koanf:"snapshot_cache_mb"`

	// DashboardWeekStart is the weekday the dashboard week begins on.
	DashboardWeekStart string `koanf:"dashboard_week_start"`

	CalendarBlockDays int `koanf:"calendar_block_days"`
	VolumeWeeks       int `koanf:"volume_weeks"`
	PacePoints        int `koanf:"pace_points"`

	Coaching training.Params    `koanf:"coaching"`
	Insight  insight.Thresholds `koanf:"insight"`
}

// Metrics shapes the exported Prometheus series.
type Metrics struct {
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	// Buckets replace the default latency histogram buckets, in seconds.
	Buckets     []float64         `koanf:"buckets"`
	ConstLabels map[string]string `koanf:"const_labels"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		Timezone:           "Local",
		RefreshQueueSize:   1024,
		RefreshWorkers:     runtime.NumCPU(),
		DedupeSize:         50_000,
		SnapshotCacheMB:    32,
		RateLimitPerMin:    120,
		KafkaTopic:         "stride.events",
		Metrics:            Metrics{Namespace: "stride", Subsystem: "coach"},
		DashboardWeekStart: "sunday",
		CalendarBlockDays:  calendar.DefaultBlockDays,
		VolumeWeeks:        chart.DefaultVolumeWeeks,
		PacePoints:         chart.DefaultPacePoints,
		Coaching:           training.DefaultParams(),
		Insight:            insight.DefaultThresholds(),
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if strings.EqualFold(c.Timezone, "local") || c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Brokers splits KafkaBrokers into addresses.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// WeekStart resolves DashboardWeekStart.
func (c *Config) WeekStart() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(c.DashboardWeekStart))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: dashboard_week_start %q", ErrInvalidConfig, c.DashboardWeekStart)
}

// Validate checks values that would make the service misbehave.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SnapshotCacheMB <= 0:
		return fmt.Errorf("%w: snapshot_cache_mb must be positive", ErrInvalidConfig)
	case c.CalendarBlockDays <= 0:
		return fmt.Errorf("%w: calendar_block_days must be positive", ErrInvalidConfig)
	case c.VolumeWeeks <= 0:
		return fmt.Errorf("%w: volume_weeks must be positive", ErrInvalidConfig)
	case c.PacePoints <= 0:
		return fmt.Errorf("%w: pace_points must be positive", ErrInvalidConfig)
	case c.Coaching.ConsistencyWeeks <= 0:
		return fmt.Errorf("%w: coaching.consistency_weeks must be positive", ErrInvalidConfig)
	case c.RateLimitPerMin < 0:
		return fmt.Errorf("%w: rate_limit_per_min must not be negative", ErrInvalidConfig)
	case c.RedisDB < 0:
		return fmt.Errorf("%w: redis_db must not be negative", ErrInvalidConfig)
	case len(c.Brokers()) > 0 && strings.TrimSpace(c.KafkaTopic) == "":
		return fmt.Errorf("%w: kafka_topic is required with kafka_brokers", ErrInvalidConfig)
	case !sort.Float64sAreSorted(c.Metrics.Buckets):
		return fmt.Errorf("%w: metrics.buckets must be ascending", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	_, err := c.WeekStart()
	return err
}
