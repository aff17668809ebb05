package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/stride/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run seeds a running service: for every generated athlete it sets the goal,
// posts the run history, writes the plan and finally reads the dashboard back.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Get().Named("seed")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting stride seed",
		logger.String("base_url", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("weeks", config.Weeks),
		logger.Int("plan_days", config.PlanDays),
		logger.Int("workers", config.Workers),
		logger.Any("seed", config.Seed),
	)

	c := newClient(config.BaseURL, config.Timeout)
	if err := checkServiceHealth(ctx, c); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	athletes := Generate(config.Seed, config.Users, config.Weeks, config.PlanDays, time.Now())
	stats.Athletes = len(athletes)
	log.Info(ctx, "generated athletes", logger.Int("count", len(athletes)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(config.Workers, 1))
	for _, a := range athletes {
		g.Go(func() error {
			if err := submitAthlete(gctx, c, a, stats, config.Verbose); err != nil {
				atomic.AddInt64(&stats.Failed, 1)
				return fmt.Errorf("athlete %s: %w", a.UserID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if config.OutputFile != "" {
		if err := saveAthletes(config.OutputFile, athletes); err != nil {
			log.Warn(ctx, "failed to save generated data", logger.Error(err))
		} else {
			log.Info(ctx, "generated data saved", logger.String("filename", config.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, c *client) error {
	var health struct {
		Status string `json:"status"`
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthz: %d", ErrStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health: %w", err)
	}
	return nil
}

func submitAthlete(ctx context.Context, c *client, a Athlete, stats *Stats, verbose bool) error {
	log := logger.Get().Named("seed")

	if _, err := c.do(ctx, http.MethodPut, "/goal", a.UserID, a.Goal, nil); err != nil {
		return err
	}

	for _, act := range a.Activities {
		var ack AckResponse
		if _, err := c.do(ctx, http.MethodPost, "/activities", a.UserID, act, &ack); err != nil {
			return err
		}
		if ack.Duplicate {
			atomic.AddInt64(&stats.ActivitiesRepeated, 1)
		} else {
			atomic.AddInt64(&stats.ActivitiesCreated, 1)
		}
	}

	for _, e := range a.Plan {
		if _, err := c.do(ctx, http.MethodPut, "/calendar/entries", a.UserID, e, nil); err != nil {
			return err
		}
		atomic.AddInt64(&stats.EntriesWritten, 1)
	}

	var dash struct {
		Insight struct {
			Rule string `json:"rule"`
		} `json:"insight"`
		Metrics struct {
			ReadinessScore int `json:"readiness_score"`
		} `json:"metrics"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/dashboard", a.UserID, nil, &dash); err != nil {
		return err
	}
	atomic.AddInt64(&stats.DashboardsVerified, 1)

	if verbose {
		log.Info(ctx, "athlete seeded",
			logger.String("user_id", a.UserID),
			logger.Int("activities", len(a.Activities)),
			logger.Int("plan", len(a.Plan)),
			logger.String("insight", dash.Insight.Rule),
			logger.Int("readiness", dash.Metrics.ReadinessScore),
		)
	}
	return nil
}

// saveAthletes writes the generated data as indented JSON.
func saveAthletes(filename string, athletes []Athlete) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(athletes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal athletes: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.ActivitiesCreated) / stats.Duration.Seconds()
	}
	logger.Get().Named("seed").Info(ctx, "final statistics",
		logger.Int("athletes", stats.Athletes),
		logger.Any("activities_created", stats.ActivitiesCreated),
		logger.Any("activities_repeated", stats.ActivitiesRepeated),
		logger.Any("entries_written", stats.EntriesWritten),
		logger.Any("dashboards_verified", stats.DashboardsVerified),
		logger.Any("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("activities_per_second", perSecond),
	)
}
