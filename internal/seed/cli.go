package seed

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/stride/pkg/logger"
)

// Default flag values.
const (
	defaultBaseURL  = "http://localhost:9080"
	defaultUsers    = 20
	defaultWeeks    = 8
	defaultPlanDays = 14
	defaultTimeout  = 10 * time.Second
	defaultRunLimit = 10 * time.Minute

	durationPrecision = time.Millisecond
)

// SetupLogging initializes the global logger, optionally writing to a
// rotating log file instead of stdout.
func SetupLogging(logFile string, verbose bool) error {
	opts := []logger.Option{}
	if logFile != "" {
		opts = append(opts, logger.WithFile(logFile))
	}
	if verbose {
		opts = append(opts, logger.WithLevel("debug"))
	}
	if err := logger.Init(opts...); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// NewCommand builds the seed command. Flags fill a Config; the summary is
// written to the command's output once every athlete is submitted.
func NewCommand() *cobra.Command {
	var (
		cfg      Config
		logFile  string
		noColor  bool
		runLimit time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill a running stride service with generated athletes",
		Long: `seed creates athletes against a running stride service: a race goal,
weeks of run history and a training plan per athlete, then reads every
dashboard back. The same --seed always produces the same data.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Users < 1 {
				return fmt.Errorf("--users must be at least 1, got %d", cfg.Users)
			}
			if cfg.Weeks < 0 || cfg.PlanDays < 0 {
				return fmt.Errorf("--weeks and --plan must not be negative")
			}
			return SetupLogging(logFile, cfg.Verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			if runLimit > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, runLimit)
				defer cancel()
			}

			stats, err := Run(ctx, &cfg)
			if stats != nil {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), RenderStats(stats, noColor))
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "Base URL of the service")
	f.IntVar(&cfg.Users, "users", defaultUsers, "Number of athletes to create")
	f.IntVar(&cfg.Weeks, "weeks", defaultWeeks, "Weeks of run history per athlete")
	f.IntVar(&cfg.PlanDays, "plan", defaultPlanDays, "Days of training plan from today")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "Athletes submitted concurrently")
	f.Int64Var(&cfg.Seed, "seed", 1, "Random seed")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.StringVar(&cfg.OutputFile, "output", "", "Write the generated data to this JSON file")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Log every athlete")
	f.StringVar(&logFile, "log", "", "Write logs to this file instead of stdout")
	f.BoolVar(&noColor, "no-color", false, "Disable colored output")
	f.DurationVar(&runLimit, "limit", defaultRunLimit, "Abort the whole run after this long")
	return cmd
}
