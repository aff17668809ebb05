package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"go.uber.org/multierr"

	"github.com/okian/stride/internal/adapters/http/api"
	"github.com/okian/stride/internal/adapters/http/swagger"
	"github.com/okian/stride/internal/adapters/mq/events"
	"github.com/okian/stride/internal/adapters/redisdedupe"
	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/adapters/repository/postgres"
	"github.com/okian/stride/internal/adapters/repository/sqlite"
	app "github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/config"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
	"github.com/okian/stride/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	megabyte          = 1 << 20

	serviceName = "stride"
)

func main() {
	if err := run(); err != nil {
		_, _ = os.Stderr.WriteString("stride: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(
		logger.WithFormat(cfg.LogFormat),
		logger.WithFile(cfg.LogFile),
		logger.WithLevel(cfg.LogLevel),
	); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := configureMetrics(cfg); err != nil {
		log.Warn(ctx, "runtime collectors not registered", logger.Error(err))
	}

	shutdownTracing, err := tracing.Setup(cfg.TracingEnabled, serviceName, os.Stdout)
	if err != nil {
		return err
	}

	deps, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error(context.Background(), "releasing dependencies failed", logger.Error(err))
		}
	}()

	if err := deps.svc.Start(ctx); err != nil {
		return err
	}

	handler, err := newHandler(ctx, cfg, deps, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		srv.Shutdown(shutdownCtx),
		deps.svc.Stop(shutdownCtx),
		shutdownTracing(shutdownCtx),
	)
	if err != nil {
		log.Error(shutdownCtx, "shutdown finished with errors", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// components is the wired service plus what must be released on exit.
type components struct {
	svc     *app.Service
	limiter api.RequestRateLimiter
	closers []io.Closer
}

// Close releases dependencies in reverse order of acquisition.
func (c *components) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.closers[i].Close())
	}
	c.closers = nil
	return err
}

// configureMetrics applies the metrics section and adds the runtime collectors.
func configureMetrics(cfg *config.Config) error {
	metrics.Configure(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithSubsystem(cfg.Metrics.Subsystem),
		metrics.WithHistogramBuckets(cfg.Metrics.Buckets),
		metrics.WithConstLabels(cfg.Metrics.ConstLabels),
	)
	return metrics.RegisterRuntimeCollectors()
}

// build picks the gateway and optional infrastructure from cfg and wires the
// coaching service on top.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *components, err error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := &components{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, c.Close())
		}
	}()

	gateway, err := newGateway(ctx, cfg, loc, log, c)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithGateway(gateway),
		app.WithLogger(log.Named("app")),
		app.WithLocation(loc),
		app.WithWorkerCount(cfg.RefreshWorkers),
		app.WithQueueSize(cfg.RefreshQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithSnapshotCacheSize(cfg.SnapshotCacheMB * megabyte),
		app.WithTrainingParams(cfg.Coaching),
		app.WithThresholds(cfg.Insight),
		app.WithCalendarBlockDays(cfg.CalendarBlockDays),
		app.WithChartSizes(cfg.VolumeWeeks, cfg.PacePoints),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		c.closers = append(c.closers, client)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		opts = append(opts, app.WithDeduper(redisdedupe.New(client,
			redisdedupe.WithMaxSize(cfg.DedupeSize),
			redisdedupe.WithLogger(log.Named("dedupe")),
		)))
		c.limiter = redis_rate.NewLimiter(client)
		log.Info(ctx, "using redis for idempotency and rate limits", logger.String("addr", cfg.RedisAddr))
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		opts = append(opts, app.WithPublisher(events.NewKafkaPublisher(brokers, cfg.KafkaTopic)))
		log.Info(ctx, "publishing events to kafka", logger.String("topic", cfg.KafkaTopic), logger.Int("brokers", len(brokers)))
	}

	c.svc = app.New(opts...)
	return c, nil
}

// newGateway opens Postgres, then SQLite, then falls back to memory.
func newGateway(ctx context.Context, cfg *config.Config, loc *time.Location, log logger.Logger, c *components) (repository.Gateway, error) {
	switch {
	case cfg.DatabaseURL != "":
		store, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.WithLocation(loc))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store)
		if err := metrics.Register(store.Collector(map[string]string{"db_name": serviceName})); err != nil {
			log.Warn(ctx, "pool collector not registered", logger.Error(err))
		}
		log.Info(ctx, "using postgres gateway")
		return store, nil
	case cfg.SQLitePath != "":
		store, err := sqlite.Open(ctx, cfg.SQLitePath, sqlite.WithLocation(loc))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store)
		log.Info(ctx, "using sqlite gateway", logger.String("path", cfg.SQLitePath))
		return store, nil
	default:
		log.Info(ctx, "using in-memory gateway")
		return repository.NewMemoryStore(repository.WithLocation(loc)), nil
	}
}

// newHandler mounts the API and its docs on one router.
func newHandler(ctx context.Context, cfg *config.Config, deps *components, log logger.Logger) (http.Handler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := []api.Option{
		api.WithLocation(loc),
		api.WithLogger(log.Named("api")),
		api.WithTracing(cfg.TracingEnabled),
	}
	if deps.limiter != nil {
		opts = append(opts, api.WithRateLimit(deps.limiter, cfg.RateLimitPerMin))
	}

	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(deps.svc, deps.svc, opts...).Register(ctx, r)
	return r, nil
}
