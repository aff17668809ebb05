// Package app wires the coaching core to the data gateway. It computes
// dashboards and calendar grids, applies writes and keeps the last good
// snapshot per user so that a gateway outage degrades to stale data.
package app

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/okian/stride/internal/adapters/mq/events"
	"github.com/okian/stride/internal/adapters/mq/queue"
	"github.com/okian/stride/internal/adapters/mq/worker"
	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/calendar"
	"github.com/okian/stride/internal/domain/chart"
	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/internal/domain/insight"
	"github.com/okian/stride/internal/domain/training"
	"github.com/okian/stride/pkg/logger"
)

// Service implements the dependencies of the HTTP API.
type Service struct {
	mu sync.RWMutex

	gateway   repository.Gateway
	engine    *training.Engine
	selector  *insight.Selector
	deduper   dedupe.Deduper
	publisher events.Publisher
	refresh   queue.Queue
	pool      *worker.Pool

	snapshots *snapshots

	// Configuration
	loc         *time.Location
	now         func() time.Time
	workerCount int
	queueSize   int
	dedupeSize  int
	cacheSize   int
	blockDays   int
	volumeWeeks int
	pacePoints  int
	params      training.Params
	thresholds  insight.Thresholds

	started bool
	logger  logger.Logger
}

type gridKey struct {
	userID string
	start  string
	days   int
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithGateway sets the data gateway. The default is an in-memory store.
func WithGateway(g repository.Gateway) Option {
	return func(s *Service) {
		if g != nil {
			s.gateway = g
		}
	}
}

// WithDeduper replaces the in-memory activity deduper, e.g. with one shared
// between instances.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithPublisher sets where coaching events go. The default drops them.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the location whose midnight starts a day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the remembered activity ids.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSnapshotCacheSize bounds the memory, in bytes, kept for last good
// dashboards and grids.
func WithSnapshotCacheSize(bytes int) Option {
	return func(s *Service) {
		if bytes > 0 {
			s.cacheSize = bytes
		}
	}
}

// WithTrainingParams replaces the metrics engine parameters.
func WithTrainingParams(p training.Params) Option {
	return func(s *Service) {
		s.params = p
	}
}

// WithThresholds replaces the insight thresholds.
func WithThresholds(t insight.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = t
	}
}

// WithCalendarBlockDays sets the default grid length.
func WithCalendarBlockDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.blockDays = days
		}
	}
}

// WithChartSizes sets the number of volume weeks and pace points.
func WithChartSizes(volumeWeeks, pacePoints int) Option {
	return func(s *Service) {
		if volumeWeeks > 0 {
			s.volumeWeeks = volumeWeeks
		}
		if pacePoints > 0 {
			s.pacePoints = pacePoints
		}
	}
}

// New constructs a Service. The refresh pipeline runs only after Start.
func New(opts ...Option) *Service {
	s := &Service{
		loc:         time.Local,
		now:         time.Now,
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  50_000,
		cacheSize:   defaultSnapshotSize,
		blockDays:   calendar.DefaultBlockDays,
		volumeWeeks: chart.DefaultVolumeWeeks,
		pacePoints:  chart.DefaultPacePoints,
		params:      training.DefaultParams(),
		thresholds:  insight.DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gateway == nil {
		s.gateway = repository.NewMemoryStore(repository.WithLocation(s.loc))
	}
	s.engine = training.NewEngine(training.WithParams(s.params))
	s.selector = insight.NewSelector(insight.WithThresholds(s.thresholds))
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	s.snapshots = newSnapshots(s.cacheSize)
	return s
}

// Start launches the refresh workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	s.refresh = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.refresh, s, worker.WithLogger(s.logger))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "coaching service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.String("timezone", s.loc.String()),
	)
	return nil
}

// Stop drains the refresh queue, then closes the event publisher and the
// gateway when it supports it. The lock is released before draining because
// in-flight refreshes read service state.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	pool, publisher, gateway, log := s.pool, s.publisher, s.gateway, s.logger
	s.started = false
	s.mu.Unlock()

	log.Info(ctx, "stopping coaching service...")

	err := pool.Shutdown(ctx)
	err = multierr.Append(err, publisher.Close())
	if closer, ok := gateway.(interface{ Close() error }); ok {
		err = multierr.Append(err, closer.Close())
	}
	if err != nil {
		log.Error(ctx, "coaching service stopped with errors", logger.Error(err))
		return err
	}
	log.Info(ctx, "coaching service stopped")
	return nil
}

// Stats is a monitoring view of the service.
type Stats struct {
	Started      bool              `json:"started"`
	Workers      int               `json:"workers"`
	QueueLength  int               `json:"queue_length"`
	Snapshots    int64             `json:"snapshots"`
	SeenActivity int64             `json:"seen_activities"`
	Store        *repository.Stats `json:"store,omitempty"`
	Timezone     string            `json:"timezone"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started:      s.started,
		SeenActivity: s.deduper.Size(),
		Timezone:     s.loc.String(),
	}
	if s.started {
		st.Workers = s.pool.Size()
		st.QueueLength = s.refresh.Len(ctx)
	}

	st.Snapshots = s.snapshots.count()

	if sp, ok := s.gateway.(interface {
		Stats(context.Context) (repository.Stats, error)
	}); ok {
		if store, err := sp.Stats(ctx); err == nil {
			st.Store = &store
		}
	}
	return st
}

// enqueueRefresh asks the workers to recompute a user's dashboard. Writes
// made before Start are picked up by the next read instead.
func (s *Service) enqueueRefresh(ctx context.Context, userID, reason string) {
	s.mu.RLock()
	q := s.refresh
	started := s.started
	s.mu.RUnlock()
	if !started {
		return
	}
	if err := q.Enqueue(ctx, queue.Request{UserID: userID, Reason: reason}); err != nil {
		s.log().Debug(ctx, "refresh not enqueued",
			logger.String("user_id", userID),
			logger.String("reason", reason),
			logger.Error(err),
		)
	}
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	l := s.logger
	s.mu.RUnlock()
	if l != nil {
		return l
	}
	return logger.Get().Named("app")
}

// today returns the current time in the service location.
func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}
