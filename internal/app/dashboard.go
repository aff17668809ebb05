package app

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/stride/internal/adapters/mq/events"
	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/chart"
	"github.com/okian/stride/internal/domain/insight"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/training"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
	"github.com/okian/stride/pkg/tracing"
)

var tracer = tracing.Tracer("github.com/okian/stride/internal/app") //nolint:gochecknoglobals // package tracer

// Dashboard is everything the dashboard screen shows for one user.
type Dashboard struct {
	UserID      string              `json:"user_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Goal        *model.Goal         `json:"goal"`
	Metrics     training.Metrics    `json:"metrics"`
	Insight     insight.Insight     `json:"insight"`
	Volume      []chart.VolumePoint `json:"volume"`
	Pace        []chart.PacePoint   `json:"pace"`
	// Stale is set when the gateway failed and this is the last good copy.
	Stale bool `json:"stale"`
}

// Dashboard computes the user's dashboard from the gateway. When the gateway
// fails it returns the last good dashboard marked stale together with an
// ErrGateway error; without one it returns only the error.
func (s *Service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	activities, goal, err := s.load(ctx, userID)
	if err != nil {
		if last, ok := s.snapshots.dashboard(userID); ok {
			metrics.RecordStaleServed("dashboard")
			s.log().Warn(ctx, "serving stale dashboard", logger.String("user_id", userID), logger.Error(err))
			last.Stale = true
			return last, err
		}
		return Dashboard{}, err
	}

	d := s.compute(userID, activities, goal)

	if err := s.snapshots.putDashboard(d); err != nil {
		s.log().Warn(ctx, "dashboard snapshot not kept", logger.String("user_id", userID), logger.Error(err))
	}
	metrics.UpdateSnapshotCount(int(s.snapshots.count()))
	return d, nil
}

// Refresh recomputes the user's dashboard snapshot and publishes the
// selected insight. It is what the refresh workers run.
func (s *Service) Refresh(ctx context.Context, userID string) error {
	d, err := s.Dashboard(ctx, userID)
	if err != nil {
		return err
	}
	s.publish(ctx, events.TypeInsightSelected, userID, InsightSnapshot{Insight: d.Insight, Metrics: d.Metrics})
	return nil
}

// load fetches activities and the active goal in parallel. A missing goal is
// not an error.
func (s *Service) load(ctx context.Context, userID string) (activities []model.Activity, goal *model.Goal, err error) {
	ctx, span := tracer.Start(ctx, "app.load", trace.WithAttributes(attribute.String("user_id", userID)))
	defer func() { tracing.End(span, err) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		acts, err := s.gateway.ListActivities(gctx, userID)
		if err != nil {
			return gatewayError("list_activities", err)
		}
		activities = acts
		return nil
	})
	g.Go(func() error {
		active, err := s.gateway.ActiveGoal(gctx, userID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil
		case err != nil:
			return gatewayError("active_goal", err)
		}
		goal = &active
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return activities, goal, nil
}

func (s *Service) compute(userID string, activities []model.Activity, goal *model.Goal) Dashboard {
	now := s.today()
	m := s.engine.Compute(activities, goal, now)
	ins := s.selector.Select(m)

	metrics.RecordDashboardComputed()
	metrics.RecordInsight(ins.Rule)
	metrics.ObserveReadiness(m.ReadinessScore)

	return Dashboard{
		UserID:      userID,
		GeneratedAt: now,
		Goal:        goal,
		Metrics:     m,
		Insight:     ins,
		Volume:      chart.VolumeSeries(activities, now, s.engine.Params().WeekAnchor, s.volumeWeeks),
		Pace:        chart.PaceSeries(activities, s.pacePoints),
	}
}
