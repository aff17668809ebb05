package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/okian/stride/internal/adapters/mq/events"
	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
)

// IngestActivity stores a completed run. Replaying an activity id that was
// already ingested is a no-op and reports created=false.
func (s *Service) IngestActivity(ctx context.Context, userID string, a model.Activity) (bool, error) {
	a.UserID = userID
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Validate(); err != nil {
		return false, err
	}

	key := dedupe.Key(userID, a.ID)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordActivityDuplicate()
		s.log().Debug(ctx, "duplicate activity ignored",
			logger.String("user_id", userID),
			logger.String("activity_id", a.ID),
		)
		return false, nil
	}

	if err := s.gateway.AddActivity(ctx, a); err != nil {
		s.deduper.Unrecord(ctx, key)
		return false, gatewayError("add_activity", err)
	}
	metrics.RecordActivityIngested()
	s.publish(ctx, events.TypeActivityIngested, userID, a)
	s.enqueueRefresh(ctx, userID, "activity")
	return true, nil
}

// ListActivities returns the user's activities ordered by start time.
func (s *Service) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	acts, err := s.gateway.ListActivities(ctx, userID)
	if err != nil {
		return nil, gatewayError("list_activities", err)
	}
	return acts, nil
}

// SetGoal makes g the user's active goal.
func (s *Service) SetGoal(ctx context.Context, userID string, g model.Goal) (model.Goal, error) {
	g.UserID = userID
	if !g.RaceDate.IsZero() {
		g.RaceDate = window.Midnight(g.RaceDate.In(s.loc))
	}
	if err := g.Validate(); err != nil {
		return model.Goal{}, err
	}
	saved, err := s.gateway.SaveGoal(ctx, g)
	if err != nil {
		return model.Goal{}, gatewayError("save_goal", err)
	}
	s.publish(ctx, events.TypeGoalSet, userID, saved)
	s.enqueueRefresh(ctx, userID, "goal")
	return saved, nil
}

// ActiveGoal returns the user's active goal, or nil when there is none.
func (s *Service) ActiveGoal(ctx context.Context, userID string) (*model.Goal, error) {
	g, err := s.gateway.ActiveGoal(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, gatewayError("active_goal", err)
	}
	return &g, nil
}
