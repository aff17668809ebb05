package app

import (
	"context"
	"time"

	"github.com/okian/stride/internal/adapters/mq/events"
	"github.com/okian/stride/internal/domain/insight"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/training"
	"github.com/okian/stride/pkg/logger"
)

// CalendarChange is the payload of a calendar_changed event.
type CalendarChange struct {
	Op      string            `json:"op"`
	EntryID string            `json:"entry_id"`
	Status  model.EntryStatus `json:"status,omitempty"`
}

// InsightSnapshot is the payload of an insight_selected event: what the
// coach said and the numbers it was based on.
type InsightSnapshot struct {
	Insight insight.Insight  `json:"insight"`
	Metrics training.Metrics `json:"metrics"`
}

// publishTimeout bounds how long a write waits on the broker.
const publishTimeout = 2 * time.Second

// publish sends an event. A failed publish never fails the write that caused it.
func (s *Service) publish(ctx context.Context, t events.Type, userID string, payload any) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, events.Event{
		Type:       t,
		UserID:     userID,
		OccurredAt: s.now(),
		Payload:    payload,
	})
	if err != nil {
		s.log().Warn(ctx, "coaching event not published",
			logger.String("type", string(t)),
			logger.String("user_id", userID),
			logger.Error(err),
		)
	}
}
