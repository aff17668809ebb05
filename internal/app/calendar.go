package app

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/stride/internal/adapters/mq/events"
	"github.com/okian/stride/internal/domain/calendar"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
	"github.com/okian/stride/pkg/logger"
	"github.com/okian/stride/pkg/metrics"
	"github.com/okian/stride/pkg/tracing"
)

// maxCalendarDays caps a single grid request.
const maxCalendarDays = 12 * window.DaysPerWeek

// CalendarView is a grid plus its freshness.
type CalendarView struct {
	calendar.Grid
	Stale bool `json:"stale"`
}

// Calendar builds the training grid that contains startKey ("YYYY-MM-DD",
// today when empty). days <= 0 uses the configured block length.
func (s *Service) Calendar(ctx context.Context, userID, startKey string, days int) (CalendarView, error) {
	today := s.today()
	anchor := today
	if startKey != "" {
		t, err := window.ParseDateKey(startKey, s.loc)
		if err != nil {
			return CalendarView{}, invalid("start", "must be YYYY-MM-DD")
		}
		anchor = t
	}
	if days <= 0 {
		days = s.blockDays
	}
	if days > maxCalendarDays {
		return CalendarView{}, invalid("days", "too many days")
	}

	start := window.WeekStart(anchor, calendar.GridAnchor)
	key := gridKey{userID: userID, start: window.DateKey(start), days: days}

	entries, activities, err := s.loadBlock(ctx, userID, start, days)
	if err != nil {
		if last, ok := s.snapshots.grid(key); ok {
			metrics.RecordStaleServed("calendar")
			s.log().Warn(ctx, "serving stale calendar", logger.String("user_id", userID), logger.Error(err))
			return CalendarView{Grid: last, Stale: true}, err
		}
		return CalendarView{}, err
	}

	grid := calendar.BuildGrid(start, days, entries,
		calendar.WithToday(today),
		calendar.WithActivities(activities),
	)

	if err := s.snapshots.putGrid(key, grid); err != nil {
		s.log().Warn(ctx, "calendar snapshot not kept", logger.String("user_id", userID), logger.Error(err))
	}
	return CalendarView{Grid: grid}, nil
}

// loadBlock fetches every week of the block and the user's activities in parallel.
func (s *Service) loadBlock(ctx context.Context, userID string, start time.Time, days int) (entries []model.CalendarEntry, activities []model.Activity, err error) {
	ctx, span := tracer.Start(ctx, "app.loadBlock", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Int("days", days),
	))
	defer func() { tracing.End(span, err) }()

	weeks := (days + window.DaysPerWeek - 1) / window.DaysPerWeek
	perWeek := make([][]model.CalendarEntry, weeks)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < weeks; i++ {
		weekKey := window.DateKey(window.AddDays(start, i*window.DaysPerWeek))
		g.Go(func() error {
			entries, err := s.gateway.CalendarWeek(gctx, userID, weekKey)
			if err != nil {
				return gatewayError("calendar_week", err)
			}
			perWeek[i] = entries
			return nil
		})
	}
	g.Go(func() error {
		acts, err := s.gateway.ListActivities(gctx, userID)
		if err != nil {
			return gatewayError("list_activities", err)
		}
		activities = acts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, w := range perWeek {
		entries = append(entries, w...)
	}
	return entries, activities, nil
}

// UpsertEntry stores the user's entry for its date, replacing any entry
// already on that date.
func (s *Service) UpsertEntry(ctx context.Context, userID string, e model.CalendarEntry) (model.CalendarEntry, error) {
	e.UserID = userID
	e.Title = strings.TrimSpace(e.Title)
	if e.Status == "" {
		e.Status = model.StatusPlanned
	}
	if e.Source == "" {
		e.Source = model.SourceManual
	}
	if err := e.Validate(); err != nil {
		return model.CalendarEntry{}, err
	}
	if !calendar.WritableStatus(e.Status) {
		return model.CalendarEntry{}, invalid("status", "missed is derived and cannot be stored")
	}
	e.Date = window.Midnight(e.Date.In(s.loc))

	saved, err := s.gateway.UpsertCalendarEntry(ctx, e)
	if err != nil {
		return model.CalendarEntry{}, gatewayError("upsert_entry", err)
	}
	metrics.RecordCalendarMutation("upsert")
	s.publish(ctx, events.TypeCalendarChanged, userID, CalendarChange{Op: "upsert", EntryID: saved.ID, Status: saved.Status})
	s.enqueueRefresh(ctx, userID, "calendar")
	return saved, nil
}

// DeleteEntry removes one of the user's entries.
func (s *Service) DeleteEntry(ctx context.Context, userID, id string) error {
	if err := s.gateway.DeleteCalendarEntry(ctx, userID, id); err != nil {
		return gatewayError("delete_entry", err)
	}
	metrics.RecordCalendarMutation("delete")
	s.publish(ctx, events.TypeCalendarChanged, userID, CalendarChange{Op: "delete", EntryID: id})
	s.enqueueRefresh(ctx, userID, "calendar")
	return nil
}

// ToggleEntry flips a completed entry back to planned and anything else to
// completed, returning the updated entry.
func (s *Service) ToggleEntry(ctx context.Context, userID, id string) (model.CalendarEntry, error) {
	e, err := s.gateway.CalendarEntry(ctx, userID, id)
	if err != nil {
		return model.CalendarEntry{}, gatewayError("get_entry", err)
	}
	e.Status = calendar.ToggleStatus(e.Status)
	if err := s.gateway.UpdateCalendarEntryStatus(ctx, userID, id, e.Status); err != nil {
		return model.CalendarEntry{}, gatewayError("update_entry_status", err)
	}
	metrics.RecordCalendarMutation("toggle")
	s.publish(ctx, events.TypeCalendarChanged, userID, CalendarChange{Op: "toggle", EntryID: id, Status: e.Status})
	s.enqueueRefresh(ctx, userID, "calendar")
	return e, nil
}

// SetEntryStatus stores planned or completed on an entry.
func (s *Service) SetEntryStatus(ctx context.Context, userID, id string, status model.EntryStatus) error {
	if !calendar.WritableStatus(status) {
		return invalid("status", "must be planned or completed")
	}
	if err := s.gateway.UpdateCalendarEntryStatus(ctx, userID, id, status); err != nil {
		return gatewayError("update_entry_status", err)
	}
	metrics.RecordCalendarMutation("status")
	s.publish(ctx, events.TypeCalendarChanged, userID, CalendarChange{Op: "status", EntryID: id, Status: status})
	s.enqueueRefresh(ctx, userID, "calendar")
	return nil
}
