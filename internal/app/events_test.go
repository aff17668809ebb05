package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stride/internal/adapters/mq/events"
	"github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/domain/dedupe"
	"github.com/okian/stride/internal/domain/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// sharedDeduper stands in for a deduper shared between instances.
type sharedDeduper struct {
	dedupe.Deduper
	calls int
}

func (d *sharedDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.calls++
	return d.Deduper.SeenAndRecord(ctx, key)
}

func TestCoachingEvents(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a recording publisher", t, func() {
		pub := &recordingPublisher{}
		svc, _ := newService(app.WithPublisher(pub))

		Convey("When writes succeed", func() {
			_, err := svc.SetGoal(ctx, "u1", marathon())
			So(err, ShouldBeNil)
			_, err = svc.IngestActivity(ctx, "u1", model.Activity{ID: "a1", StartTime: now, DistanceMeters: 5000})
			So(err, ShouldBeNil)
			e, err := svc.UpsertEntry(ctx, "u1", model.CalendarEntry{Date: now, WorkoutType: model.WorkoutEasy, Title: "Easy"})
			So(err, ShouldBeNil)
			_, err = svc.ToggleEntry(ctx, "u1", e.ID)
			So(err, ShouldBeNil)

			Convey("Then each publishes one event stamped by the service clock", func() {
				So(pub.types(), ShouldResemble, []events.Type{
					events.TypeGoalSet,
					events.TypeActivityIngested,
					events.TypeCalendarChanged,
					events.TypeCalendarChanged,
				})
				last := pub.events[3]
				So(last.UserID, ShouldEqual, "u1")
				So(last.OccurredAt, ShouldEqual, now)
				So(last.Payload, ShouldResemble, app.CalendarChange{Op: "toggle", EntryID: e.ID, Status: model.StatusCompleted})
			})
		})

		Convey("When a replayed activity arrives", func() {
			a := model.Activity{ID: "a1", StartTime: now, DistanceMeters: 5000}
			_, _ = svc.IngestActivity(ctx, "u1", a)
			_, _ = svc.IngestActivity(ctx, "u1", a)
			So(len(pub.types()), ShouldEqual, 1)
		})

		Convey("When a refresh runs", func() {
			_, _ = svc.SetGoal(ctx, "u1", marathon())
			So(svc.Refresh(ctx, "u1"), ShouldBeNil)

			Convey("Then the selected insight is published with its metrics", func() {
				types := pub.types()
				So(types[len(types)-1], ShouldEqual, events.TypeInsightSelected)
				snap, ok := pub.events[len(types)-1].Payload.(app.InsightSnapshot)
				So(ok, ShouldBeTrue)
				So(snap.Metrics.HasGoal, ShouldBeTrue)
				So(snap.Insight.Rule, ShouldNotBeEmpty)
			})
		})

		Convey("When the broker is down", func() {
			pub.err = errors.New("broker unavailable")
			created, err := svc.IngestActivity(ctx, "u1", model.Activity{ID: "a1", StartTime: now, DistanceMeters: 5000})

			Convey("Then the write still succeeds", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
			})
		})

		Convey("When the service stops", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
			So(pub.closed, ShouldBeTrue)
		})

		Convey("When closing the publisher fails", func() {
			So(svc.Start(ctx), ShouldBeNil)
			pub.err = errors.New("flush failed")
			err := svc.Stop(ctx)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "flush failed")
		})
	})

	Convey("Given a service with its own deduper", t, func() {
		d := &sharedDeduper{Deduper: dedupe.NewInMemoryDeduper()}
		svc, _ := newService(app.WithDeduper(d))

		created, err := svc.IngestActivity(ctx, "u1", model.Activity{ID: "a1", StartTime: now, DistanceMeters: 5000})
		So(err, ShouldBeNil)
		So(created, ShouldBeTrue)
		So(d.calls, ShouldEqual, 1)
		So(svc.GetStats(ctx).SeenActivity, ShouldEqual, 1)
	})
}
