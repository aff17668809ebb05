package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/model"
)

var (
	testClock = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	day       = func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(context.Background(), WithLocation(time.UTC), WithClock(func() time.Time { return testClock }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(date time.Time, title string) model.CalendarEntry {
	return model.CalendarEntry{
		UserID:      "runner",
		Date:        date,
		WorkoutType: model.WorkoutEasy,
		Title:       title,
		Status:      model.StatusPlanned,
		Source:      model.SourceManual,
	}
}

func TestActivities(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := newTestStore(t)
		ctx := context.Background()

		Convey("Then a user has no activities", func() {
			acts, err := s.ListActivities(ctx, "runner")
			So(err, ShouldBeNil)
			So(acts, ShouldBeEmpty)
		})

		Convey("When activities are added out of order", func() {
			base := time.Date(2024, 1, 10, 7, 0, 0, 0, time.UTC)
			So(s.AddActivity(ctx, model.Activity{ID: "late", UserID: "runner", StartTime: base.Add(2 * time.Hour), DistanceMeters: 5000}), ShouldBeNil)
			So(s.AddActivity(ctx, model.Activity{ID: "early", UserID: "runner", StartTime: base, DistanceMeters: 3000, AveragePaceSecPerKm: model.Float(330)}), ShouldBeNil)
			So(s.AddActivity(ctx, model.Activity{ID: "early", UserID: "runner", StartTime: base, DistanceMeters: 3500}), ShouldBeNil)

			acts, err := s.ListActivities(ctx, "runner")
			So(err, ShouldBeNil)

			Convey("Then they come back by start time with replacements applied", func() {
				So(acts, ShouldHaveLength, 2)
				So(acts[0].ID, ShouldEqual, "early")
				So(acts[0].DistanceMeters, ShouldEqual, 3500)
				So(acts[0].AveragePaceSecPerKm, ShouldBeNil)
				So(acts[1].StartTime.Equal(base.Add(2*time.Hour)), ShouldBeTrue)
			})

			Convey("Then other users see nothing", func() {
				other, _ := s.ListActivities(ctx, "someone-else")
				So(other, ShouldBeEmpty)
			})
		})

		Convey("When an activity has no user", func() {
			So(s.AddActivity(ctx, model.Activity{ID: "x"}), ShouldEqual, repository.ErrMissingUser)
		})
	})
}

func TestGoals(t *testing.T) {
	Convey("Given a store", t, func() {
		s := newTestStore(t)
		ctx := context.Background()

		Convey("Then there is no active goal", func() {
			_, err := s.ActiveGoal(ctx, "runner")
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("When two goals are saved", func() {
			first, err := s.SaveGoal(ctx, model.Goal{UserID: "runner", RaceDate: day(20), DistanceMeters: 42195, TargetTimeSeconds: model.Int(12600)})
			So(err, ShouldBeNil)
			second, err := s.SaveGoal(ctx, model.Goal{UserID: "runner", RaceDate: day(28), DistanceMeters: 21097.5})
			So(err, ShouldBeNil)

			Convey("Then the latest one is active", func() {
				So(first.ID, ShouldNotBeEmpty)
				So(first.CreatedAt, ShouldEqual, testClock)
				active, err := s.ActiveGoal(ctx, "runner")
				So(err, ShouldBeNil)
				So(active.ID, ShouldEqual, second.ID)
				So(active.IsActive, ShouldBeTrue)
				So(active.TargetTimeSeconds, ShouldBeNil)
				So(active.RaceDate.Equal(day(28)), ShouldBeTrue)
			})

			Convey("Then both are kept", func() {
				st, err := s.Stats(ctx)
				So(err, ShouldBeNil)
				So(st.Goals, ShouldEqual, 2)
				So(st.Users, ShouldEqual, 1)
			})

			Convey("Then the stored row matches what was returned", func() {
				active, err := s.ActiveGoal(ctx, "runner")
				So(err, ShouldBeNil)
				So(active.CreatedAt.Equal(second.CreatedAt), ShouldBeTrue)
				So(active.DistanceMeters, ShouldEqual, second.DistanceMeters)
			})

			Convey("When a goal id is reused", func() {
				_, err := s.SaveGoal(ctx, model.Goal{ID: first.ID, UserID: "runner", RaceDate: day(30), DistanceMeters: 10000})

				Convey("Then the insert fails and the active goal is unchanged", func() {
					So(err, ShouldNotBeNil)
					active, err := s.ActiveGoal(ctx, "runner")
					So(err, ShouldBeNil)
					So(active.ID, ShouldEqual, second.ID)
					st, _ := s.Stats(ctx)
					So(st.Goals, ShouldEqual, 2)
				})
			})
		})
	})
}

func TestCalendar(t *testing.T) {
	Convey("Given a store with an entry on the 3rd", t, func() {
		s := newTestStore(t)
		ctx := context.Background()
		saved, err := s.UpsertCalendarEntry(ctx, entry(day(3).Add(15*time.Hour), "easy 5k"))
		So(err, ShouldBeNil)

		Convey("Then the date is truncated and an id assigned", func() {
			So(saved.ID, ShouldNotBeEmpty)
			So(saved.Date.Equal(day(3)), ShouldBeTrue)
		})

		Convey("When another entry lands on the same date without an id", func() {
			e := entry(day(3), "tempo")
			e.WorkoutType = model.WorkoutTempo
			e.PlannedDistanceMeters = model.Float(8000)
			replaced, err := s.UpsertCalendarEntry(ctx, e)
			So(err, ShouldBeNil)

			Convey("Then it replaces the old one and keeps its id", func() {
				So(replaced.ID, ShouldEqual, saved.ID)
				got, err := s.CalendarEntry(ctx, "runner", saved.ID)
				So(err, ShouldBeNil)
				So(got.Title, ShouldEqual, "tempo")
				So(*got.PlannedDistanceMeters, ShouldEqual, 8000)
			})
		})

		Convey("When the entry moves to the 5th", func() {
			moved := entry(day(5), "easy 5k")
			moved.ID = saved.ID
			_, err := s.UpsertCalendarEntry(ctx, moved)
			So(err, ShouldBeNil)

			Convey("Then the 3rd is empty", func() {
				week, err := s.CalendarWeek(ctx, "runner", "2024-01-01")
				So(err, ShouldBeNil)
				So(week, ShouldHaveLength, 1)
				So(week[0].Date.Equal(day(5)), ShouldBeTrue)
			})
		})

		Convey("When a week is read", func() {
			_, err := s.UpsertCalendarEntry(ctx, entry(day(8), "next week"))
			So(err, ShouldBeNil)
			_, err = s.UpsertCalendarEntry(ctx, entry(day(1), "monday"))
			So(err, ShouldBeNil)
			week, err := s.CalendarWeek(ctx, "runner", "2024-01-01")
			So(err, ShouldBeNil)

			Convey("Then only its seven days come back in date order", func() {
				So(week, ShouldHaveLength, 2)
				So(week[0].Title, ShouldEqual, "monday")
				So(week[1].Title, ShouldEqual, "easy 5k")
			})
		})

		Convey("When the week key is malformed", func() {
			_, err := s.CalendarWeek(ctx, "runner", "01/01/2024")
			So(err, ShouldWrap, repository.ErrInvalidDateKey)
		})

		Convey("When the status changes", func() {
			So(s.UpdateCalendarEntryStatus(ctx, "runner", saved.ID, model.StatusCompleted), ShouldBeNil)
			got, _ := s.CalendarEntry(ctx, "runner", saved.ID)
			So(got.Status, ShouldEqual, model.StatusCompleted)

			So(s.UpdateCalendarEntryStatus(ctx, "runner", saved.ID, model.StatusMissed), ShouldEqual, repository.ErrMissedStatus)
			So(s.UpdateCalendarEntryStatus(ctx, "runner", "nope", model.StatusPlanned), ShouldWrap, repository.ErrNotFound)
		})

		Convey("When the entry is deleted", func() {
			So(s.DeleteCalendarEntry(ctx, "runner", saved.ID), ShouldBeNil)
			So(s.DeleteCalendarEntry(ctx, "runner", saved.ID), ShouldWrap, repository.ErrNotFound)
			_, err := s.CalendarEntry(ctx, "runner", saved.ID)
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("When another user asks for it", func() {
			_, err := s.CalendarEntry(ctx, "someone-else", saved.ID)
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestCalendarIDsPerUser(t *testing.T) {
	Convey("Given two users upserting the same entry id", t, func() {
		s := newTestStore(t)
		ctx := context.Background()

		mine := entry(day(3), "mine")
		mine.ID = "shared"
		theirs := entry(day(4), "theirs")
		theirs.UserID = "other"
		theirs.ID = "shared"

		_, err := s.UpsertCalendarEntry(ctx, mine)
		So(err, ShouldBeNil)
		_, err = s.UpsertCalendarEntry(ctx, theirs)
		So(err, ShouldBeNil)

		Convey("Then each user keeps their own entry", func() {
			got, err := s.CalendarEntry(ctx, "runner", "shared")
			So(err, ShouldBeNil)
			So(got.Title, ShouldEqual, "mine")
			So(got.Date.Equal(day(3)), ShouldBeTrue)

			got, err = s.CalendarEntry(ctx, "other", "shared")
			So(err, ShouldBeNil)
			So(got.Title, ShouldEqual, "theirs")

			st, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.CalendarEntries, ShouldEqual, 2)
		})

		Convey("When one user deletes it", func() {
			So(s.DeleteCalendarEntry(ctx, "other", "shared"), ShouldBeNil)

			Convey("Then the other copy is untouched", func() {
				_, err := s.CalendarEntry(ctx, "runner", "shared")
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestOpenFile(t *testing.T) {
	Convey("Given a path in a missing directory", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "stride.db")
		ctx := context.Background()

		s, err := Open(ctx, path, WithLocation(time.UTC))
		So(err, ShouldBeNil)
		So(s.AddActivity(ctx, model.Activity{ID: "a1", UserID: "runner", StartTime: day(2), DistanceMeters: 1000}), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then data survives a reopen", func() {
			s, err := Open(ctx, path, WithLocation(time.UTC))
			So(err, ShouldBeNil)
			defer func() { _ = s.Close() }()
			acts, err := s.ListActivities(ctx, "runner")
			So(err, ShouldBeNil)
			So(acts, ShouldHaveLength, 1)
		})
	})
}
