package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/stride/internal/domain/calendar"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
)

func newTestStore() *MemoryStore {
	n := 0
	return NewMemoryStore(
		WithLocation(time.UTC),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)
}

func testEntry(date time.Time, title string) model.CalendarEntry {
	return model.CalendarEntry{
		UserID:      "runner",
		Date:        date,
		WorkoutType: model.WorkoutEasy,
		Title:       title,
		Status:      model.StatusPlanned,
		Source:      model.SourceManual,
	}
}

func TestMemoryStore_Activities(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	acts, err := store.ListActivities(ctx, "runner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(acts) != 0 {
		t.Errorf("expected no activities, got %d", len(acts))
	}

	base := time.Date(2024, 1, 10, 7, 0, 0, 0, time.UTC)
	for i, id := range []string{"late", "early", "mid"} {
		a := model.Activity{ID: id, UserID: "runner", StartTime: base.Add(time.Duration(2-i) * time.Hour), DistanceMeters: 5000}
		if err := store.AddActivity(ctx, a); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	// Same id replaces.
	if err := store.AddActivity(ctx, model.Activity{ID: "mid", UserID: "runner", StartTime: base.Add(time.Hour), DistanceMeters: 8000}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	acts, _ = store.ListActivities(ctx, "runner")
	if len(acts) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(acts))
	}
	want := []string{"early", "mid", "late"}
	for i, a := range acts {
		if a.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], a.ID)
		}
	}
	if acts[1].DistanceMeters != 8000 {
		t.Errorf("expected replaced distance 8000, got %f", acts[1].DistanceMeters)
	}

	other, _ := store.ListActivities(ctx, "someone-else")
	if len(other) != 0 {
		t.Errorf("activities leaked across users: %d", len(other))
	}

	if err := store.AddActivity(ctx, model.Activity{ID: "x"}); !errors.Is(err, ErrMissingUser) {
		t.Errorf("expected ErrMissingUser, got %v", err)
	}
}

func TestMemoryStore_ActivityStartInStoreLocation(t *testing.T) {
	ctx := context.Background()
	est := time.FixedZone("EST", -5*60*60)
	store := NewMemoryStore(WithLocation(est))

	// 00:30 UTC on the 10th is still the evening of the 9th in EST.
	start := time.Date(2024, 1, 10, 2, 30, 0, 0, time.FixedZone("EET", 2*60*60))
	if err := store.AddActivity(ctx, model.Activity{ID: "a1", UserID: "runner", StartTime: start, DistanceMeters: 5000}); err != nil {
		t.Fatalf("add: %v", err)
	}

	acts, err := store.ListActivities(ctx, "runner")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(acts))
	}
	got := acts[0].StartTime
	if !got.Equal(start) {
		t.Errorf("instant changed: %v vs %v", got, start)
	}
	if got.Location() != est {
		t.Errorf("expected store location, got %v", got.Location())
	}
	if key := window.DateKey(got); key != "2024-01-09" {
		t.Errorf("expected date key 2024-01-09, got %s", key)
	}
}

func TestMemoryStore_Goals(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	if _, err := store.ActiveGoal(ctx, "runner"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first, err := store.SaveGoal(ctx, model.Goal{UserID: "runner", RaceDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), DistanceMeters: 42195})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.ID == "" || !first.IsActive || first.CreatedAt.IsZero() {
		t.Errorf("expected stamped active goal, got %+v", first)
	}

	second, _ := store.SaveGoal(ctx, model.Goal{UserID: "runner", RaceDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), DistanceMeters: 21097.5})
	active, err := store.ActiveGoal(ctx, "runner")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("expected latest goal %s to be active, got %s", second.ID, active.ID)
	}

	stats, _ := store.Stats(ctx)
	if stats.Goals != 2 {
		t.Errorf("expected 2 stored goals, got %d", stats.Goals)
	}
}

func TestMemoryStore_CalendarUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	day := time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC)

	saved, err := store.UpsertCalendarEntry(ctx, testEntry(day, "Easy 5"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}
	if !saved.Date.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected date normalized to midnight, got %v", saved.Date)
	}

	// Upserting the same date again replaces and keeps the id.
	for i := 0; i < 3; i++ {
		again, err := store.UpsertCalendarEntry(ctx, testEntry(day, fmt.Sprintf("Easy %d", i)))
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
		if again.ID != saved.ID {
			t.Errorf("expected id %s to be kept, got %s", saved.ID, again.ID)
		}
	}

	week, err := store.CalendarWeek(ctx, "runner", "2024-01-01")
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	if len(week) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(week))
	}
	if week[0].Title != "Easy 2" {
		t.Errorf("expected last write to win, got %q", week[0].Title)
	}

	// Moving an id to a new date clears the old one.
	moved := testEntry(day.AddDate(0, 0, 1), "Moved")
	moved.ID = saved.ID
	if _, err := store.UpsertCalendarEntry(ctx, moved); err != nil {
		t.Fatalf("move: %v", err)
	}
	week, _ = store.CalendarWeek(ctx, "runner", "2024-01-01")
	if len(week) != 1 || week[0].Title != "Moved" {
		t.Errorf("expected only the moved entry, got %+v", week)
	}
}

func TestMemoryStore_CalendarWeekBounds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := -1; i <= 7; i++ {
		if _, err := store.UpsertCalendarEntry(ctx, testEntry(start.AddDate(0, 0, i), fmt.Sprintf("d%d", i))); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	week, err := store.CalendarWeek(ctx, "runner", "2024-01-01")
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	if len(week) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(week))
	}
	if week[0].Title != "d0" || week[6].Title != "d6" {
		t.Errorf("unexpected bounds: first %s last %s", week[0].Title, week[6].Title)
	}

	if _, err := store.CalendarWeek(ctx, "runner", "01/01/2024"); !errors.Is(err, ErrInvalidDateKey) {
		t.Errorf("expected ErrInvalidDateKey, got %v", err)
	}
}

func TestMemoryStore_CalendarDeleteAndStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	saved, _ := store.UpsertCalendarEntry(ctx, testEntry(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "Tempo"))

	if err := store.UpdateCalendarEntryStatus(ctx, "runner", saved.ID, model.StatusCompleted); err != nil {
		t.Fatalf("status: %v", err)
	}
	got, err := store.CalendarEntry(ctx, "runner", saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}

	if err := store.UpdateCalendarEntryStatus(ctx, "runner", saved.ID, model.StatusMissed); !errors.Is(err, ErrMissedStatus) {
		t.Errorf("expected ErrMissedStatus, got %v", err)
	}
	if err := store.UpdateCalendarEntryStatus(ctx, "other", saved.ID, model.StatusPlanned); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}
	if err := store.DeleteCalendarEntry(ctx, "other", saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}

	if err := store.DeleteCalendarEntry(ctx, "runner", saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteCalendarEntry(ctx, "runner", saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := store.CalendarEntry(ctx, "runner", saved.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_CalendarRoundTripThroughGrid(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	saved, _ := store.UpsertCalendarEntry(ctx, testEntry(monday.AddDate(0, 0, 2), "Easy"))
	entries, _ := store.CalendarWeek(ctx, "runner", "2024-01-01")
	g := calendar.BuildGrid(monday, 7, entries)

	cell, ok := g.Cell("2024-01-03")
	if !ok || cell.Entry == nil || cell.Entry.ID != saved.ID {
		t.Fatalf("expected entry %s in grid cell, got %+v", saved.ID, cell.Entry)
	}

	if err := store.DeleteCalendarEntry(ctx, "runner", saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, _ = store.CalendarWeek(ctx, "runner", "2024-01-01")
	g = calendar.BuildGrid(monday, 7, entries)
	for _, c := range g.Cells {
		if c.Entry != nil {
			t.Errorf("expected empty grid after delete, found %s on %s", c.Entry.ID, c.DateKey)
		}
	}
}

func TestMemoryStore_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithLocation(time.UTC))
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.UpsertCalendarEntry(ctx, testEntry(day, fmt.Sprintf("w%d", i))); err != nil {
				t.Errorf("upsert: %v", err)
			}
		}(i)
	}
	wg.Wait()

	week, _ := store.CalendarWeek(ctx, "runner", "2024-01-01")
	if len(week) != 1 {
		t.Errorf("expected one entry per date, got %d", len(week))
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newTestStore()

	if _, err := store.ListActivities(ctx, "runner"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := store.UpsertCalendarEntry(ctx, testEntry(time.Now(), "x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
