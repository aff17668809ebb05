package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
)

// userData holds everything stored for one user.
type userData struct {
	activities map[string]model.Activity
	goals      []model.Goal
	// entries is keyed by date key, which makes the date unique per user.
	entries map[string]model.CalendarEntry
}

// MemoryStore is a Gateway kept entirely in memory. It is safe for
// concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userData

	loc   *time.Location
	newID func() string
	now   func() time.Time
}

var _ Gateway = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		users: make(map[string]*userData),
		loc:   time.Local,
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// user returns the user's data, creating it when create is set.
// Callers must hold the appropriate lock.
func (s *MemoryStore) user(userID string, create bool) *userData {
	u, ok := s.users[userID]
	if !ok && create {
		u = &userData{
			activities: make(map[string]model.Activity),
			entries:    make(map[string]model.CalendarEntry),
		}
		s.users[userID] = u
	}
	return u
}

func (s *MemoryStore) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.user(userID, false)
	if u == nil {
		return []model.Activity{}, nil
	}
	out := make([]model.Activity, 0, len(u.activities))
	for _, a := range u.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *MemoryStore) AddActivity(ctx context.Context, a model.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.UserID == "" {
		return ErrMissingUser
	}
	a.StartTime = a.StartTime.In(s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(a.UserID, true).activities[a.ID] = a
	return nil
}

func (s *MemoryStore) ActiveGoal(ctx context.Context, userID string) (model.Goal, error) {
	if err := ctx.Err(); err != nil {
		return model.Goal{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u := s.user(userID, false); u != nil {
		for i := len(u.goals) - 1; i >= 0; i-- {
			if u.goals[i].IsActive {
				return u.goals[i], nil
			}
		}
	}
	return model.Goal{}, fmt.Errorf("active goal for %q: %w", userID, ErrNotFound)
}

func (s *MemoryStore) SaveGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	if err := ctx.Err(); err != nil {
		return model.Goal{}, err
	}
	if g.UserID == "" {
		return model.Goal{}, ErrMissingUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(g.UserID, true)
	for i := range u.goals {
		u.goals[i].IsActive = false
	}
	if g.ID == "" {
		g.ID = s.newID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	g.IsActive = true
	u.goals = append(u.goals, g)
	return g, nil
}

func (s *MemoryStore) CalendarWeek(ctx context.Context, userID, startDateKey string) ([]model.CalendarEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, err := window.ParseDateKey(startDateKey, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDateKey, startDateKey)
	}
	from, to := window.DateKey(start), window.DateKey(window.AddDays(start, window.DaysPerWeek))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.CalendarEntry{}
	u := s.user(userID, false)
	if u == nil {
		return out, nil
	}
	for key, e := range u.entries {
		if key >= from && key < to {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) CalendarEntry(ctx context.Context, userID, id string) (model.CalendarEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.CalendarEntry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, e, ok := s.findEntry(userID, id); ok {
		return e, nil
	}
	return model.CalendarEntry{}, fmt.Errorf("calendar entry %q: %w", id, ErrNotFound)
}

func (s *MemoryStore) UpsertCalendarEntry(ctx context.Context, e model.CalendarEntry) (model.CalendarEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.CalendarEntry{}, err
	}
	if e.UserID == "" {
		return model.CalendarEntry{}, ErrMissingUser
	}
	e.Date = window.Midnight(e.Date.In(s.loc))
	key := window.DateKey(e.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(e.UserID, true)
	if prev, ok := u.entries[key]; ok && e.ID == "" {
		e.ID = prev.ID
	}
	if e.ID == "" {
		e.ID = s.newID()
	}
	// An id that moves to another date leaves its old date empty.
	if oldKey, _, ok := s.findEntry(e.UserID, e.ID); ok && oldKey != key {
		delete(u.entries, oldKey)
	}
	u.entries[key] = e
	return e, nil
}

func (s *MemoryStore) DeleteCalendarEntry(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key, _, ok := s.findEntry(userID, id)
	if !ok {
		return fmt.Errorf("calendar entry %q: %w", id, ErrNotFound)
	}
	delete(s.users[userID].entries, key)
	return nil
}

func (s *MemoryStore) UpdateCalendarEntryStatus(ctx context.Context, userID, id string, status model.EntryStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if status == model.StatusMissed {
		return ErrMissedStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key, e, ok := s.findEntry(userID, id)
	if !ok {
		return fmt.Errorf("calendar entry %q: %w", id, ErrNotFound)
	}
	e.Status = status
	s.users[userID].entries[key] = e
	return nil
}

// Stats reports how much the store holds.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Users: len(s.users)}
	for _, u := range s.users {
		st.Activities += len(u.activities)
		st.Goals += len(u.goals)
		st.CalendarEntries += len(u.entries)
	}
	return st, nil
}

// findEntry looks an entry up by id. Callers must hold the lock.
func (s *MemoryStore) findEntry(userID, id string) (string, model.CalendarEntry, bool) {
	u := s.user(userID, false)
	if u == nil || id == "" {
		return "", model.CalendarEntry{}, false
	}
	for key, e := range u.entries {
		if e.ID == id {
			return key, e, true
		}
	}
	return "", model.CalendarEntry{}, false
}
