// Package sqlite implements the repository gateway on an embedded SQLite
// database, for single-node deployments that still want durable storage.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
)

const driverName = "sqlite"

// Store is a SQLite-backed repository.Gateway.
type Store struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

var _ repository.Gateway = (*Store)(nil)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLocation sets the location dates are read back in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock sets the clock used to stamp goals.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens or creates the database at path and applies the schema. The
// parent directory is created when missing.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL lets readers proceed while a write is in flight.
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return newStore(ctx, db, opts...)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory(ctx context.Context, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newStore(ctx, db, opts...)
}

func newStore(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	// SQLite has one writer. A single connection also keeps an in-memory
	// database alive and shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	const query = `SELECT id, user_id, start_ns, distance_meters, average_pace_sec_per_km
        FROM activities WHERE user_id=? ORDER BY start_ns, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Activity{}
	for rows.Next() {
		var (
			a  model.Activity
			ns int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &ns, &a.DistanceMeters, &a.AveragePaceSecPerKm); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.StartTime = time.Unix(0, ns).In(s.loc)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AddActivity(ctx context.Context, a model.Activity) error {
	if a.UserID == "" {
		return repository.ErrMissingUser
	}
	const query = `INSERT INTO activities (user_id, id, start_ns, distance_meters, average_pace_sec_per_km)
        VALUES (?,?,?,?,?)
        ON CONFLICT (user_id, id) DO UPDATE SET
            start_ns = excluded.start_ns,
            distance_meters = excluded.distance_meters,
            average_pace_sec_per_km = excluded.average_pace_sec_per_km`

	if _, err := s.db.ExecContext(ctx, query, a.UserID, a.ID, a.StartTime.UnixNano(), a.DistanceMeters, nullable(a.AveragePaceSecPerKm)); err != nil {
		return fmt.Errorf("add activity: %w", err)
	}
	return nil
}

func (s *Store) ActiveGoal(ctx context.Context, userID string) (model.Goal, error) {
	const query = `SELECT id, user_id, race_date, distance_meters, target_time_seconds, created_ns, is_active
        FROM goals WHERE user_id=? AND is_active=1`

	var (
		g         model.Goal
		raceKey   string
		createdNs int64
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&g.ID, &g.UserID, &raceKey, &g.DistanceMeters, &g.TargetTimeSeconds, &createdNs, &g.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Goal{}, fmt.Errorf("active goal for %q: %w", userID, repository.ErrNotFound)
	}
	if err != nil {
		return model.Goal{}, fmt.Errorf("active goal: %w", err)
	}
	if g.RaceDate, err = window.ParseDateKey(raceKey, s.loc); err != nil {
		return model.Goal{}, fmt.Errorf("race date %q: %w", raceKey, err)
	}
	g.CreatedAt = time.Unix(0, createdNs).In(s.loc)
	return g, nil
}

func (s *Store) SaveGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	if g.UserID == "" {
		return model.Goal{}, repository.ErrMissingUser
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	g.IsActive = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Goal{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE goals SET is_active=0 WHERE user_id=? AND is_active=1`, g.UserID); err != nil {
		return model.Goal{}, fmt.Errorf("deactivate goals: %w", err)
	}
	// Goals are append-only history. A reused id fails the insert and rolls
	// back the deactivation above.
	const insert = `INSERT INTO goals (id, user_id, race_date, distance_meters, target_time_seconds, created_ns, is_active)
        VALUES (?,?,?,?,?,?,1)`
	_, err = tx.ExecContext(ctx, insert, g.ID, g.UserID, window.DateKey(g.RaceDate.In(s.loc)),
		g.DistanceMeters, nullableInt(g.TargetTimeSeconds), g.CreatedAt.UnixNano())
	if err != nil {
		return model.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Goal{}, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

const entryColumns = `id, user_id, entry_date, workout_type, title, description,
        planned_distance_meters, planned_duration_minutes, planned_pace_sec_per_km, status, source`

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEntry(row scanner) (model.CalendarEntry, error) {
	var (
		e   model.CalendarEntry
		key string
	)
	if err := row.Scan(&e.ID, &e.UserID, &key, &e.WorkoutType, &e.Title, &e.Description,
		&e.PlannedDistanceMeters, &e.PlannedDurationMinutes, &e.PlannedPaceSecPerKm, &e.Status, &e.Source); err != nil {
		return model.CalendarEntry{}, err
	}
	date, err := window.ParseDateKey(key, s.loc)
	if err != nil {
		return model.CalendarEntry{}, fmt.Errorf("entry date %q: %w", key, err)
	}
	e.Date = date
	return e, nil
}

func (s *Store) CalendarWeek(ctx context.Context, userID, startDateKey string) ([]model.CalendarEntry, error) {
	start, err := window.ParseDateKey(startDateKey, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidDateKey, startDateKey)
	}
	endKey := window.DateKey(window.AddDays(start, 7))

	// Date keys are zero padded, so text order is date order.
	query := `SELECT ` + entryColumns + `
        FROM calendar_entries
        WHERE user_id=? AND entry_date >= ? AND entry_date < ?
        ORDER BY entry_date`

	rows, err := s.db.QueryContext(ctx, query, userID, startDateKey, endKey)
	if err != nil {
		return nil, fmt.Errorf("calendar week: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.CalendarEntry{}
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CalendarEntry(ctx context.Context, userID, id string) (model.CalendarEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM calendar_entries WHERE user_id=? AND id=?`
	e, err := s.scanEntry(s.db.QueryRowContext(ctx, query, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.CalendarEntry{}, fmt.Errorf("calendar entry %q: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return model.CalendarEntry{}, fmt.Errorf("calendar entry: %w", err)
	}
	return e, nil
}

func (s *Store) UpsertCalendarEntry(ctx context.Context, e model.CalendarEntry) (model.CalendarEntry, error) {
	if e.UserID == "" {
		return model.CalendarEntry{}, repository.ErrMissingUser
	}
	e.Date = window.Midnight(e.Date.In(s.loc))
	key := window.DateKey(e.Date)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.CalendarEntry{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if e.ID == "" {
		err := tx.QueryRowContext(ctx, `SELECT id FROM calendar_entries WHERE user_id=? AND entry_date=?`, e.UserID, key).Scan(&e.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return model.CalendarEntry{}, fmt.Errorf("lookup entry: %w", err)
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	// An id that moves to another date leaves its old date empty.
	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_entries WHERE user_id=? AND id=? AND entry_date <> ?`, e.UserID, e.ID, key); err != nil {
		return model.CalendarEntry{}, fmt.Errorf("move entry: %w", err)
	}

	const upsert = `INSERT INTO calendar_entries (id, user_id, entry_date, workout_type, title, description,
            planned_distance_meters, planned_duration_minutes, planned_pace_sec_per_km, status, source)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT (user_id, entry_date) DO UPDATE SET
            id = excluded.id,
            workout_type = excluded.workout_type,
            title = excluded.title,
            description = excluded.description,
            planned_distance_meters = excluded.planned_distance_meters,
            planned_duration_minutes = excluded.planned_duration_minutes,
            planned_pace_sec_per_km = excluded.planned_pace_sec_per_km,
            status = excluded.status,
            source = excluded.source`
	_, err = tx.ExecContext(ctx, upsert, e.ID, e.UserID, key, string(e.WorkoutType), e.Title, e.Description,
		nullable(e.PlannedDistanceMeters), nullable(e.PlannedDurationMinutes), nullable(e.PlannedPaceSecPerKm), string(e.Status), string(e.Source))
	if err != nil {
		return model.CalendarEntry{}, fmt.Errorf("upsert entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.CalendarEntry{}, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

func (s *Store) DeleteCalendarEntry(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_entries WHERE user_id=? AND id=?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return affectedOne(res, id)
}

func (s *Store) UpdateCalendarEntryStatus(ctx context.Context, userID, id string, status model.EntryStatus) error {
	if status == model.StatusMissed {
		return repository.ErrMissedStatus
	}
	res, err := s.db.ExecContext(ctx, `UPDATE calendar_entries SET status=? WHERE user_id=? AND id=?`, string(status), userID, id)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	return affectedOne(res, id)
}

// nullable binds an optional number as NULL or its value.
func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func affectedOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("calendar entry %q: %w", id, repository.ErrNotFound)
	}
	return nil
}

// Stats reports row counts.
func (s *Store) Stats(ctx context.Context) (repository.Stats, error) {
	const query = `SELECT
        (SELECT count(*) FROM (
            SELECT user_id FROM activities UNION SELECT user_id FROM goals UNION SELECT user_id FROM calendar_entries
        )),
        (SELECT count(*) FROM activities),
        (SELECT count(*) FROM goals),
        (SELECT count(*) FROM calendar_entries)`

	var st repository.Stats
	if err := s.db.QueryRowContext(ctx, query).Scan(&st.Users, &st.Activities, &st.Goals, &st.CalendarEntries); err != nil {
		return repository.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
