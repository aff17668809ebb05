// Package postgres implements the repository gateway on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/okian/stride/internal/adapters/repository"
	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
)

const dateKeySQL = "YYYY-MM-DD"

// Store is a Postgres-backed repository.Gateway.
type Store struct {
	pool *pgxpool.Pool
	loc  *time.Location
	now  func() time.Time
}

var _ repository.Gateway = (*Store)(nil)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLocation sets the location calendar and race dates are read back in.
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

// NewStore constructs a Store on an existing pool.
func NewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to databaseURL, verifies the connection and applies the schema.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewStore(pool, opts...)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Collector exports pool statistics to Prometheus.
func (s *Store) Collector(labels map[string]string) prometheus.Collector {
	return pgxpoolprometheus.NewCollector(s.pool, labels)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	const query = `SELECT id, user_id, start_time, distance_meters, average_pace_sec_per_km
        FROM activities WHERE user_id=$1 ORDER BY start_time, id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.StartTime, &a.DistanceMeters, &a.AveragePaceSecPerKm); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.StartTime = a.StartTime.In(s.loc)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AddActivity(ctx context.Context, a model.Activity) error {
	if a.UserID == "" {
		return repository.ErrMissingUser
	}
	const query = `INSERT INTO activities (user_id, id, start_time, distance_meters, average_pace_sec_per_km)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id, id) DO UPDATE SET
            start_time = EXCLUDED.start_time,
            distance_meters = EXCLUDED.distance_meters,
            average_pace_sec_per_km = EXCLUDED.average_pace_sec_per_km`

	if _, err := s.pool.Exec(ctx, query, a.UserID, a.ID, a.StartTime, a.DistanceMeters, a.AveragePaceSecPerKm); err != nil {
		return fmt.Errorf("add activity: %w", err)
	}
	return nil
}

func (s *Store) ActiveGoal(ctx context.Context, userID string) (model.Goal, error) {
	const query = `SELECT id, user_id, to_char(race_date, '` + dateKeySQL + `'), distance_meters, target_time_seconds, created_at, is_active
        FROM goals WHERE user_id=$1 AND is_active`

	var (
		g       model.Goal
		raceKey string
	)
	err := s.pool.QueryRow(ctx, query, userID).Scan(&g.ID, &g.UserID, &raceKey, &g.DistanceMeters, &g.TargetTimeSeconds, &g.CreatedAt, &g.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Goal{}, fmt.Errorf("active goal for %q: %w", userID, repository.ErrNotFound)
	}
	if err != nil {
		return model.Goal{}, fmt.Errorf("active goal: %w", err)
	}
	if g.RaceDate, err = window.ParseDateKey(raceKey, s.loc); err != nil {
		return model.Goal{}, fmt.Errorf("race date %q: %w", raceKey, err)
	}
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

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Goal{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE goals SET is_active=FALSE WHERE user_id=$1 AND is_active`, g.UserID); err != nil {
		return model.Goal{}, fmt.Errorf("deactivate goals: %w", err)
	}
	// Goals are append-only history. A reused id fails the insert and rolls
	// back the deactivation above.
	const insert = `INSERT INTO goals (id, user_id, race_date, distance_meters, target_time_seconds, created_at, is_active)
        VALUES ($1,$2,$3::date,$4,$5,$6,TRUE)`
	if _, err := tx.Exec(ctx, insert, g.ID, g.UserID, window.DateKey(g.RaceDate.In(s.loc)), g.DistanceMeters, g.TargetTimeSeconds, g.CreatedAt); err != nil {
		return model.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Goal{}, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

const entryColumns = `id, user_id, to_char(entry_date, '` + dateKeySQL + `'), workout_type, title, description,
        planned_distance_meters, planned_duration_minutes, planned_pace_sec_per_km, status, source`

func (s *Store) scanEntry(row pgx.Row) (model.CalendarEntry, error) {
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
	if _, err := window.ParseDateKey(startDateKey, s.loc); err != nil {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidDateKey, startDateKey)
	}
	query := `SELECT ` + entryColumns + `
        FROM calendar_entries
        WHERE user_id=$1 AND entry_date >= $2::date AND entry_date < $2::date + 7
        ORDER BY entry_date`

	rows, err := s.pool.Query(ctx, query, userID, startDateKey)
	if err != nil {
		return nil, fmt.Errorf("calendar week: %w", err)
	}
	defer rows.Close()

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
	query := `SELECT ` + entryColumns + ` FROM calendar_entries WHERE user_id=$1 AND id=$2`
	e, err := s.scanEntry(s.pool.QueryRow(ctx, query, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
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

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.CalendarEntry{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if e.ID == "" {
		err := tx.QueryRow(ctx, `SELECT id FROM calendar_entries WHERE user_id=$1 AND entry_date=$2::date`, e.UserID, key).Scan(&e.ID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return model.CalendarEntry{}, fmt.Errorf("lookup entry: %w", err)
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	// An id that moves to another date leaves its old date empty.
	if _, err := tx.Exec(ctx, `DELETE FROM calendar_entries WHERE user_id=$1 AND id=$2 AND entry_date <> $3::date`, e.UserID, e.ID, key); err != nil {
		return model.CalendarEntry{}, fmt.Errorf("move entry: %w", err)
	}

	const upsert = `INSERT INTO calendar_entries (id, user_id, entry_date, workout_type, title, description,
            planned_distance_meters, planned_duration_minutes, planned_pace_sec_per_km, status, source)
        VALUES ($1,$2,$3::date,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (user_id, entry_date) DO UPDATE SET
            id = EXCLUDED.id,
            workout_type = EXCLUDED.workout_type,
            title = EXCLUDED.title,
            description = EXCLUDED.description,
            planned_distance_meters = EXCLUDED.planned_distance_meters,
            planned_duration_minutes = EXCLUDED.planned_duration_minutes,
            planned_pace_sec_per_km = EXCLUDED.planned_pace_sec_per_km,
            status = EXCLUDED.status,
            source = EXCLUDED.source`
	_, err = tx.Exec(ctx, upsert, e.ID, e.UserID, key, e.WorkoutType, e.Title, e.Description,
		e.PlannedDistanceMeters, e.PlannedDurationMinutes, e.PlannedPaceSecPerKm, e.Status, e.Source)
	if err != nil {
		return model.CalendarEntry{}, fmt.Errorf("upsert entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.CalendarEntry{}, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

func (s *Store) DeleteCalendarEntry(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM calendar_entries WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("calendar entry %q: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateCalendarEntryStatus(ctx context.Context, userID, id string, status model.EntryStatus) error {
	if status == model.StatusMissed {
		return repository.ErrMissedStatus
	}
	tag, err := s.pool.Exec(ctx, `UPDATE calendar_entries SET status=$3 WHERE user_id=$1 AND id=$2`, userID, id, status)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("calendar entry %q: %w", id, repository.ErrNotFound)
	}
	return nil
}

// Stats reports row counts.
func (s *Store) Stats(ctx context.Context) (repository.Stats, error) {
	const query = `SELECT
        (SELECT count(*) FROM (
            SELECT user_id FROM activities UNION SELECT user_id FROM goals UNION SELECT user_id FROM calendar_entries
        ) u),
        (SELECT count(*) FROM activities),
        (SELECT count(*) FROM goals),
        (SELECT count(*) FROM calendar_entries)`

	var st repository.Stats
	if err := s.pool.QueryRow(ctx, query).Scan(&st.Users, &st.Activities, &st.Goals, &st.CalendarEntries); err != nil {
		return repository.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
