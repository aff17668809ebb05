package postgres

// schema creates the tables used by Store. Calendar dates are unique per
// user so that an upsert on (user_id, entry_date) replaces the day's entry.
const schema = `
CREATE TABLE IF NOT EXISTS activities (
    user_id                 TEXT NOT NULL,
    id                      TEXT NOT NULL,
    start_time              TIMESTAMPTZ NOT NULL,
    distance_meters         DOUBLE PRECISION NOT NULL CHECK (distance_meters >= 0),
    average_pace_sec_per_km DOUBLE PRECISION CHECK (average_pace_sec_per_km > 0),
    PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS activities_user_start_idx ON activities (user_id, start_time);

CREATE TABLE IF NOT EXISTS goals (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL,
    race_date           DATE NOT NULL,
    distance_meters     DOUBLE PRECISION NOT NULL CHECK (distance_meters > 0),
    target_time_seconds INTEGER CHECK (target_time_seconds > 0),
    created_at          TIMESTAMPTZ NOT NULL,
    is_active           BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE UNIQUE INDEX IF NOT EXISTS goals_one_active_idx ON goals (user_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS calendar_entries (
    id                       TEXT NOT NULL,
    user_id                  TEXT NOT NULL,
    entry_date               DATE NOT NULL,
    workout_type             TEXT NOT NULL,
    title                    TEXT NOT NULL,
    description              TEXT NOT NULL DEFAULT '',
    planned_distance_meters  DOUBLE PRECISION,
    planned_duration_minutes DOUBLE PRECISION,
    planned_pace_sec_per_km  DOUBLE PRECISION,
    status                   TEXT NOT NULL,
    source                   TEXT NOT NULL,
    PRIMARY KEY (user_id, id),
    UNIQUE (user_id, entry_date)
);
`
