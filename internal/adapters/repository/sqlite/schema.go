package sqlite

// schema mirrors the Postgres layout. Dates are stored as date keys, which
// sort lexically in date order, and instants as Unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS activities (
    user_id                 TEXT NOT NULL,
    id                      TEXT NOT NULL,
    start_ns                INTEGER NOT NULL,
    distance_meters         REAL NOT NULL CHECK (distance_meters >= 0),
    average_pace_sec_per_km REAL CHECK (average_pace_sec_per_km > 0),
    PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS activities_user_start_idx ON activities (user_id, start_ns);

CREATE TABLE IF NOT EXISTS goals (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL,
    race_date           TEXT NOT NULL,
    distance_meters     REAL NOT NULL CHECK (distance_meters > 0),
    target_time_seconds INTEGER CHECK (target_time_seconds > 0),
    created_ns          INTEGER NOT NULL,
    is_active           INTEGER NOT NULL DEFAULT 1
);

CREATE UNIQUE INDEX IF NOT EXISTS goals_one_active_idx ON goals (user_id) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS calendar_entries (
    id                       TEXT NOT NULL,
    user_id                  TEXT NOT NULL,
    entry_date               TEXT NOT NULL,
    workout_type             TEXT NOT NULL,
    title                    TEXT NOT NULL,
    description              TEXT NOT NULL DEFAULT '',
    planned_distance_meters  REAL,
    planned_duration_minutes REAL,
    planned_pace_sec_per_km  REAL,
    status                   TEXT NOT NULL,
    source                   TEXT NOT NULL,
    PRIMARY KEY (user_id, id),
    UNIQUE (user_id, entry_date)
);
`
