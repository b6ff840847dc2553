package store

// Schema contains the complete DDL for the domresolve tables.
const Schema = `
-- Failure contexts: full attempt history captured on reject (and optionally warn)
CREATE TABLE IF NOT EXISTS failure_contexts (
    id           TEXT PRIMARY KEY,
    intent       TEXT NOT NULL,
    scope        TEXT NOT NULL,
    generation   INTEGER NOT NULL,
    decision     TEXT NOT NULL,
    attempts     TEXT NOT NULL,
    scope_html   TEXT NOT NULL DEFAULT '',
    scope_md     TEXT NOT NULL DEFAULT '',
    captured_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failures_intent ON failure_contexts(intent);
CREATE INDEX IF NOT EXISTS idx_failures_time ON failure_contexts(captured_at DESC);

-- Drift samples: longitudinal success journal per (intent, strategy) pair
CREATE TABLE IF NOT EXISTS drift_samples (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    intent      TEXT NOT NULL,
    strategy    TEXT NOT NULL,
    success     INTEGER NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_pair ON drift_samples(intent, strategy, id DESC);

-- Adaptation and resolution telemetry events
CREATE TABLE IF NOT EXISTS events (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    intent      TEXT NOT NULL,
    strategy    TEXT NOT NULL DEFAULT '',
    decision    TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(created_at DESC);
`
