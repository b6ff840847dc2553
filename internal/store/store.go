// Package store provides the SQLite persistence layer for domresolve:
// failure contexts, the drift-sample journal, and telemetry events.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/domresolve/dbopen"
	"github.com/hazyhaar/domresolve/idgen"
	"github.com/hazyhaar/domresolve/selector"
)

// Store is the domresolve database handle.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// Open opens (or creates) the SQLite database at path, applies pragmas and
// the domresolve schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, newID: idgen.Default}, nil
}

// NewWithDB wraps an existing database handle (testing).
func NewWithDB(db *sql.DB) *Store {
	return &Store{DB: db, newID: idgen.Default}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// --- Failure contexts ---

// InsertFailure persists a failure context. scopeMD is an optional markdown
// rendition of the scope HTML for human review.
func (s *Store) InsertFailure(ctx context.Context, fc *selector.FailureContext, scopeMD string) error {
	attempts, err := json.Marshal(fc.Attempts)
	if err != nil {
		return fmt.Errorf("store: marshal attempts: %w", err)
	}
	if fc.ID == "" {
		fc.ID = idgen.Prefixed("fc_", s.newID)()
	}
	if fc.CapturedAt.IsZero() {
		fc.CapturedAt = time.Now()
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO failure_contexts (id, intent, scope, generation, decision, attempts, scope_html, scope_md, captured_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		fc.ID, fc.Intent, fc.Scope, fc.Generation, string(fc.Decision),
		string(attempts), fc.ScopeHTML, scopeMD, fc.CapturedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert failure: %w", err)
	}
	return nil
}

// ListFailures returns the most recent failure contexts, newest first.
func (s *Store) ListFailures(ctx context.Context, intent string, limit int) ([]*selector.FailureContext, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, intent, scope, generation, decision, attempts, scope_html, captured_at
	          FROM failure_contexts`
	var args []any
	if intent != "" {
		query += ` WHERE intent = ?`
		args = append(args, intent)
	}
	query += ` ORDER BY captured_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*selector.FailureContext
	for rows.Next() {
		fc := &selector.FailureContext{}
		var attempts string
		var capturedAt int64
		var decision string
		if err := rows.Scan(&fc.ID, &fc.Intent, &fc.Scope, &fc.Generation,
			&decision, &attempts, &fc.ScopeHTML, &capturedAt); err != nil {
			return nil, err
		}
		fc.Decision = selector.Decision(decision)
		fc.CapturedAt = time.UnixMilli(capturedAt)
		if err := json.Unmarshal([]byte(attempts), &fc.Attempts); err != nil {
			return nil, fmt.Errorf("store: unmarshal attempts: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// CountFailures returns the number of stored failure contexts.
func (s *Store) CountFailures(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM failure_contexts`).Scan(&n)
	return n, err
}

// --- Drift samples ---

// AppendSample journals one drift sample.
func (s *Store) AppendSample(ctx context.Context, sample selector.DriftSample) error {
	at := sample.At
	if at.IsZero() {
		at = time.Now()
	}
	success := 0
	if sample.Success {
		success = 1
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO drift_samples (intent, strategy, success, created_at)
		VALUES (?,?,?,?)`,
		sample.Intent, sample.Strategy, success, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: append sample: %w", err)
	}
	return nil
}

// RecentSamples returns up to perPair of the newest samples for every
// (intent, strategy) pair, ordered oldest first so they can be replayed into
// detector windows.
func (s *Store) RecentSamples(ctx context.Context, perPair int) ([]selector.DriftSample, error) {
	if perPair <= 0 {
		perPair = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT intent, strategy, success, created_at FROM (
			SELECT intent, strategy, success, created_at,
			       ROW_NUMBER() OVER (PARTITION BY intent, strategy ORDER BY id DESC) AS rn
			FROM drift_samples
		) WHERE rn <= ? ORDER BY created_at ASC`, perPair)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []selector.DriftSample
	for rows.Next() {
		var sm selector.DriftSample
		var success int
		var at int64
		if err := rows.Scan(&sm.Intent, &sm.Strategy, &success, &at); err != nil {
			return nil, err
		}
		sm.Success = success != 0
		sm.At = time.UnixMilli(at)
		out = append(out, sm)
	}
	return out, rows.Err()
}

// PruneSamples deletes samples older than the cutoff. Returns rows removed.
func (s *Store) PruneSamples(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM drift_samples WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Events ---

// InsertEvent persists a telemetry event.
func (s *Store) InsertEvent(ctx context.Context, ev selector.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO events (id, type, intent, strategy, decision, detail, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		idgen.Prefixed("evt_", s.newID)(), string(ev.Type), ev.Intent, ev.Strategy,
		string(ev.Decision), ev.Detail, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first, optionally
// filtered by type.
func (s *Store) ListEvents(ctx context.Context, eventType string, limit int) ([]selector.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT type, intent, strategy, decision, detail, created_at FROM events`
	var args []any
	if eventType != "" {
		query += ` WHERE type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []selector.Event
	for rows.Next() {
		var ev selector.Event
		var typ, decision string
		var at int64
		if err := rows.Scan(&typ, &ev.Intent, &ev.Strategy, &decision, &ev.Detail, &at); err != nil {
			return nil, err
		}
		ev.Type = selector.EventType(typ)
		ev.Decision = selector.Decision(decision)
		ev.At = time.UnixMilli(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}
