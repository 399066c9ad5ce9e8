// Package state records pipeline run history in a local DuckDB file.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/quayside-data/lakehouse/internal/logging"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("state: run not found")

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Gateway    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     string
	Error      string
	Models     int
}

// Duration returns how long a finished run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ModelRun is the outcome of applying one model within a run.
type ModelRun struct {
	RunID     string
	Model     string
	Kind      string
	StartedAt time.Time
	Duration  time.Duration
	Error     string
}

// Succeeded reports whether the model applied without error.
func (m ModelRun) Succeeded() bool {
	return m.Error == ""
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      VARCHAR PRIMARY KEY,
	gateway     VARCHAR NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status      VARCHAR NOT NULL,
	error       VARCHAR,
	models      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS model_runs (
	run_id      VARCHAR NOT NULL,
	model       VARCHAR NOT NULL,
	kind        VARCHAR NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	duration_ms BIGINT NOT NULL,
	error       VARCHAR
);
`

// Store persists runs. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *logging.Logger

	mu sync.Mutex
}

// Open opens or creates the state database at path. Empty or ":memory:"
// keeps state in memory.
func Open(ctx context.Context, path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Global()
	}
	dsn := path
	if dsn == ":memory:" {
		dsn = ""
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open %q: %w", path, err)
	}
	// One writer keeps an in-memory database shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: create tables: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With(map[string]any{"component": "state", "path": path}),
	}, nil
}

// BeginRun inserts a running row for runID.
func (s *Store) BeginRun(ctx context.Context, runID, gateway string, started time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, gateway, started_at, status) VALUES (?, ?, ?, ?)`,
		runID, gateway, started.UTC(), StatusRunning)
	if err != nil {
		return fmt.Errorf("state: begin run %s: %w", runID, err)
	}
	s.logger.Debugf("run started", map[string]any{"runId": runID})
	return nil
}

// RecordModel appends one model outcome.
func (s *Store) RecordModel(ctx context.Context, m ModelRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_runs (run_id, model, kind, started_at, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Model, m.Kind, m.StartedAt.UTC(), m.Duration.Milliseconds(), nullString(m.Error))
	if err != nil {
		return fmt.Errorf("state: record model %s: %w", m.Model, err)
	}
	return nil
}

// FinishRun marks runID finished. A non-nil runErr marks it failed.
func (s *Store) FinishRun(ctx context.Context, runID string, finished time.Time, models int, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, msg := StatusSuccess, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ?, models = ? WHERE run_id = ?`,
		finished.UTC(), status, nullString(msg), models, runID)
	if err != nil {
		return fmt.Errorf("state: finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	s.logger.Debugf("run finished", map[string]any{"runId": runID, "status": status})
	return nil
}

// LastRuns returns up to n runs, newest first.
func (s *Store) LastRuns(ctx context.Context, n int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, gateway, started_at, finished_at, status, error, models
		FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("state: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
			errMsg   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Gateway, &r.StartedAt, &finished, &r.Status, &errMsg, &r.Models); err != nil {
			return nil, fmt.Errorf("state: scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ModelRuns returns the model outcomes of runID in the order they ran.
func (s *Store) ModelRuns(ctx context.Context, runID string) ([]ModelRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, model, kind, started_at, duration_ms, error
		FROM model_runs WHERE run_id = ? ORDER BY started_at, model`, runID)
	if err != nil {
		return nil, fmt.Errorf("state: list model runs: %w", err)
	}
	defer rows.Close()

	var out []ModelRun
	for rows.Next() {
		var (
			m      ModelRun
			ms     int64
			errMsg sql.NullString
		)
		if err := rows.Scan(&m.RunID, &m.Model, &m.Kind, &m.StartedAt, &ms, &errMsg); err != nil {
			return nil, fmt.Errorf("state: scan model run: %w", err)
		}
		m.Duration = time.Duration(ms) * time.Millisecond
		m.Error = errMsg.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
