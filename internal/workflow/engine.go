// Package workflow implements a durable execution engine for the ingestion
// pipeline. A workflow is a named function addressed by a deterministic id;
// its steps record their outputs in a local SQLite database so that a crashed
// or re-triggered run resumes at the first incomplete step instead of
// starting over, and a run whose id already completed successfully is skipped
// entirely and its recorded result returned.
//
// The engine owns its own checkpoint storage (separate from the chunk store)
// and guarantees at-most-one active execution per workflow id within the
// process. Pipelines that need cross-host exclusivity must front the engine
// with an external lock.
package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Status is the lifecycle state of a workflow record.
type Status string

const (
	// StatusRunning marks a workflow that has started but not finished.
	// A record stuck in this state after a crash is resumed on re-execute.
	StatusRunning Status = "running"
	// StatusSuccess marks a completed workflow whose output is recorded.
	StatusSuccess Status = "success"
	// StatusError marks a workflow that failed; re-executing the same id
	// retries it, replaying completed steps from their checkpoints.
	StatusError Status = "error"
)

// ErrNotFound is returned by Lookup when no workflow record exists for an id.
var ErrNotFound = errors.New("workflow: not found")

// Record is the persisted state of one workflow execution.
type Record struct {
	// ID is the deterministic workflow identifier.
	ID string
	// Name is the workflow's logical name (e.g. "ingest-folder").
	Name string
	// Status is the current lifecycle state.
	Status Status
	// Output is the JSON-encoded workflow result, set on success.
	Output []byte
	// Error is the failure message, set on error.
	Error string
	// CreatedAt is when the record was first inserted.
	CreatedAt time.Time
	// UpdatedAt is when the record last changed state.
	UpdatedAt time.Time
}

// Engine is the durable execution engine. It is safe for concurrent use.
type Engine struct {
	// db is the SQLite checkpoint database.
	db *sql.DB
	// log is the structured logger for engine events.
	log *slog.Logger
	// group collapses concurrent executions of the same workflow id so
	// that at most one runs at a time; the rest receive its result.
	group singleflight.Group
}

// Open opens (or creates) the checkpoint database at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("workflow: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	e := &Engine{db: db, log: log}
	if err := e.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// migrate creates the checkpoint schema if it does not already exist.
func (e *Engine) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS workflows (
    id          TEXT PRIMARY KEY,
    name        TEXT    NOT NULL,
    status      TEXT    NOT NULL CHECK(status IN ('running','success','error')),
    output      TEXT,
    error       TEXT,
    created_at  INTEGER NOT NULL,  -- Unix timestamp (seconds)
    updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS steps (
    workflow_id  TEXT    NOT NULL,
    name         TEXT    NOT NULL,
    output       TEXT,
    attempts     INTEGER NOT NULL DEFAULT 1,
    completed_at INTEGER NOT NULL,
    PRIMARY KEY (workflow_id, name)
);
CREATE TABLE IF NOT EXISTS events (
    workflow_id  TEXT NOT NULL,
    name         TEXT NOT NULL,
    value        TEXT,
    PRIMARY KEY (workflow_id, name)
);
`
	if _, err := e.db.Exec(ddl); err != nil {
		return fmt.Errorf("workflow: migrate: %w", err)
	}
	return nil
}

// Close releases the checkpoint database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Ping verifies the checkpoint database is reachable. Satisfies the server's
// readiness Pinger contract.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("workflow: ping: %w", err)
	}
	return nil
}

// Name returns the readiness probe label for this dependency.
func (e *Engine) Name() string { return "workflow-db" }

// Reset deletes every workflow record, step checkpoint, and event. After a
// reset, previously completed workflow ids execute from scratch instead of
// replaying their recorded results. Used by `ragline reset` alongside the
// chunk store wipe: a checkpoint that outlives the data it produced would
// otherwise skip re-ingestion while the store stays empty.
func (e *Engine) Reset(ctx context.Context) error {
	for _, table := range []string{"steps", "events", "workflows"} {
		if _, err := e.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("workflow: reset %s: %w", table, err)
		}
	}
	e.log.Warn("workflow: all checkpoints deleted")
	return nil
}

// Lookup returns the workflow record for id, or ErrNotFound.
func (e *Engine) Lookup(ctx context.Context, id string) (*Record, error) {
	const q = `SELECT id, name, status, COALESCE(output,''), COALESCE(error,''), created_at, updated_at
	           FROM workflows WHERE id = ?`

	var rec Record
	var output string
	var created, updated int64
	err := e.db.QueryRowContext(ctx, q, id).Scan(
		&rec.ID, &rec.Name, (*string)(&rec.Status), &output, &rec.Error, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("workflow: lookup %s: %w", id, err)
	}
	rec.Output = []byte(output)
	rec.CreatedAt = time.Unix(created, 0)
	rec.UpdatedAt = time.Unix(updated, 0)
	return &rec, nil
}

// Run is the handle passed to a workflow function. Steps and events are
// scoped to the run's workflow id.
type Run struct {
	// engine is the owning engine.
	engine *Engine
	// id is the deterministic workflow id of this execution.
	id string
}

// ID returns the workflow id of this run.
func (r *Run) ID() string { return r.id }

// SetEvent publishes a named progress value for this run. Events are
// observable via Engine.Event while the workflow is still running, which is
// how callers poll discovery and completion progress.
func (r *Run) SetEvent(ctx context.Context, name string, value any) error {
	return r.engine.setEvent(ctx, r.id, name, value)
}

// Execute runs the workflow fn under the deterministic id, durably.
//
// If a previous execution of id already succeeded, fn is NOT run again: the
// recorded output is decoded into T and returned (cross-run idempotency).
// If a previous execution crashed or failed, fn runs again and its completed
// steps replay from their checkpoints. Concurrent Execute calls with the
// same id collapse into a single execution whose result all callers share.
func Execute[T any](ctx context.Context, e *Engine, id, name string, fn func(context.Context, *Run) (T, error)) (T, error) {
	var zero T

	v, err, _ := e.group.Do(id, func() (any, error) {
		if rec, err := e.Lookup(ctx, id); err == nil && rec.Status == StatusSuccess {
			var out T
			if err := json.Unmarshal(rec.Output, &out); err != nil {
				return zero, fmt.Errorf("workflow: decode recorded output for %s: %w", id, err)
			}
			e.log.Debug("workflow: skipping completed execution",
				slog.String("workflow_id", id),
				slog.String("name", name),
			)
			return out, nil
		}

		if err := e.markRunning(ctx, id, name); err != nil {
			return zero, err
		}

		out, err := fn(ctx, &Run{engine: e, id: id})
		if err != nil {
			if dbErr := e.markError(ctx, id, err); dbErr != nil {
				e.log.Error("workflow: failed to record error state",
					slog.String("workflow_id", id),
					slog.Any("error", dbErr),
				)
			}
			return zero, err
		}

		if err := e.markSuccess(ctx, id, out); err != nil {
			return zero, err
		}
		return out, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// markRunning inserts or resets the workflow record to the running state.
func (e *Engine) markRunning(ctx context.Context, id, name string) error {
	now := time.Now().Unix()
	const q = `
INSERT INTO workflows (id, name, status, created_at, updated_at)
VALUES (?, ?, 'running', ?, ?)
ON CONFLICT(id) DO UPDATE SET status = 'running', error = NULL, updated_at = excluded.updated_at`
	if _, err := e.db.ExecContext(ctx, q, id, name, now, now); err != nil {
		return fmt.Errorf("workflow: mark running %s: %w", id, err)
	}
	return nil
}

// markSuccess records the workflow output and flips the record to success.
func (e *Engine) markSuccess(ctx context.Context, id string, output any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("workflow: encode output for %s: %w", id, err)
	}
	const q = `UPDATE workflows SET status = 'success', output = ?, updated_at = ? WHERE id = ?`
	if _, err := e.db.ExecContext(ctx, q, string(data), time.Now().Unix(), id); err != nil {
		return fmt.Errorf("workflow: mark success %s: %w", id, err)
	}
	return nil
}

// markError records the failure message and flips the record to error.
func (e *Engine) markError(ctx context.Context, id string, cause error) error {
	const q = `UPDATE workflows SET status = 'error', error = ?, updated_at = ? WHERE id = ?`
	if _, err := e.db.ExecContext(ctx, q, cause.Error(), time.Now().Unix(), id); err != nil {
		return fmt.Errorf("workflow: mark error %s: %w", id, err)
	}
	return nil
}

// stepOutput returns the recorded output of a completed step, if any.
func (e *Engine) stepOutput(ctx context.Context, id, name string) ([]byte, bool, error) {
	const q = `SELECT COALESCE(output,'') FROM steps WHERE workflow_id = ? AND name = ?`
	var out string
	err := e.db.QueryRowContext(ctx, q, id, name).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("workflow: step lookup %s/%s: %w", id, name, err)
	}
	return []byte(out), true, nil
}

// saveStep records a completed step's output so a resumed run replays it.
func (e *Engine) saveStep(ctx context.Context, id, name string, output []byte, attempts int) error {
	const q = `
INSERT INTO steps (workflow_id, name, output, attempts, completed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(workflow_id, name) DO UPDATE SET output = excluded.output,
    attempts = excluded.attempts, completed_at = excluded.completed_at`
	if _, err := e.db.ExecContext(ctx, q, id, name, string(output), attempts, time.Now().Unix()); err != nil {
		return fmt.Errorf("workflow: save step %s/%s: %w", id, name, err)
	}
	return nil
}

// setEvent upserts a named progress value for a workflow.
func (e *Engine) setEvent(ctx context.Context, id, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("workflow: encode event %s/%s: %w", id, name, err)
	}
	const q = `
INSERT INTO events (workflow_id, name, value) VALUES (?, ?, ?)
ON CONFLICT(workflow_id, name) DO UPDATE SET value = excluded.value`
	if _, err := e.db.ExecContext(ctx, q, id, name, string(data)); err != nil {
		return fmt.Errorf("workflow: set event %s/%s: %w", id, name, err)
	}
	return nil
}

// Event decodes the named progress value for a workflow into out.
// Returns false when the event has not been published yet.
func (e *Engine) Event(ctx context.Context, id, name string, out any) (bool, error) {
	const q = `SELECT value FROM events WHERE workflow_id = ? AND name = ?`
	var data string
	err := e.db.QueryRowContext(ctx, q, id, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("workflow: event lookup %s/%s: %w", id, name, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("workflow: decode event %s/%s: %w", id, name, err)
	}
	return true, nil
}
