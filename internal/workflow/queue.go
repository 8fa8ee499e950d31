package workflow

import (
	"context"
	"fmt"
)

// Queue runs enqueued workflows on a fixed number of workers. Per-file
// ingestion fans out through a queue sized to respect downstream
// embedding-provider rate limits.
type Queue struct {
	// engine executes the enqueued workflows.
	engine *Engine
	// name labels the queue in logs.
	name string
	// slots is a counting semaphore bounding concurrent executions.
	slots chan struct{}
}

// NewQueue constructs a worker queue with the given concurrency bound.
// Bounds below 1 are raised to 1.
func (e *Engine) NewQueue(name string, workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		engine: e,
		name:   name,
		slots:  make(chan struct{}, workers),
	}
}

// outcome carries a finished workflow's result to its handle.
type outcome[T any] struct {
	value T
	err   error
}

// Handle is a future for an enqueued workflow execution.
type Handle[T any] struct {
	// id is the deterministic workflow id this handle tracks.
	id string
	// ch delivers the single outcome.
	ch chan outcome[T]
}

// ID returns the workflow id this handle tracks.
func (h *Handle[T]) ID() string { return h.id }

// Result blocks until the workflow finishes or ctx is cancelled.
func (h *Handle[T]) Result(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("workflow: awaiting %s: %w", h.id, ctx.Err())
	case out := <-h.ch:
		return out.value, out.err
	}
}

// Enqueue schedules fn to run as the workflow identified by id once a worker
// slot is free. The deterministic id carries the queue's skip/resume
// semantics: an id that already succeeded resolves to its recorded result
// without re-running, and duplicate ids enqueued in the same pass collapse
// into one execution.
func Enqueue[T any](ctx context.Context, q *Queue, id, name string, fn func(context.Context, *Run) (T, error)) *Handle[T] {
	h := &Handle[T]{id: id, ch: make(chan outcome[T], 1)}

	go func() {
		select {
		case <-ctx.Done():
			var zero T
			h.ch <- outcome[T]{zero, fmt.Errorf("workflow: enqueue %s: %w", id, ctx.Err())}
			return
		case q.slots <- struct{}{}:
		}
		defer func() { <-q.slots }()

		v, err := Execute(ctx, q.engine, id, name, fn)
		h.ch <- outcome[T]{v, err}
	}()

	return h
}
