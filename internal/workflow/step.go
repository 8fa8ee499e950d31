package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// StepOptions controls retry behaviour for a single step. The zero value
// means one attempt and no backoff — the step fails its workflow on the
// first error, which is the default for every step except embedding.
type StepOptions struct {
	// MaxAttempts is the total number of attempts (including the first).
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles after
	// each failure. Defaults to 1s when retries are enabled and unset.
	Backoff time.Duration
}

// Step runs fn as an independently checkpointed unit of run's workflow.
//
// If the step completed in a previous execution of the same workflow id,
// fn is NOT run: the recorded output is decoded into T and returned. This
// is what makes a crashed workflow resume at its first incomplete step.
// On success the output is recorded before Step returns, so a crash after
// Step never repeats it.
func Step[T any](ctx context.Context, run *Run, name string, opts StepOptions, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	e := run.engine

	if out, ok, err := e.stepOutput(ctx, run.id, name); err != nil {
		return zero, err
	} else if ok {
		var v T
		if err := json.Unmarshal(out, &v); err != nil {
			return zero, fmt.Errorf("workflow: decode checkpoint %s/%s: %w", run.id, name, err)
		}
		e.log.Debug("workflow: replaying checkpointed step",
			slog.String("workflow_id", run.id),
			slog.String("step", name),
		)
		return v, nil
	}

	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			data, mErr := json.Marshal(v)
			if mErr != nil {
				return zero, fmt.Errorf("workflow: encode checkpoint %s/%s: %w", run.id, name, mErr)
			}
			if sErr := e.saveStep(ctx, run.id, name, data, attempt); sErr != nil {
				return zero, sErr
			}
			return v, nil
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		e.log.Warn("workflow: step failed, retrying",
			slog.String("workflow_id", run.id),
			slog.String("step", name),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("workflow: step %s cancelled during backoff: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return zero, fmt.Errorf("workflow: step %s failed after %d attempts: %w", name, attempts, lastErr)
}
