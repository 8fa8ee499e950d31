package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/ragline/ragline/internal/faults"
)

// Retry policy for model invocations. Rate limits and timeouts are worth
// retrying; anything else fails immediately.
const (
	maxAttempts    = 6
	initialBackoff = 2 * time.Second
	maxBackoff     = 10 * time.Second
)

// sleepFunc waits for d or until ctx is cancelled. Injected so tests can run
// the full retry schedule without real delays.
type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// invokeWithRetry calls the model with exponential backoff. The wait before
// each retry is the larger of the exponential schedule and the provider's
// suggested wait plus a one-second margin. A suggested wait above the ceiling
// never reaches this loop — Classify already turned it into a non-retryable
// LLMError.
func (s *Service) invokeWithRetry(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		msg, err := s.model.Generate(ctx, msgs)
		if err == nil {
			return msg, nil
		}

		classified := faults.Classify(err)
		lastErr = classified

		wait := backoff
		retryable := false
		switch e := classified.(type) {
		case *faults.LLMRateLimitError:
			retryable = true
			if suggested := e.RetryAfter + time.Second; e.RetryAfter > 0 && suggested > wait {
				wait = suggested
			}
		case *faults.LLMTimeoutError:
			retryable = true
		}

		if !retryable || attempt == maxAttempts {
			return nil, lastErr
		}

		s.log.Warn("generation: model call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", classified),
		)
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, lastErr
}
