package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pavelanni/literable/internal/metrics"
)

// MaxAttempts bounds the retry wrapper.
const MaxAttempts = 3

// Retrying repeats retryable failures of the wrapped Completer with a fixed delay.
type Retrying struct {
	next     Completer
	attempts int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps next so that each call makes up to attempts tries, clamped
// to [1, MaxAttempts]. With one attempt it returns next unchanged.
func WithRetry(next Completer, attempts int, delay time.Duration) Completer {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > MaxAttempts {
		attempts = MaxAttempts
	}
	if attempts == 1 {
		return next
	}
	return &Retrying{next: next, attempts: attempts, delay: delay, sleep: sleepCtx}
}

// Complete calls the wrapped Completer until it succeeds, fails with a
// non-retryable error, the attempts run out or ctx is done.
func (r *Retrying) Complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, err := r.next.Complete(ctx, system, user)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !retryable(err) || attempt == r.attempts {
			break
		}
		if ctx.Err() != nil {
			break
		}
		slog.Warn("LLM call failed, retrying", "attempt", attempt, "max_attempts", r.attempts, "delay", r.delay, "error", err)
		metrics.LLMRetriesTotal.Inc()
		if err := r.sleep(ctx, r.delay); err != nil {
			break
		}
	}
	return "", lastErr
}

func retryable(err error) bool {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Retryable()
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
