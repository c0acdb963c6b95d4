package database

import (
	"context"
	"errors"
	"time"

	"shopease-backend/internal/model"
)

// Defaults for retrying idempotent reads.
const (
	ReadAttempts = 3
	ReadBackoff  = 200 * time.Millisecond
)

// WithRetry runs op, retrying transient connection faults with bounded
// exponential backoff. Only ConnectionError results are retried; anything
// else returns immediately, already translated. Callers use it for
// idempotent reads; writes are surfaced on the first failure.
func WithRetry(ctx context.Context, attempts int, base time.Duration, op func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		err = TranslateError(op())
		var ce *model.ConnectionError
		if err == nil || !errors.As(err, &ce) || attempt >= attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(base * time.Duration(1<<(attempt-1))):
		}
	}
}
