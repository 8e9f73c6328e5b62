// Package retry runs an operation until it succeeds or a bounded number of
// attempts is spent.
package retry

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Policy bounds the attempts of an operation.
type Policy struct {
	// Attempts is the total number of times the operation is tried,
	// including the first one. Values below one are treated as one.
	Attempts int
	// Backoff spaces the attempts. Only Duration, Factor, Jitter and Cap are
	// used; the number of attempts is governed by Attempts.
	Backoff wait.Backoff
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do calls op until it returns no error, the attempts of the policy are spent
// or ctx is done. Attempts are numbered from one.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := policy.Backoff
	backoff.Steps = attempts

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return zero, fmt.Errorf("interrupted after %d attempts, last error %v: %w", attempt-1, last, err)
			}
			return zero, err
		}
		result, err := op(ctx, attempt)
		if err == nil {
			return result, nil
		}
		last = err
		if attempt == attempts {
			if err := ctx.Err(); err != nil {
				return zero, fmt.Errorf("interrupted after %d attempts, last error %v: %w", attempt, last, err)
			}
			break
		}
		if err := sleep(ctx, backoff.Step()); err != nil {
			return zero, fmt.Errorf("interrupted after %d attempts, last error %v: %w", attempt, last, err)
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
