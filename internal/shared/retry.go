package shared

import (
	"context"
	"errors"
	"fmt"
)

// DefaultRetryAttempts bounds optimistic-concurrency retries. Conflicts
// beyond this budget surface to the caller instead of spinning.
const DefaultRetryAttempts = 3

// RetryOnConflict runs fn up to attempts times, retrying only when the
// returned error is ErrVersionConflict. Any other error stops immediately.
func RetryOnConflict(ctx context.Context, attempts int, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, err)
}
