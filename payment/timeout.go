package payment

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds a single gateway call.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a gateway call outlives its deadline.
var ErrTimeout = errors.New("payment: gateway call timed out")

// WithTimeout runs fn and gives up after d, returning ErrTimeout. fn receives
// a context that is cancelled at the deadline.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		d = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
