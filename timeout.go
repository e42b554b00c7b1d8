package mdns

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeout runs fn and gives up after d. When the deadline wins, the result
// is a KindTimeout error wrapping ErrTimeout and fn is left to observe the
// cancellation of its context on its own.
//
//	err := mdns.Timeout(ctx, time.Second, func(context.Context) error {
//		return sender.SendRequest()
//	})
func Timeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
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
			return newError("timeout", KindTimeout, fmt.Errorf("%w after %s", ErrTimeout, d))
		}
		return ctx.Err()
	}
}
