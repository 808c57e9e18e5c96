package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

// CallWithTimeout runs fn and waits for it at most timeout. If fn finishes
// after the deadline, its successful result is handed to onLate so that it
// can be released.
func CallWithTimeout[T any](
	ctx context.Context,
	timeout time.Duration,
	fn func(ctx context.Context) (T, error),
	onLate func(T),
) (T, error) {
	ctx, cancelFn := context.WithTimeout(ctx, timeout)
	defer cancelFn()

	type result struct {
		value T
		err   error
	}
	resultCh := make(chan result)
	abandoned := make(chan struct{})
	observability.Go(ctx, func(ctx context.Context) {
		value, err := fn(ctx)
		select {
		case resultCh <- result{value: value, err: err}:
		case <-abandoned:
			if err == nil && onLate != nil {
				logger.Debugf(ctx, "releasing a result that arrived after the deadline")
				onLate(value)
			}
		}
	})

	select {
	case r := <-resultCh:
		return r.value, r.err
	case <-ctx.Done():
		close(abandoned)
		var zero T
		return zero, fmt.Errorf("timed out after %v: %w", timeout, ctx.Err())
	}
}
