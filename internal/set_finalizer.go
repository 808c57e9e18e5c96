package internal

import (
	"context"
	"runtime"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// SetFinalizerFree frees a C-allocated object once nothing references it
// anymore; used for objects handed out to callers with no explicit owner.
func SetFinalizerFree[T interface{ Free() }](
	ctx context.Context,
	name string,
	freer T,
) {
	runtime.SetFinalizer(freer, func(freer T) {
		logger.Tracef(ctx, "freeing %s (%T)", name, freer)
		freer.Free()
	})
}
