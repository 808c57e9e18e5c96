package internal

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Assert panics through the context logger if the invariant does not hold.
func Assert(
	ctx context.Context,
	mustBeTrue bool,
	format string,
	args ...any,
) {
	if mustBeTrue {
		return
	}

	logger.Panicf(ctx, "assertion failed: "+format, args...)
}
