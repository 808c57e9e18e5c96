// Package audiodev captures desktop (loopback) and microphone audio
// through miniaudio (gen2brain/malgo).
package audiodev

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gen2brain/malgo"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
)

type Context struct {
	locker    xsync.Mutex
	allocated *malgo.AllocatedContext
	closeOnce sync.Once
	closeErr  error
}

func NewContext(ctx context.Context) (_ret *Context, _err error) {
	logger.Debugf(ctx, "NewContext")
	defer func() { logger.Debugf(ctx, "/NewContext: %v", _err) }()

	l := logger.FromCtx(ctx)
	allocated, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		l.Debugf("miniaudio: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the audio context: %w: %w", types.ErrDeviceUnavailable, err)
	}
	return &Context{allocated: allocated}, nil
}

func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.allocated.Uninit()
		c.allocated.Free()
	})
	return c.closeErr
}
