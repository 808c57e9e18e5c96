package screenrec

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/screenrec/audiodev"
	"github.com/xaionaro-go/screenrec/libav"
	"github.com/xaionaro-go/screenrec/target"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
)

// platformFactory combines FFmpeg video, miniaudio audio and the native
// window lookup.
type platformFactory struct {
	*libav.Factory
	*audiodev.Context
	*target.Resolver
}

var _ types.Factory = (*platformFactory)(nil)

func newPlatformFactory(ctx context.Context) (_ret *platformFactory, _err error) {
	logger.Debugf(ctx, "newPlatformFactory")
	defer func() { logger.Debugf(ctx, "/newPlatformFactory: %v", _err) }()

	video, err := libav.NewFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the video backend: %w", err)
	}
	audio, err := audiodev.NewContext(ctx)
	if err != nil {
		_ = video.Close()
		return nil, fmt.Errorf("unable to initialize the audio backend: %w", err)
	}
	return &platformFactory{
		Factory:  video,
		Context:  audio,
		Resolver: target.NewResolver(),
	}, nil
}

func (f *platformFactory) Close() error {
	var mErr *multierror.Error
	if err := f.Context.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the audio backend: %w", err))
	}
	if err := f.Factory.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the video backend: %w", err))
	}
	return mErr.ErrorOrNil()
}

var (
	defaultFactoryLocker xsync.Mutex
	defaultFactory       *platformFactory
)

// DefaultFactory is the platform backend shared by every recorder created
// without OptionFactory; it is initialized on the first use.
func DefaultFactory(ctx context.Context) (types.Factory, error) {
	return xsync.DoR2(ctx, &defaultFactoryLocker, func() (types.Factory, error) {
		if defaultFactory != nil {
			return defaultFactory, nil
		}
		f, err := newPlatformFactory(ctx)
		if err != nil {
			return nil, err
		}
		defaultFactory = f
		return f, nil
	})
}

// CloseDefaultFactory releases the platform backend; it must not be
// called while a recorder using it is active.
func CloseDefaultFactory(ctx context.Context) error {
	return xsync.DoR1(ctx, &defaultFactoryLocker, func() error {
		if defaultFactory == nil {
			return nil
		}
		err := defaultFactory.Close()
		defaultFactory = nil
		return err
	})
}
