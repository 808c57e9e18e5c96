//go:build with_libav
// +build with_libav

package libav

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
)

// Factory creates FFmpeg-backed video inputs, encoders and outputs.
type Factory struct {
	locker   xsync.Mutex
	encoders []types.VideoEncoder
	probed   bool
}

func NewFactory(ctx context.Context) (*Factory, error) {
	initLibav(ctx)
	return &Factory{}, nil
}

func (f *Factory) Close() error {
	return nil
}

// VideoEncoders probes the encoders on the first call and caches the result.
func (f *Factory) VideoEncoders(ctx context.Context) ([]types.VideoEncoder, error) {
	return xsync.DoR2(ctx, &f.locker, func() ([]types.VideoEncoder, error) {
		if !f.probed {
			f.encoders = probeVideoEncoders(ctx)
			f.probed = true
			logger.Debugf(ctx, "available video encoders: %v", f.encoders)
		}
		return append([]types.VideoEncoder(nil), f.encoders...), nil
	})
}

func (f *Factory) NewVideoInput(
	ctx context.Context,
	params types.VideoInputParams,
) (types.VideoInput, error) {
	return NewVideoInput(ctx, params)
}

func (f *Factory) NewVideoEncoder(
	ctx context.Context,
	params types.VideoEncoderParams,
) (types.Encoder, error) {
	return NewVideoEncoder(ctx, params)
}

func (f *Factory) NewAudioEncoder(
	ctx context.Context,
	params types.AudioEncoderParams,
) (types.Encoder, error) {
	return NewAudioEncoder(ctx, params)
}

func (f *Factory) NewOutput(
	ctx context.Context,
	path string,
	streams []types.StreamConfig,
) (types.Output, error) {
	return NewOutput(ctx, path, streams)
}
