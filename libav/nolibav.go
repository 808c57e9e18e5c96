//go:build !with_libav
// +build !with_libav

package libav

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/screenrec/types"
)

// ErrNotCompiled is returned by every operation of a build without the
// with_libav tag.
var ErrNotCompiled = fmt.Errorf("built without libav support (use tag 'with_libav'): %w", types.ErrEncoderInitFailed)

type Factory struct{}

func NewFactory(ctx context.Context) (*Factory, error) {
	return nil, ErrNotCompiled
}

func (f *Factory) Close() error {
	return nil
}

func (f *Factory) VideoEncoders(ctx context.Context) ([]types.VideoEncoder, error) {
	return nil, ErrNotCompiled
}

func (f *Factory) NewVideoInput(ctx context.Context, params types.VideoInputParams) (types.VideoInput, error) {
	return nil, ErrNotCompiled
}

func (f *Factory) NewVideoEncoder(ctx context.Context, params types.VideoEncoderParams) (types.Encoder, error) {
	return nil, ErrNotCompiled
}

func (f *Factory) NewAudioEncoder(ctx context.Context, params types.AudioEncoderParams) (types.Encoder, error) {
	return nil, ErrNotCompiled
}

func (f *Factory) NewOutput(ctx context.Context, path string, streams []types.StreamConfig) (types.Output, error) {
	return nil, ErrNotCompiled
}
