package screenrec

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
)

// EnumerateAudioInputDevices lists the microphones of this machine.
func EnumerateAudioInputDevices(ctx context.Context) (_ret []AudioInputDevice, _err error) {
	logger.Debugf(ctx, "EnumerateAudioInputDevices")
	defer func() { logger.Debugf(ctx, "/EnumerateAudioInputDevices: %d, %v", len(_ret), _err) }()

	f, err := DefaultFactory(ctx)
	if err != nil {
		return nil, err
	}
	return enumerateAudioInputDevices(ctx, f)
}

func enumerateAudioInputDevices(ctx context.Context, f types.Factory) ([]AudioInputDevice, error) {
	devices, err := f.AudioInputDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate audio input devices: %w", err)
	}
	return devices, nil
}

// EnumerateVideoEncoders lists the usable video encoders, most preferred first.
func EnumerateVideoEncoders(ctx context.Context) (_ret []VideoEncoder, _err error) {
	logger.Debugf(ctx, "EnumerateVideoEncoders")
	defer func() { logger.Debugf(ctx, "/EnumerateVideoEncoders: %d, %v", len(_ret), _err) }()

	f, err := DefaultFactory(ctx)
	if err != nil {
		return nil, err
	}
	return enumerateVideoEncoders(ctx, f)
}

func enumerateVideoEncoders(ctx context.Context, f types.Factory) ([]VideoEncoder, error) {
	encoders, err := f.VideoEncoders(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate video encoders: %w: %w", types.ErrEncoderInitFailed, err)
	}
	types.SortVideoEncoders(encoders)
	return encoders, nil
}

// GetPreferredVideoEncoderByType returns the best encoder of the codec; it
// never returns an encoder of another codec.
func GetPreferredVideoEncoderByType(
	ctx context.Context,
	codec VideoEncoderType,
) (_ret VideoEncoder, _err error) {
	logger.Debugf(ctx, "GetPreferredVideoEncoderByType(%s)", codec)
	defer func() { logger.Debugf(ctx, "/GetPreferredVideoEncoderByType(%s): %s, %v", codec, _ret, _err) }()

	f, err := DefaultFactory(ctx)
	if err != nil {
		return VideoEncoder{}, err
	}
	return preferredVideoEncoder(ctx, f, codec)
}

func preferredVideoEncoder(ctx context.Context, f types.Factory, codec VideoEncoderType) (VideoEncoder, error) {
	encoders, err := enumerateVideoEncoders(ctx, f)
	if err != nil {
		return VideoEncoder{}, err
	}
	return types.PreferredVideoEncoder(encoders, codec)
}
