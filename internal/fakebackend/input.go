package fakebackend

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xaionaro-go/screenrec/types"
)

type VideoInput struct {
	*handle
	params     types.VideoInputParams
	size       types.Dimensions
	ticker     *time.Ticker
	loseAfter  int
	frameCount int
}

var _ types.VideoInput = (*VideoInput)(nil)

func (f *Factory) NewVideoInput(
	ctx context.Context,
	params types.VideoInputParams,
) (types.VideoInput, error) {
	if params.Clock == nil {
		return nil, fmt.Errorf("no clock provided")
	}
	return &VideoInput{
		handle:    f.newHandle("video-input"),
		params:    params,
		size:      f.Config.VideoSize,
		ticker:    time.NewTicker(params.FrameRate.Interval()),
		loseAfter: f.Config.LoseVideoAfter,
	}, nil
}

func (v *VideoInput) Size() types.Dimensions {
	return v.size
}

func (v *VideoInput) ReadFrame(ctx context.Context) (*types.Frame, error) {
	if v.loseAfter > 0 && v.frameCount >= v.loseAfter {
		return nil, fmt.Errorf("the fake window was closed: %w", types.ErrCaptureSessionLost)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-v.ticker.C:
	}
	v.frameCount++

	stride := v.size.Width * 4
	data := make([]byte, stride*v.size.Height)
	for i := range data {
		data[i] = byte(v.frameCount)
	}
	return &types.Frame{
		Timestamp: v.params.Clock.Now(),
		Width:     v.size.Width,
		Height:    v.size.Height,
		Stride:    stride,
		Data:      data,
	}, nil
}

func (v *VideoInput) Close() error {
	v.ticker.Stop()
	v.release()
	return nil
}

const audioBlockDuration = 10 * time.Millisecond

type AudioInput struct {
	*handle
	params types.AudioInputParams
	ticker *time.Ticker
	phase  float64
}

var _ types.AudioInput = (*AudioInput)(nil)

func (f *Factory) NewAudioInput(
	ctx context.Context,
	params types.AudioInputParams,
) (types.AudioInput, error) {
	if contains(f.Config.FailAudioOrigins, params.Origin) {
		return nil, fmt.Errorf("%s: %w", params.Origin, types.ErrDeviceUnavailable)
	}
	if params.DeviceID != "" && params.Origin == types.AudioOriginMicrophone {
		found := false
		for _, dev := range f.Config.AudioDevices {
			if dev.ID == params.DeviceID || dev.Name == params.DeviceID {
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("device '%s': %w", params.DeviceID, types.ErrDeviceUnavailable)
		}
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("no clock provided")
	}
	return &AudioInput{
		handle: f.newHandle("audio-input-" + params.Origin.String()),
		params: params,
		ticker: time.NewTicker(audioBlockDuration),
	}, nil
}

func (a *AudioInput) Origin() types.AudioOrigin {
	return a.params.Origin
}

func (a *AudioInput) ReadSamples(ctx context.Context) (*types.AudioSample, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.ticker.C:
	}

	frames := types.DurationToSamples(audioBlockDuration, a.params.SampleRate)
	samples := make([]float32, frames*a.params.Channels)
	step := 2 * math.Pi * 440 / float64(a.params.SampleRate)
	for i := 0; i < frames; i++ {
		v := float32(0.25 * a.params.Volume * math.Sin(a.phase))
		a.phase += step
		for ch := 0; ch < a.params.Channels; ch++ {
			samples[i*a.params.Channels+ch] = v
		}
	}
	ts := a.params.Clock.Now() - audioBlockDuration
	if ts < 0 {
		ts = 0
	}
	return &types.AudioSample{
		Timestamp:  ts,
		Origin:     a.params.Origin,
		SampleRate: a.params.SampleRate,
		Channels:   a.params.Channels,
		Samples:    samples,
	}, nil
}

func (a *AudioInput) Close() error {
	a.ticker.Stop()
	a.release()
	return nil
}
