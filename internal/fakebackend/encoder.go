package fakebackend

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/xaionaro-go/screenrec/types"
)

type VideoEncoder struct {
	*handle
	params         types.VideoEncoderParams
	keyFrameEvery  int
	count          int
	flushed        bool
	lastDTS        time.Duration
	haveEncodedAny bool
}

var _ types.Encoder = (*VideoEncoder)(nil)

func (f *Factory) NewVideoEncoder(
	ctx context.Context,
	params types.VideoEncoderParams,
) (types.Encoder, error) {
	if contains(f.Config.FailEncoders, params.Encoder.Name) {
		return nil, fmt.Errorf("'%s': %w", params.Encoder.Name, types.ErrEncoderInitFailed)
	}
	keyFrameEvery := int(params.KeyframeInterval / params.FrameRate.Interval())
	if keyFrameEvery < 1 {
		keyFrameEvery = 1
	}
	return &VideoEncoder{
		handle:        f.newHandle("video-encoder-" + params.Encoder.Name),
		params:        params,
		keyFrameEvery: keyFrameEvery,
	}, nil
}

func (e *VideoEncoder) StreamConfig() types.StreamConfig {
	return types.StreamConfig{
		Tag:       types.StreamTagVideo,
		CodecName: e.params.Encoder.Name,
		Width:     e.params.OutputSize.Width,
		Height:    e.params.OutputSize.Height,
		FrameRate: e.params.FrameRate,
	}
}

func (e *VideoEncoder) Encode(
	ctx context.Context,
	unit *types.Unit,
) ([]types.EncodedChunk, error) {
	if e.flushed {
		return nil, fmt.Errorf("the encoder is already flushed")
	}
	if unit.Video == nil {
		return nil, fmt.Errorf("not a video unit")
	}
	if e.haveEncodedAny && unit.PTS <= e.lastDTS {
		return nil, fmt.Errorf("non-monotonic PTS: %v <= %v", unit.PTS, e.lastDTS)
	}
	e.haveEncodedAny = true
	e.lastDTS = unit.PTS

	data := make([]byte, 9)
	binary.BigEndian.PutUint64(data, uint64(e.count))
	if len(unit.Video.Data) > 0 {
		data[8] = unit.Video.Data[0]
	}
	chunk := types.EncodedChunk{
		Tag:      types.StreamTagVideo,
		PTS:      unit.PTS,
		DTS:      unit.PTS,
		Duration: unit.Duration,
		KeyFrame: e.count%e.keyFrameEvery == 0,
		Data:     data,
	}
	e.count++
	return []types.EncodedChunk{chunk}, nil
}

func (e *VideoEncoder) Flush(ctx context.Context) ([]types.EncodedChunk, error) {
	e.flushed = true
	return nil, nil
}

func (e *VideoEncoder) Close() error {
	e.release()
	return nil
}

const audioFrameSize = 1024

type AudioEncoder struct {
	*handle
	params  types.AudioEncoderParams
	pending []float32
	pos     int64
	flushed bool
}

var _ types.Encoder = (*AudioEncoder)(nil)

func (f *Factory) NewAudioEncoder(
	ctx context.Context,
	params types.AudioEncoderParams,
) (types.Encoder, error) {
	return &AudioEncoder{
		handle: f.newHandle("audio-encoder"),
		params: params,
	}, nil
}

func (e *AudioEncoder) StreamConfig() types.StreamConfig {
	return types.StreamConfig{
		Tag:        types.StreamTagAudio,
		CodecName:  e.params.Config.Codec.String(),
		SampleRate: e.params.SampleRate,
		Channels:   e.params.Channels,
	}
}

func (e *AudioEncoder) Encode(
	ctx context.Context,
	unit *types.Unit,
) ([]types.EncodedChunk, error) {
	if e.flushed {
		return nil, fmt.Errorf("the encoder is already flushed")
	}
	if unit.Audio == nil {
		return nil, fmt.Errorf("not an audio unit")
	}
	if len(e.pending) == 0 {
		e.pos = int64(types.DurationToSamples(unit.PTS, e.params.SampleRate))
	}
	e.pending = append(e.pending, unit.Audio.Samples...)
	return e.drain(audioFrameSize), nil
}

func (e *AudioEncoder) drain(minFrames int) []types.EncodedChunk {
	var result []types.EncodedChunk
	for len(e.pending)/e.params.Channels >= minFrames && len(e.pending) > 0 {
		frames := min(audioFrameSize, len(e.pending)/e.params.Channels)
		pts := types.SamplesToDuration(int(e.pos), e.params.SampleRate)
		result = append(result, types.EncodedChunk{
			Tag:      types.StreamTagAudio,
			PTS:      pts,
			DTS:      pts,
			Duration: types.SamplesToDuration(int(e.pos)+frames, e.params.SampleRate) - pts,
			KeyFrame: true,
			Data:     make([]byte, frames/8),
		})
		e.pending = e.pending[frames*e.params.Channels:]
		e.pos += int64(frames)
	}
	return result
}

func (e *AudioEncoder) Flush(ctx context.Context) ([]types.EncodedChunk, error) {
	e.flushed = true
	return e.drain(1), nil
}

func (e *AudioEncoder) Close() error {
	e.release()
	return nil
}
