//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
)

const (
	defaultAudioBitRate   = 192_000
	defaultAudioFrameSize = 1024
)

type AudioEncoder struct {
	*codec
	Params       types.AudioEncoderParams
	timeBase     astiav.Rational
	layout       astiav.ChannelLayout
	frameSize    int
	resampler    *astiav.SoftwareResampleContext
	streamConfig types.StreamConfig

	pending   []float32
	nextPTS   int64
	havePTS   bool
	flushed   bool
	frameData []byte
}

var _ types.Encoder = (*AudioEncoder)(nil)

func audioEncoderName(c types.AudioCodec) string {
	switch c {
	case types.AudioCodecOpus:
		return "libopus"
	default:
		return "aac"
	}
}

func channelLayout(channels int) astiav.ChannelLayout {
	if channels == 1 {
		return astiav.ChannelLayoutMono
	}
	return astiav.ChannelLayoutStereo
}

func pickSampleFormat(c *astiav.Codec) astiav.SampleFormat {
	supported := c.SampleFormats()
	for _, have := range supported {
		if have == astiav.SampleFormatFltp {
			return have
		}
	}
	if len(supported) > 0 {
		return supported[0]
	}
	return astiav.SampleFormatFltp
}

func NewAudioEncoder(
	ctx context.Context,
	params types.AudioEncoderParams,
) (_ret *AudioEncoder, _err error) {
	logger.Debugf(ctx, "NewAudioEncoder(%s, %d Hz, %d ch)", params.Config.Codec, params.SampleRate, params.Channels)
	defer func() { logger.Debugf(ctx, "/NewAudioEncoder: %v", _err) }()

	e := &AudioEncoder{
		Params:   params,
		timeBase: astiav.NewRational(1, params.SampleRate),
		layout:   channelLayout(params.Channels),
	}
	defer func() {
		if _err != nil {
			_ = e.Close()
		}
	}()

	bitRate := int64(defaultAudioBitRate)
	if q, ok := params.Config.Quality.(*types.AudioQualityConstantBitrate); ok && *q > 0 {
		bitRate = int64(*q)
	}

	name := audioEncoderName(params.Config.Codec)
	c, err := newCodec(ctx, name, astiav.CodecIDNone, true, func(codec *astiav.Codec, cc *astiav.CodecContext) error {
		cc.SetSampleFormat(pickSampleFormat(codec))
		cc.SetSampleRate(params.SampleRate)
		cc.SetChannelLayout(e.layout)
		cc.SetTimeBase(e.timeBase)
		cc.SetBitRate(bitRate)
		cc.SetFlags(cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
		return nil
	}, params.Config.CustomOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio encoder '%s': %w", name, err)
	}
	e.codec = c

	e.frameSize = c.codecContext.FrameSize()
	if e.frameSize <= 0 {
		e.frameSize = defaultAudioFrameSize
	}

	e.resampler = astiav.AllocSoftwareResampleContext()
	if e.resampler == nil {
		return nil, fmt.Errorf("unable to allocate a resampler")
	}
	e.closer.Add(e.resampler.Free)

	codecParams, err := c.streamParameters(ctx)
	if err != nil {
		return nil, err
	}
	e.streamConfig = types.StreamConfig{
		Tag:        types.StreamTagAudio,
		CodecName:  name,
		SampleRate: params.SampleRate,
		Channels:   params.Channels,
		BitRate:    bitRate,
		Parameters: &streamParameters{CodecParameters: codecParams, TimeBase: e.timeBase},
	}
	return e, nil
}

func (e *AudioEncoder) StreamConfig() types.StreamConfig {
	return e.streamConfig
}

func (e *AudioEncoder) Encode(
	ctx context.Context,
	unit *types.Unit,
) ([]types.EncodedChunk, error) {
	if e.flushed {
		return nil, fmt.Errorf("the encoder is already flushed")
	}
	if unit.Audio == nil {
		return nil, fmt.Errorf("not an audio unit: %s", unit.Tag)
	}
	if unit.Audio.Channels != e.Params.Channels || unit.Audio.SampleRate != e.Params.SampleRate {
		return nil, fmt.Errorf("unexpected audio format %d Hz/%d ch, expected %d Hz/%d ch",
			unit.Audio.SampleRate, unit.Audio.Channels, e.Params.SampleRate, e.Params.Channels)
	}
	if !e.havePTS {
		e.nextPTS = durationToTimeBase(unit.PTS, e.timeBase)
		e.havePTS = true
	}
	e.pending = append(e.pending, unit.Audio.Samples...)

	var chunks []types.EncodedChunk
	for len(e.pending) >= e.frameSize*e.Params.Channels {
		var err error
		chunks, err = e.encodeFrame(ctx, e.frameSize, chunks)
		if err != nil {
			return chunks, err
		}
	}
	return chunks, nil
}

func (e *AudioEncoder) frameDuration(samples int) time.Duration {
	return types.SamplesToDuration(samples, e.Params.SampleRate)
}

// encodeFrame consumes nbSamples frames of pending samples.
func (e *AudioEncoder) encodeFrame(
	ctx context.Context,
	nbSamples int,
	chunks []types.EncodedChunk,
) ([]types.EncodedChunk, error) {
	count := nbSamples * e.Params.Channels
	if cap(e.frameData) < count*4 {
		e.frameData = make([]byte, count*4)
	}
	data := e.frameData[:count*4]
	for i, v := range e.pending[:count] {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	e.pending = append(e.pending[:0], e.pending[count:]...)

	src := astiav.AllocFrame()
	defer src.Free()
	src.SetSampleFormat(astiav.SampleFormatFlt)
	src.SetSampleRate(e.Params.SampleRate)
	src.SetChannelLayout(e.layout)
	src.SetNbSamples(nbSamples)
	if err := src.AllocBuffer(0); err != nil {
		return chunks, fmt.Errorf("unable to allocate an audio frame: %w", err)
	}
	if err := src.Data().SetBytes(data, 0); err != nil {
		return chunks, fmt.Errorf("unable to fill an audio frame: %w", err)
	}

	dst := astiav.AllocFrame()
	defer dst.Free()
	dst.SetSampleFormat(e.codecContext.SampleFormat())
	dst.SetSampleRate(e.Params.SampleRate)
	dst.SetChannelLayout(e.layout)
	dst.SetNbSamples(nbSamples)
	if err := dst.AllocBuffer(0); err != nil {
		return chunks, fmt.Errorf("unable to allocate an audio frame: %w", err)
	}
	if err := e.resampler.ConvertFrame(src, dst); err != nil {
		return chunks, fmt.Errorf("unable to convert the audio samples: %w", err)
	}
	dst.SetPts(e.nextPTS)
	e.nextPTS += int64(nbSamples)

	if err := e.codecContext.SendFrame(dst); err != nil {
		return chunks, fmt.Errorf("unable to send an audio frame: %w", err)
	}
	return e.receiveChunks(ctx, types.StreamTagAudio, e.timeBase, e.frameDuration(e.frameSize), chunks)
}

func (e *AudioEncoder) Flush(ctx context.Context) ([]types.EncodedChunk, error) {
	if e.flushed {
		return nil, nil
	}
	e.flushed = true

	var chunks []types.EncodedChunk
	if rest := len(e.pending) / e.Params.Channels; rest > 0 {
		var err error
		chunks, err = e.encodeFrame(ctx, rest, chunks)
		if err != nil {
			return chunks, err
		}
	}
	if err := e.codecContext.SendFrame(nil); err != nil {
		return chunks, fmt.Errorf("unable to flush the audio encoder: %w", err)
	}
	return e.receiveChunks(ctx, types.StreamTagAudio, e.timeBase, e.frameDuration(e.frameSize), chunks)
}

func (e *AudioEncoder) Close() error {
	if e.codec == nil {
		return nil
	}
	return e.codec.Close()
}
