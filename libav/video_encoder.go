//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
)

const defaultVideoBitRate = 8_000_000

var preferredPixelFormats = []astiav.PixelFormat{
	astiav.PixelFormatNv12,
	astiav.PixelFormatYuv420P,
}

type VideoEncoder struct {
	*codec
	Params       types.VideoEncoderParams
	timeBase     astiav.Rational
	interval     time.Duration
	pixelFormat  astiav.PixelFormat
	streamConfig types.StreamConfig

	scaler     *astiav.SoftwareScaleContext
	scalerSize types.Dimensions
	srcFrame   *astiav.Frame
	dstFrame   *astiav.Frame
	flushed    bool
}

var _ types.Encoder = (*VideoEncoder)(nil)

func pickPixelFormat(c *astiav.Codec) astiav.PixelFormat {
	supported := c.PixelFormats()
	if len(supported) == 0 {
		return astiav.PixelFormatYuv420P
	}
	for _, want := range preferredPixelFormats {
		for _, have := range supported {
			if have == want {
				return want
			}
		}
	}
	return supported[0]
}

// videoQualityOptions translates the quality into encoder private options.
func videoQualityOptions(
	encoderName string,
	q types.VideoQuality,
) (bitRate int64, opts types.CustomOptions) {
	switch q := q.(type) {
	case *types.VideoQualityConstantBitrate:
		return int64(*q), nil
	case *types.VideoQualityConstantQuality:
		value := strconv.Itoa(int(*q))
		switch {
		case strings.HasPrefix(encoderName, "libx26"), strings.HasPrefix(encoderName, "libsvtav1"):
			return 0, types.CustomOptions{{Key: "crf", Value: value}}
		case strings.HasSuffix(encoderName, "_nvenc"):
			return 0, types.CustomOptions{{Key: "rc", Value: "vbr"}, {Key: "cq", Value: value}}
		case strings.HasSuffix(encoderName, "_qsv"):
			return 0, types.CustomOptions{{Key: "global_quality", Value: value}}
		case strings.HasSuffix(encoderName, "_amf"):
			return 0, types.CustomOptions{{Key: "rc", Value: "cqp"}, {Key: "qp_i", Value: value}, {Key: "qp_p", Value: value}}
		default:
			return 0, types.CustomOptions{{Key: "qp", Value: value}}
		}
	}
	return defaultVideoBitRate, nil
}

func NewVideoEncoder(
	ctx context.Context,
	params types.VideoEncoderParams,
) (_ret *VideoEncoder, _err error) {
	logger.Debugf(ctx, "NewVideoEncoder(%s, %v -> %v)", params.Encoder, params.InputSize, params.OutputSize)
	defer func() { logger.Debugf(ctx, "/NewVideoEncoder: %v", _err) }()

	if params.FrameRate.Num <= 0 || params.FrameRate.Den <= 0 {
		return nil, fmt.Errorf("invalid frame rate %s", params.FrameRate)
	}

	e := &VideoEncoder{
		Params:   params,
		timeBase: astiav.NewRational(params.FrameRate.Den, params.FrameRate.Num),
		interval: params.FrameRate.Interval(),
	}
	defer func() {
		if _err != nil {
			_ = e.Close()
		}
	}()

	bitRate, qualityOpts := videoQualityOptions(params.Encoder.Name, params.Config.Quality)
	opts := append(qualityOpts, params.Config.CustomOptions...)
	gopSize := int(params.KeyframeInterval / e.interval)
	if gopSize < 1 {
		gopSize = 1
	}

	c, err := newCodec(ctx, params.Encoder.Name, astiav.CodecIDNone, true, func(codec *astiav.Codec, cc *astiav.CodecContext) error {
		e.pixelFormat = pickPixelFormat(codec)
		cc.SetWidth(params.OutputSize.Width)
		cc.SetHeight(params.OutputSize.Height)
		cc.SetPixelFormat(e.pixelFormat)
		cc.SetTimeBase(e.timeBase)
		cc.SetFramerate(astiav.NewRational(params.FrameRate.Num, params.FrameRate.Den))
		cc.SetGopSize(gopSize)
		cc.SetMaxBFrames(0)
		if bitRate > 0 {
			cc.SetBitRate(bitRate)
		}
		cc.SetFlags(cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
		return nil
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("unable to open encoder '%s': %w", params.Encoder.Name, err)
	}
	e.codec = c

	e.dstFrame = astiav.AllocFrame()
	e.closer.Add(e.dstFrame.Free)
	e.dstFrame.SetWidth(params.OutputSize.Width)
	e.dstFrame.SetHeight(params.OutputSize.Height)
	e.dstFrame.SetPixelFormat(e.pixelFormat)
	if err := e.dstFrame.AllocBuffer(0); err != nil {
		return nil, fmt.Errorf("unable to allocate the encoder frame buffer: %w", err)
	}

	e.srcFrame = astiav.AllocFrame()
	e.closer.Add(e.srcFrame.Free)
	e.closer.Add(func() {
		if e.scaler != nil {
			e.scaler.Free()
		}
	})

	codecParams, err := c.streamParameters(ctx)
	if err != nil {
		return nil, err
	}
	e.streamConfig = types.StreamConfig{
		Tag:        types.StreamTagVideo,
		CodecName:  params.Encoder.Name,
		Width:      params.OutputSize.Width,
		Height:     params.OutputSize.Height,
		FrameRate:  params.FrameRate,
		BitRate:    bitRate,
		Parameters: &streamParameters{CodecParameters: codecParams, TimeBase: e.timeBase},
	}
	return e, nil
}

func (e *VideoEncoder) StreamConfig() types.StreamConfig {
	return e.streamConfig
}

func (e *VideoEncoder) prepareScaler(frame *types.Frame) error {
	size := types.Dimensions{Width: frame.Width, Height: frame.Height}
	if e.scaler != nil && e.scalerSize == size {
		return nil
	}
	if e.scaler != nil {
		e.scaler.Free()
		e.scaler = nil
	}
	scaler, err := astiav.CreateSoftwareScaleContext(
		frame.Width, frame.Height, astiav.PixelFormatBgra,
		e.Params.OutputSize.Width, e.Params.OutputSize.Height, e.pixelFormat,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("unable to create a scaler %v -> %v: %w", size, e.Params.OutputSize, err)
	}
	e.scaler = scaler
	e.scalerSize = size

	e.srcFrame.Unref()
	e.srcFrame.SetWidth(frame.Width)
	e.srcFrame.SetHeight(frame.Height)
	e.srcFrame.SetPixelFormat(astiav.PixelFormatBgra)
	if err := e.srcFrame.AllocBuffer(1); err != nil {
		return fmt.Errorf("unable to allocate the source frame buffer: %w", err)
	}
	return nil
}

func packedBGRA(frame *types.Frame) []byte {
	rowSize := frame.Width * 4
	if frame.Stride == rowSize || frame.Stride == 0 {
		return frame.Data[:rowSize*frame.Height]
	}
	packed := make([]byte, rowSize*frame.Height)
	for y := 0; y < frame.Height; y++ {
		copy(packed[y*rowSize:(y+1)*rowSize], frame.Data[y*frame.Stride:])
	}
	return packed
}

func (e *VideoEncoder) Encode(
	ctx context.Context,
	unit *types.Unit,
) ([]types.EncodedChunk, error) {
	if e.flushed {
		return nil, fmt.Errorf("the encoder is already flushed")
	}
	if unit.Video == nil {
		return nil, fmt.Errorf("not a video unit: %s", unit.Tag)
	}
	if err := e.prepareScaler(unit.Video); err != nil {
		return nil, err
	}
	if err := e.srcFrame.Data().SetBytes(packedBGRA(unit.Video), 1); err != nil {
		return nil, fmt.Errorf("unable to fill the source frame: %w", err)
	}
	if err := e.dstFrame.MakeWritable(); err != nil {
		return nil, fmt.Errorf("unable to make the encoder frame writable: %w", err)
	}
	if err := e.scaler.ScaleFrame(e.srcFrame, e.dstFrame); err != nil {
		return nil, fmt.Errorf("unable to scale the frame: %w", err)
	}
	e.dstFrame.SetPts(durationToTimeBase(unit.PTS, e.timeBase))
	if err := e.codecContext.SendFrame(e.dstFrame); err != nil {
		return nil, fmt.Errorf("unable to send a frame to '%s': %w", e.Params.Encoder.Name, err)
	}
	return e.receiveChunks(ctx, types.StreamTagVideo, e.timeBase, e.interval, nil)
}

func (e *VideoEncoder) Flush(ctx context.Context) ([]types.EncodedChunk, error) {
	if e.flushed {
		return nil, nil
	}
	e.flushed = true
	if err := e.codecContext.SendFrame(nil); err != nil {
		return nil, fmt.Errorf("unable to flush '%s': %w", e.Params.Encoder.Name, err)
	}
	return e.receiveChunks(ctx, types.StreamTagVideo, e.timeBase, e.interval, nil)
}

func (e *VideoEncoder) Close() error {
	if e.codec == nil {
		return nil
	}
	return e.codec.Close()
}

// streamParameters is what an Output needs to create a track for an encoder.
type streamParameters struct {
	CodecParameters *astiav.CodecParameters
	TimeBase        astiav.Rational
}
