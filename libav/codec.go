//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/internal"
	"github.com/xaionaro-go/screenrec/types"
)

var nanosecondTimeBase = astiav.NewRational(1, int(time.Second))

func durationToTimeBase(d time.Duration, tb astiav.Rational) int64 {
	return astiav.RescaleQ(int64(d), nanosecondTimeBase, tb)
}

func durationFromTimeBase(ts int64, tb astiav.Rational) time.Duration {
	return time.Duration(astiav.RescaleQ(ts, tb, nanosecondTimeBase))
}

type codec struct {
	codec        *astiav.Codec
	codecContext *astiav.CodecContext
	packet       *astiav.Packet
	closer       *astikit.Closer
}

func (c *codec) Close() error {
	return c.closer.Close()
}

// newCodec opens an encoder or a decoder; configure is called on the
// allocated codec context right before it is opened.
func newCodec(
	ctx context.Context,
	codecName string,
	codecID astiav.CodecID,
	isEncoder bool, // otherwise: decoder
	configure func(*astiav.Codec, *astiav.CodecContext) error,
	customOptions types.CustomOptions,
) (_ret *codec, _err error) {
	c := &codec{
		closer: astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			_ = c.Close()
		}
	}()

	if isEncoder {
		if codecName != "" {
			c.codec = astiav.FindEncoderByName(codecName)
		} else {
			c.codec = astiav.FindEncoder(codecID)
		}
	} else {
		if codecName != "" {
			c.codec = astiav.FindDecoderByName(codecName)
		} else {
			c.codec = astiav.FindDecoder(codecID)
		}
	}
	if c.codec == nil {
		return nil, fmt.Errorf("unable to find a codec using name '%s' or codec ID %v", codecName, codecID)
	}

	c.codecContext = astiav.AllocCodecContext(c.codec)
	if c.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}
	c.closer.Add(c.codecContext.Free)

	if configure != nil {
		if err := configure(c.codec, c.codecContext); err != nil {
			return nil, fmt.Errorf("unable to configure the codec context of '%s': %w", c.codec.Name(), err)
		}
	}

	var options *astiav.Dictionary
	if len(customOptions) > 0 {
		options = astiav.NewDictionary()
		c.closer.Add(options.Free)
		for _, opt := range customOptions {
			logger.Debugf(ctx, "codec.Dictionary['%s'] = '%s'", opt.Key, opt.Value)
			options.Set(opt.Key, opt.Value, 0)
		}
	}

	if err := c.codecContext.Open(c.codec, options); err != nil {
		return nil, fmt.Errorf("unable to open codec context of '%s': %w", c.codec.Name(), err)
	}

	c.packet = astiav.AllocPacket()
	c.closer.Add(c.packet.Free)
	return c, nil
}

// receiveChunks drains the encoder; timeBase is the codec context time base.
func (c *codec) receiveChunks(
	ctx context.Context,
	tag types.StreamTag,
	timeBase astiav.Rational,
	defaultDuration time.Duration,
	out []types.EncodedChunk,
) ([]types.EncodedChunk, error) {
	for {
		err := c.codecContext.ReceivePacket(c.packet)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEagain), errors.Is(err, astiav.ErrEof):
			return out, nil
		default:
			return out, fmt.Errorf("unable to receive a packet from the encoder: %w", err)
		}

		chunk := types.EncodedChunk{
			Tag:      tag,
			PTS:      durationFromTimeBase(c.packet.Pts(), timeBase),
			DTS:      durationFromTimeBase(c.packet.Dts(), timeBase),
			Duration: durationFromTimeBase(c.packet.Duration(), timeBase),
			KeyFrame: c.packet.Flags().Has(astiav.PacketFlagKey),
			Data:     append([]byte(nil), c.packet.Data()...),
		}
		if chunk.Duration <= 0 {
			chunk.Duration = defaultDuration
		}
		c.packet.Unref()
		logger.Tracef(ctx, "encoded a %s chunk: pts:%v dts:%v dur:%v key:%t size:%d", tag, chunk.PTS, chunk.DTS, chunk.Duration, chunk.KeyFrame, len(chunk.Data))
		out = append(out, chunk)
	}
}

// streamParameters copies the codec parameters for the muxer; the copy
// outlives the encoder so an output can be created after it is closed.
func (c *codec) streamParameters(ctx context.Context) (*astiav.CodecParameters, error) {
	params := astiav.AllocCodecParameters()
	if err := params.FromCodecContext(c.codecContext); err != nil {
		params.Free()
		return nil, fmt.Errorf("unable to copy the codec parameters: %w", err)
	}
	internal.SetFinalizerFree(ctx, "codec parameters of "+c.codec.Name(), params)
	return params, nil
}
