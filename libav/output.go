//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
)

const (
	outputFormatName = "mp4"
	outputMovFlags   = "frag_keyframe+empty_moov+default_base_moof"
)

type OutputStream struct {
	*astiav.Stream
	Config   types.StreamConfig
	TimeBase astiav.Rational
	LastDTS  int64
}

// Output is a fragmented MP4 file, so everything written before a crash
// stays playable.
type Output struct {
	Path    string
	Streams map[types.StreamTag]*OutputStream
	Locker  xsync.Mutex
	*astikit.Closer
	*astiav.FormatContext

	packet       *astiav.Packet
	finalizeOnce sync.Once
	finalizeErr  error
	bytesWritten uint64
}

var _ types.Output = (*Output)(nil)

func NewOutput(
	ctx context.Context,
	path string,
	streams []types.StreamConfig,
) (_ret *Output, _err error) {
	logger.Debugf(ctx, "NewOutput(%s)", path)
	defer func() { logger.Debugf(ctx, "/NewOutput(%s): %v", path, _err) }()

	if path == "" {
		return nil, fmt.Errorf("the provided path is empty")
	}

	o := &Output{
		Path:    path,
		Streams: make(map[types.StreamTag]*OutputStream),
		Closer:  astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			_ = o.Close()
		}
	}()

	formatContext, err := astiav.AllocOutputFormatContext(nil, outputFormatName, path)
	if err != nil {
		return nil, fmt.Errorf("allocating output format context failed for '%s': %w", path, err)
	}
	if formatContext == nil {
		return nil, fmt.Errorf("unable to allocate the output format context")
	}
	o.FormatContext = formatContext
	o.Closer.Add(o.FormatContext.Free)

	for _, cfg := range streams {
		params, ok := cfg.Parameters.(*streamParameters)
		if !ok {
			return nil, fmt.Errorf("the %s stream was not produced by a libav encoder: %T", cfg.Tag, cfg.Parameters)
		}
		stream := o.FormatContext.NewStream(nil)
		if stream == nil {
			return nil, fmt.Errorf("unable to initialize an output stream")
		}
		if err := params.CodecParameters.Copy(stream.CodecParameters()); err != nil {
			return nil, fmt.Errorf("unable to copy the codec parameters of the %s stream: %w", cfg.Tag, err)
		}
		stream.CodecParameters().SetCodecTag(0)
		stream.SetTimeBase(params.TimeBase)
		if cfg.Tag == types.StreamTagVideo {
			frameRate := astiav.NewRational(cfg.FrameRate.Num, cfg.FrameRate.Den)
			stream.SetAvgFrameRate(frameRate)
			stream.SetRFrameRate(frameRate)
		}
		o.Streams[cfg.Tag] = &OutputStream{
			Stream:  stream,
			Config:  cfg,
			LastDTS: math.MinInt64,
		}
		logger.Tracef(ctx, "output stream %s: %s", cfg.Tag, spew.Sdump(cfg))
	}

	ioContext, err := astiav.OpenIOContext(
		path,
		astiav.NewIOContextFlags(astiav.IOContextFlagWrite),
		nil,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to open IO context (path: '%s'): %w", path, err)
	}
	o.Closer.Add(func() {
		err := ioContext.Close()
		if err != nil {
			logger.Errorf(ctx, "unable to close the IO context (path: %s): %v", path, err)
		}
	})
	o.FormatContext.SetPb(ioContext)

	dict := astiav.NewDictionary()
	defer dict.Free()
	dict.Set("movflags", outputMovFlags, 0)
	if err := o.FormatContext.WriteHeader(dict); err != nil {
		return nil, fmt.Errorf("unable to write the header: %w", err)
	}
	for _, s := range o.Streams {
		// the muxer may have changed it
		s.TimeBase = s.Stream.TimeBase()
	}

	o.packet = astiav.AllocPacket()
	o.Closer.Add(o.packet.Free)
	return o, nil
}

func (o *Output) WriteChunk(
	ctx context.Context,
	chunk types.EncodedChunk,
) error {
	return xsync.DoR1(ctx, &o.Locker, func() error {
		return o.writeChunk(ctx, chunk)
	})
}

func (o *Output) toStreamTime(d time.Duration, s *OutputStream) int64 {
	return durationToTimeBase(d, s.TimeBase)
}

func (o *Output) writeChunk(
	ctx context.Context,
	chunk types.EncodedChunk,
) (_err error) {
	logger.Tracef(ctx, "writeChunk (%s, pts:%v, dts:%v, dur:%v)", chunk.Tag, chunk.PTS, chunk.DTS, chunk.Duration)
	defer func() { logger.Tracef(ctx, "/writeChunk: %v", _err) }()

	outputStream := o.Streams[chunk.Tag]
	if outputStream == nil {
		return fmt.Errorf("there is no %s stream in '%s'", chunk.Tag, o.Path)
	}

	dts := o.toStreamTime(chunk.DTS, outputStream)
	if dts <= outputStream.LastDTS {
		logger.Errorf(ctx, "received a DTS from the past, ignoring the chunk: %d <= %d", dts, outputStream.LastDTS)
		return nil
	}

	defer o.packet.Unref()
	if err := o.packet.FromData(chunk.Data); err != nil {
		return fmt.Errorf("unable to fill the packet: %w", err)
	}
	o.packet.SetStreamIndex(outputStream.Index())
	o.packet.SetPts(o.toStreamTime(chunk.PTS, outputStream))
	o.packet.SetDts(dts)
	o.packet.SetDuration(o.toStreamTime(chunk.Duration, outputStream))
	if chunk.KeyFrame {
		o.packet.SetFlags(o.packet.Flags().Add(astiav.PacketFlagKey))
	}

	if err := o.FormatContext.WriteInterleavedFrame(o.packet); err != nil {
		return fmt.Errorf("unable to write the %s packet: %w", chunk.Tag, err)
	}
	outputStream.LastDTS = dts
	o.bytesWritten += uint64(len(chunk.Data))
	return nil
}

func (o *Output) Finalize(ctx context.Context) error {
	o.finalizeOnce.Do(func() {
		o.finalizeErr = xsync.DoR1(ctx, &o.Locker, func() error {
			logger.Debugf(ctx, "finalizing '%s' after %d bytes of payload", o.Path, o.bytesWritten)
			if err := o.FormatContext.WriteTrailer(); err != nil {
				return fmt.Errorf("unable to write the trailer of '%s': %w", o.Path, err)
			}
			return nil
		})
	})
	return o.finalizeErr
}
