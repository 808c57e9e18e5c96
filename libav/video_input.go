//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xcontext"
)

const minVideoReadTimeout = 2 * time.Second

type captureSource struct {
	Format  string
	URL     string
	Options types.CustomOptions
}

func boolOption(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// captureSourceFor picks the platform grabber for the target.
func captureSourceFor(params types.VideoInputParams) (captureSource, error) {
	fps := params.FrameRate.String()
	switch runtime.GOOS {
	case "windows":
		url := "desktop"
		if params.Target.WindowTitle != "" {
			url = "title=" + params.Target.WindowTitle
		}
		return captureSource{
			Format: "gdigrab",
			URL:    url,
			Options: types.CustomOptions{
				{Key: "framerate", Value: fps},
				{Key: "draw_mouse", Value: boolOption(params.CaptureCursor)},
			},
		}, nil
	case "linux", "freebsd", "openbsd":
		display := params.Target.Display
		if display == "" {
			display = os.Getenv("DISPLAY")
		}
		if display == "" {
			display = ":0.0"
		}
		return captureSource{
			Format: "x11grab",
			URL:    display,
			Options: types.CustomOptions{
				{Key: "framerate", Value: fps},
				{Key: "draw_mouse", Value: boolOption(params.CaptureCursor)},
			},
		}, nil
	case "darwin":
		screen := params.Target.Display
		if screen == "" {
			screen = "Capture screen 0"
		}
		return captureSource{
			Format: "avfoundation",
			URL:    screen + ":none",
			Options: types.CustomOptions{
				{Key: "framerate", Value: fps},
				{Key: "capture_cursor", Value: boolOption(params.CaptureCursor)},
				{Key: "pixel_format", Value: "bgr0"},
			},
		}, nil
	}
	return captureSource{}, fmt.Errorf("screen capture is not supported on %s: %w", runtime.GOOS, types.ErrDeviceUnavailable)
}

type VideoInput struct {
	Params      types.VideoInputParams
	Source      captureSource
	size        types.Dimensions
	readTimeout time.Duration
	*astikit.Closer
	*astiav.FormatContext

	streamIndex int
	decoder     *codec
	scaler      *astiav.SoftwareScaleContext
	frame       *astiav.Frame
	bgraFrame   *astiav.Frame

	frameCh   chan *types.Frame
	cancel    context.CancelFunc
	loopDone  chan struct{}
	loopErr   error
	closeOnce sync.Once
	closeErr  error
}

var _ types.VideoInput = (*VideoInput)(nil)

func NewVideoInput(
	ctx context.Context,
	params types.VideoInputParams,
) (_ret *VideoInput, _err error) {
	logger.Debugf(ctx, "NewVideoInput(%s)", params.Target.Target)
	defer func() { logger.Debugf(ctx, "/NewVideoInput: %v", _err) }()

	source, err := captureSourceFor(params)
	if err != nil {
		return nil, err
	}

	readTimeout := 10 * params.FrameRate.Interval()
	if readTimeout < minVideoReadTimeout {
		readTimeout = minVideoReadTimeout
	}
	i := &VideoInput{
		Params:      params,
		Source:      source,
		readTimeout: readTimeout,
		Closer:      astikit.NewCloser(),
		frameCh:     make(chan *types.Frame, 1),
		loopDone:    make(chan struct{}),
	}
	defer func() {
		if _err != nil {
			_ = i.Closer.Close()
		}
	}()

	inputFormat := astiav.FindInputFormat(source.Format)
	if inputFormat == nil {
		return nil, fmt.Errorf("input format '%s' is not available: %w", source.Format, types.ErrDeviceUnavailable)
	}

	i.FormatContext = astiav.AllocFormatContext()
	if i.FormatContext == nil {
		return nil, fmt.Errorf("unable to allocate a format context")
	}
	i.Closer.Add(i.FormatContext.Free)

	dict := astiav.NewDictionary()
	defer dict.Free()
	for _, opt := range source.Options {
		logger.Debugf(ctx, "input.Dictionary['%s'] = '%s'", opt.Key, opt.Value)
		dict.Set(opt.Key, opt.Value, 0)
	}

	if err := i.FormatContext.OpenInput(source.URL, inputFormat, dict); err != nil {
		return nil, fmt.Errorf("unable to open %s input '%s': %w: %w", source.Format, source.URL, types.ErrDeviceUnavailable, err)
	}
	i.Closer.Add(i.FormatContext.CloseInput)

	if err := i.FormatContext.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("unable to get stream info: %w", err)
	}

	var videoStream *astiav.Stream
	for _, stream := range i.FormatContext.Streams() {
		if stream.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			videoStream = stream
			break
		}
	}
	if videoStream == nil {
		return nil, fmt.Errorf("%s input '%s' has no video stream: %w", source.Format, source.URL, types.ErrDeviceUnavailable)
	}
	i.streamIndex = videoStream.Index()

	codecParams := videoStream.CodecParameters()
	i.decoder, err = newCodec(ctx, "", codecParams.CodecID(), false, func(_ *astiav.Codec, cc *astiav.CodecContext) error {
		return codecParams.ToCodecContext(cc)
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to open the capture decoder: %w", err)
	}
	i.Closer.AddWithError(i.decoder.Close)

	i.size = types.Dimensions{
		Width:  i.decoder.codecContext.Width(),
		Height: i.decoder.codecContext.Height(),
	}

	i.frame = astiav.AllocFrame()
	i.Closer.Add(i.frame.Free)
	i.bgraFrame = astiav.AllocFrame()
	i.Closer.Add(i.bgraFrame.Free)
	i.Closer.Add(func() {
		if i.scaler != nil {
			i.scaler.Free()
		}
	})

	loopCtx, cancel := context.WithCancel(xcontext.DetachDone(ctx))
	i.cancel = cancel
	observability.Go(loopCtx, func(ctx context.Context) {
		defer close(i.loopDone)
		defer close(i.frameCh)
		err := i.readLoop(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			errmon.ObserveErrorCtx(ctx, err)
		}
		i.loopErr = err
	})
	return i, nil
}

func (i *VideoInput) Size() types.Dimensions {
	return i.size
}

func (i *VideoInput) readLoop(
	ctx context.Context,
) (_err error) {
	logger.Debugf(ctx, "readLoop")
	defer func() { logger.Debugf(ctx, "/readLoop: %v", _err) }()

	packet := astiav.AllocPacket()
	defer packet.Free()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := i.FormatContext.ReadFrame(packet)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEagain):
			continue
		case errors.Is(err, astiav.ErrEof):
			return fmt.Errorf("the capture ended: %w", types.ErrCaptureSessionLost)
		default:
			return fmt.Errorf("unable to read a frame: %w: %w", types.ErrCaptureSessionLost, err)
		}
		ts := i.Params.Clock.Now()
		if packet.StreamIndex() != i.streamIndex {
			packet.Unref()
			continue
		}
		err = i.decoder.codecContext.SendPacket(packet)
		packet.Unref()
		if err != nil {
			return fmt.Errorf("unable to decode a captured packet: %w", err)
		}
		for {
			err := i.decoder.codecContext.ReceiveFrame(i.frame)
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				break
			}
			if err != nil {
				return fmt.Errorf("unable to receive a decoded frame: %w", err)
			}
			frame, err := i.toBGRA(ts)
			i.frame.Unref()
			if err != nil {
				return err
			}
			i.deliver(ctx, frame)
		}
	}
}

// deliver keeps only the newest frame if the reader is behind.
func (i *VideoInput) deliver(ctx context.Context, frame *types.Frame) {
	for {
		select {
		case i.frameCh <- frame:
			return
		default:
		}
		select {
		case old := <-i.frameCh:
			logger.Tracef(ctx, "dropping a stale captured frame %v", old.Timestamp)
		default:
		}
	}
}

func (i *VideoInput) toBGRA(ts time.Duration) (*types.Frame, error) {
	src := i.frame
	if src.PixelFormat() != astiav.PixelFormatBgra {
		if i.scaler == nil || i.bgraFrame.Width() != src.Width() || i.bgraFrame.Height() != src.Height() {
			if i.scaler != nil {
				i.scaler.Free()
			}
			scaler, err := astiav.CreateSoftwareScaleContext(
				src.Width(), src.Height(), src.PixelFormat(),
				src.Width(), src.Height(), astiav.PixelFormatBgra,
				astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagPoint),
			)
			if err != nil {
				i.scaler = nil
				return nil, fmt.Errorf("unable to create a scaler from %s: %w", src.PixelFormat(), err)
			}
			i.scaler = scaler
			i.bgraFrame.Unref()
			i.bgraFrame.SetWidth(src.Width())
			i.bgraFrame.SetHeight(src.Height())
			i.bgraFrame.SetPixelFormat(astiav.PixelFormatBgra)
			if err := i.bgraFrame.AllocBuffer(1); err != nil {
				return nil, fmt.Errorf("unable to allocate a BGRA frame: %w", err)
			}
		}
		if err := i.scaler.ScaleFrame(src, i.bgraFrame); err != nil {
			return nil, fmt.Errorf("unable to convert the captured frame: %w", err)
		}
		src = i.bgraFrame
	}

	data, err := src.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("unable to read the captured frame: %w", err)
	}
	return &types.Frame{
		Timestamp: ts,
		Width:     src.Width(),
		Height:    src.Height(),
		Stride:    src.Width() * 4,
		Data:      data,
	}, nil
}

func (i *VideoInput) ReadFrame(ctx context.Context) (*types.Frame, error) {
	timer := time.NewTimer(i.readTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-i.frameCh:
		if !ok {
			<-i.loopDone
			if i.loopErr != nil {
				return nil, i.loopErr
			}
			return nil, types.ErrCaptureSessionLost
		}
		return frame, nil
	case <-timer.C:
		return nil, fmt.Errorf("no frames from %s for %v: %w", i.Source.Format, i.readTimeout, types.ErrCaptureSessionLost)
	}
}

func (i *VideoInput) Close() error {
	i.closeOnce.Do(func() {
		i.cancel()
		<-i.loopDone
		i.closeErr = i.Closer.Close()
	})
	return i.closeErr
}
