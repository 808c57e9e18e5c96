package audiodev

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gen2brain/malgo"
	"github.com/xaionaro-go/screenrec/synchronizer"
	"github.com/xaionaro-go/screenrec/types"
)

const inputQueueCapacity = 64

// Input is one running capture device; blocks are queued by the device
// callback and the oldest ones are dropped if nobody reads them.
type Input struct {
	Params  types.AudioInputParams
	device  *malgo.Device
	queue   *synchronizer.Queue[*types.AudioSample]
	lostCh  chan struct{}
	lost    sync.Once
	closing atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

var _ types.AudioInput = (*Input)(nil)

func deviceTypeFor(origin types.AudioOrigin) (malgo.DeviceType, error) {
	switch origin {
	case types.AudioOriginDesktop:
		return malgo.Loopback, nil
	case types.AudioOriginMicrophone:
		return malgo.Capture, nil
	}
	return 0, fmt.Errorf("cannot capture audio of origin %s", origin)
}

func (c *Context) NewAudioInput(
	ctx context.Context,
	params types.AudioInputParams,
) (_ret types.AudioInput, _err error) {
	logger.Debugf(ctx, "NewAudioInput(%s, '%s')", params.Origin, params.DeviceID)
	defer func() { logger.Debugf(ctx, "/NewAudioInput(%s): %v", params.Origin, _err) }()

	deviceType, err := deviceTypeFor(params.Origin)
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(deviceType)
	cfg.SampleRate = uint32(params.SampleRate)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(params.Channels)
	if params.Origin == types.AudioOriginMicrophone && params.DeviceID != "" {
		info, err := c.findCaptureDevice(ctx, params.DeviceID)
		if err != nil {
			return nil, err
		}
		logger.Debugf(ctx, "using microphone '%s'", info.Name())
		cfg.Capture.DeviceID = info.ID.Pointer()
	}

	i := &Input{
		Params: params,
		lostCh: make(chan struct{}),
	}
	i.queue = synchronizer.NewQueue[*types.AudioSample](inputQueueCapacity, func(dropped *types.AudioSample) {
		logger.Tracef(ctx, "dropping a %s audio block at %v", params.Origin, dropped.Timestamp)
	})

	device, err := malgo.InitDevice(c.allocated.Context, cfg, malgo.DeviceCallbacks{
		Data: i.onData,
		Stop: func() {
			if i.closing.Load() {
				return
			}
			logger.Errorf(ctx, "the %s audio device stopped unexpectedly", params.Origin)
			i.lost.Do(func() { close(i.lostCh) })
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the %s audio device: %w: %w", params.Origin, types.ErrDeviceUnavailable, err)
	}
	i.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("unable to start the %s audio device: %w: %w", params.Origin, types.ErrDeviceUnavailable, err)
	}
	return i, nil
}

func (i *Input) onData(_, in []byte, frameCount uint32) {
	if len(in) == 0 || i.closing.Load() {
		return
	}
	sample := &types.AudioSample{
		Origin:     i.Params.Origin,
		SampleRate: i.Params.SampleRate,
		Channels:   i.Params.Channels,
		Samples:    decodeFloat32(in, i.Params.Volume),
	}
	// the callback fires when the block has been captured completely
	sample.Timestamp = i.Params.Clock.Now() - sample.Duration()
	if sample.Timestamp < 0 {
		sample.Timestamp = 0
	}
	i.queue.Push(sample)
}

func (i *Input) Origin() types.AudioOrigin {
	return i.Params.Origin
}

// ReadSamples waits for the next block; silence on a loopback device
// produces no blocks at all, the gaps are filled by the synchronizer.
func (i *Input) ReadSamples(ctx context.Context) (*types.AudioSample, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-i.lostCh:
		return nil, fmt.Errorf("the %s audio device is gone: %w", i.Params.Origin, types.ErrCaptureSessionLost)
	case sample, ok := <-i.queue.C():
		if !ok {
			return nil, fmt.Errorf("the %s audio input is closed: %w", i.Params.Origin, types.ErrCaptureSessionLost)
		}
		return sample, nil
	}
}

func (i *Input) Close() error {
	i.closeOnce.Do(func() {
		i.closing.Store(true)
		if err := i.device.Stop(); err != nil {
			i.closeErr = fmt.Errorf("unable to stop the %s audio device: %w", i.Params.Origin, err)
		}
		i.device.Uninit()
		i.queue.Close()
	})
	return i.closeErr
}
