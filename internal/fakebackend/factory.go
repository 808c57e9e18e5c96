// Package fakebackend is an in-process platform for tests: synthetic
// capture, trivial codecs and an inspectable container file.
package fakebackend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xaionaro-go/screenrec/types"
)

type Config struct {
	VideoSize    types.Dimensions
	Encoders     []types.VideoEncoder
	AudioDevices []types.AudioInputDevice

	// KnownTargets are the process names and window titles that resolve.
	KnownTargets []string

	FailAudioOrigins []types.AudioOrigin
	FailEncoders     []string

	// LoseVideoAfter makes the video input fail with ErrCaptureSessionLost
	// after the given number of frames.
	LoseVideoAfter int

	ResolveDelay time.Duration
}

type Factory struct {
	Config  Config
	handles atomic.Int64

	locker  sync.Mutex
	created []string
}

var _ types.Factory = (*Factory)(nil)

func New(cfg Config) *Factory {
	if cfg.VideoSize.Width == 0 || cfg.VideoSize.Height == 0 {
		cfg.VideoSize = types.Dimensions{Width: 64, Height: 36}
	}
	if cfg.Encoders == nil {
		cfg.Encoders = []types.VideoEncoder{
			{Name: "libx264", Codec: types.VideoCodecH264, Acceleration: types.AccelerationSoftware},
			{Name: "h264_nvenc", Codec: types.VideoCodecH264, Acceleration: types.AccelerationNVENC},
			{Name: "libx265", Codec: types.VideoCodecHEVC, Acceleration: types.AccelerationSoftware},
		}
	}
	if cfg.AudioDevices == nil {
		cfg.AudioDevices = []types.AudioInputDevice{
			{ID: "fake-mic-0", Name: "Fake Microphone", IsDefault: true},
			{ID: "fake-mic-1", Name: "Fake Headset"},
		}
	}
	return &Factory{Config: cfg}
}

// OpenHandles is the number of inputs, encoders and outputs not closed yet.
func (f *Factory) OpenHandles() int64 {
	return f.handles.Load()
}

// Created lists the names of everything ever opened, in order.
func (f *Factory) Created() []string {
	f.locker.Lock()
	defer f.locker.Unlock()
	return append([]string(nil), f.created...)
}

func (f *Factory) newHandle(name string) *handle {
	f.handles.Add(1)
	f.locker.Lock()
	f.created = append(f.created, name)
	f.locker.Unlock()
	return &handle{factory: f}
}

type handle struct {
	factory *Factory
	once    sync.Once
}

func (h *handle) release() {
	h.once.Do(func() {
		h.factory.handles.Add(-1)
	})
}

func contains[T comparable](s []T, v T) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

func (f *Factory) ResolveTarget(
	ctx context.Context,
	target types.CaptureTarget,
) (types.ResolvedTarget, error) {
	if f.Config.ResolveDelay > 0 {
		select {
		case <-ctx.Done():
			return types.ResolvedTarget{}, ctx.Err()
		case <-time.After(f.Config.ResolveDelay):
		}
	}
	switch target.Kind {
	case types.CaptureTargetKindDisplay:
		return types.ResolvedTarget{Target: target, Display: target.Name}, nil
	case types.CaptureTargetKindProcess, types.CaptureTargetKindWindow:
		if !contains(f.Config.KnownTargets, target.Name) {
			return types.ResolvedTarget{}, fmt.Errorf("%s: %w", target, types.ErrTargetNotFound)
		}
		return types.ResolvedTarget{Target: target, WindowTitle: target.Name, PID: 4242}, nil
	}
	return types.ResolvedTarget{}, fmt.Errorf("unexpected target kind %v", target.Kind)
}

func (f *Factory) AudioInputDevices(ctx context.Context) ([]types.AudioInputDevice, error) {
	return append([]types.AudioInputDevice(nil), f.Config.AudioDevices...), nil
}

func (f *Factory) VideoEncoders(ctx context.Context) ([]types.VideoEncoder, error) {
	result := append([]types.VideoEncoder(nil), f.Config.Encoders...)
	types.SortVideoEncoders(result)
	return result, nil
}
