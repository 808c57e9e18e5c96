package screenrec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/screenrec/internal"
	"github.com/xaionaro-go/screenrec/pipeline"
	"github.com/xaionaro-go/screenrec/replay"
	"github.com/xaionaro-go/screenrec/synchronizer"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xcontext"
)

type PipelineStats = pipeline.Stats
type ReplayStats = replay.Stats

const statsLogInterval = 5 * time.Second

// session is one start-to-stop recording; all of its resources live in scope.
type session struct {
	ID       string
	target   types.CaptureTarget
	token    *SlotToken
	scope    *internal.Scope
	pipeline *pipeline.Pipeline
	replay   *replay.Buffer
	streams  []types.StreamConfig

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	err      error
}

func newSession(target types.CaptureTarget) *session {
	id := uuid.NewString()
	return &session{
		ID:     id,
		target: target,
		scope:  internal.NewScope("session-" + id),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (s *session) Err() error {
	<-s.doneCh
	return s.err
}

func (s *session) requestStop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// release frees everything acquired so far and gives the slot back.
func (s *session) release(ctx context.Context) error {
	err := s.scope.Close()
	if err != nil {
		logger.Errorf(ctx, "unable to release the resources of session %s: %v", s.ID, err)
	}
	if s.token != nil {
		s.token.Release(ctx)
	}
	return err
}

func acquire[T interface{ Close() error }](
	ctx context.Context,
	s *session,
	timeout time.Duration,
	name string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	v, err := internal.CallWithTimeout(ctx, timeout, fn, func(late T) {
		_ = late.Close()
	})
	if err != nil {
		var zero T
		if errors.Is(err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("unable to open the %s in time: %w: %w", name, types.ErrDeviceUnavailable, err)
		}
		return zero, fmt.Errorf("unable to open the %s: %w", name, err)
	}
	if err := s.scope.Add(ctx, name, v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func (s *session) start(
	ctx context.Context,
	factory types.Factory,
	cfg types.Config,
	encoders []types.VideoEncoder,
) (_err error) {
	logger.Debugf(ctx, "session %s: start", s.ID)
	defer func() { logger.Debugf(ctx, "session %s: /start: %v", s.ID, _err) }()

	resolved, err := internal.CallWithTimeout(ctx, cfg.AcquireTimeout, func(ctx context.Context) (types.ResolvedTarget, error) {
		return factory.ResolveTarget(ctx, s.target)
	}, nil)
	if err != nil {
		if !errors.Is(err, types.ErrTargetNotFound) {
			err = fmt.Errorf("%w: %w", types.ErrTargetNotFound, err)
		}
		return fmt.Errorf("unable to resolve the capture target %s: %w", s.target, err)
	}
	logger.Debugf(ctx, "resolved target: %#+v", resolved)

	clock := types.NewWallClock()
	videoInput, err := acquire(ctx, s, cfg.AcquireTimeout, "video input", func(ctx context.Context) (types.VideoInput, error) {
		return factory.NewVideoInput(ctx, types.VideoInputParams{
			Target:        resolved,
			FrameRate:     cfg.FrameRate,
			CaptureCursor: cfg.CaptureCursor,
			Clock:         clock,
		})
	})
	if err != nil {
		return err
	}

	var (
		audioInputs  []types.AudioInput
		audioOrigins []types.AudioOrigin
	)
	for _, src := range []struct {
		enabled  bool
		origin   types.AudioOrigin
		deviceID string
		volume   float64
	}{
		{cfg.DesktopAudioEnabled(), types.AudioOriginDesktop, "", cfg.SystemVolume},
		{cfg.MicrophoneEnabled(), types.AudioOriginMicrophone, cfg.MicrophoneDevice, cfg.MicrophoneVolume},
	} {
		if !src.enabled {
			continue
		}
		in, err := acquire(ctx, s, cfg.AcquireTimeout, src.origin.String()+" audio input", func(ctx context.Context) (types.AudioInput, error) {
			return factory.NewAudioInput(ctx, types.AudioInputParams{
				Origin:     src.origin,
				DeviceID:   src.deviceID,
				SampleRate: cfg.SampleRate,
				Channels:   cfg.Channels,
				Volume:     src.volume,
				Clock:      clock,
			})
		})
		if err != nil {
			return err
		}
		audioInputs = append(audioInputs, in)
		audioOrigins = append(audioOrigins, src.origin)
	}

	outputSize := evenDimensions(videoInput.Size())
	if cfg.OutputDimensions.IsSet() {
		outputSize = cfg.OutputDimensions.Get()
	}
	videoEncoder, err := s.newVideoEncoder(ctx, factory, types.VideoEncoderParams{
		InputSize:        videoInput.Size(),
		OutputSize:       outputSize,
		FrameRate:        cfg.FrameRate,
		KeyframeInterval: cfg.KeyframeInterval,
		Config:           cfg.Video,
	}, encoders)
	if err != nil {
		return err
	}
	s.streams = append(s.streams, videoEncoder.StreamConfig())

	var audioEncoder types.Encoder
	if len(audioInputs) > 0 {
		audioEncoder, err = factory.NewAudioEncoder(ctx, types.AudioEncoderParams{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Config:     cfg.Audio,
		})
		if err != nil {
			return fmt.Errorf("unable to initialize the audio encoder: %w: %w", types.ErrEncoderInitFailed, err)
		}
		if err := s.scope.Add(ctx, "audio encoder", audioEncoder); err != nil {
			return err
		}
		s.streams = append(s.streams, audioEncoder.StreamConfig())
	}

	output, err := factory.NewOutput(ctx, cfg.OutputPath, s.streams)
	if err != nil {
		if !errors.Is(err, types.ErrIO) {
			err = fmt.Errorf("%w: %w", types.ErrIO, err)
		}
		return fmt.Errorf("unable to open the output '%s': %w", cfg.OutputPath, err)
	}
	if err := s.scope.Add(ctx, "output", output); err != nil {
		return err
	}

	syncer, err := synchronizer.New(synchronizer.Config{
		FrameRate:    cfg.FrameRate,
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		AudioOrigins: audioOrigins,
		SyncConfig:   cfg.Sync,
	}, clock)
	if err != nil {
		return fmt.Errorf("unable to initialize the synchronizer: %w: %w", types.ErrConfigurationInvalid, err)
	}

	if cfg.ReplayEnabled() {
		s.replay = replay.NewBuffer(cfg.ReplayWindow)
	}

	s.pipeline = &pipeline.Pipeline{
		VideoInput:   videoInput,
		AudioInputs:  audioInputs,
		Synchronizer: syncer,
		VideoEncoder: videoEncoder,
		AudioEncoder: audioEncoder,
		Output:       output,
		Replay:       s.replay,
	}
	if cfg.DebugMode {
		s.pipeline.StatsLogInterval = statsLogInterval
	}
	return nil
}

func (s *session) newVideoEncoder(
	ctx context.Context,
	factory types.Factory,
	params types.VideoEncoderParams,
	encoders []types.VideoEncoder,
) (types.Encoder, error) {
	var mErr *multierror.Error
	for _, candidate := range encoders {
		params.Encoder = candidate
		encoder, err := factory.NewVideoEncoder(ctx, params)
		if err != nil {
			logger.Warnf(ctx, "unable to initialize video encoder %s, trying the next one: %v", candidate, err)
			mErr = multierror.Append(mErr, err)
			continue
		}
		if err := s.scope.Add(ctx, "video encoder "+candidate.Name, encoder); err != nil {
			return nil, err
		}
		return encoder, nil
	}
	return nil, fmt.Errorf("unable to initialize any of %d %s encoders: %w: %w", len(encoders), params.Config.Codec, types.ErrEncoderInitFailed, mErr.ErrorOrNil())
}

func evenDimensions(d types.Dimensions) types.Dimensions {
	return types.Dimensions{
		Width:  d.Width &^ 1,
		Height: d.Height &^ 1,
	}
}

// serve runs the pipeline in the background; onEnd is called after the
// resources are released and before waiters are woken up.
func (s *session) serve(
	ctx context.Context,
	onEnd func(context.Context, *session, error),
) {
	ctx = xcontext.DetachDone(ctx)
	observability.Go(ctx, func(ctx context.Context) {
		err := s.pipeline.Run(ctx, s.stopCh)
		if releaseErr := s.release(ctx); releaseErr != nil && err == nil {
			err = fmt.Errorf("unable to release the session resources: %w", releaseErr)
		}
		onEnd(ctx, s, err)
		s.err = err
		close(s.doneCh)
	})
}
