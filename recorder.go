// Package screenrec records a window or the whole desktop, together with
// desktop and microphone audio, into an MP4 file while keeping the last
// seconds of encoded media in memory for instant replays.
package screenrec

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/internal"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
)

type Recorder struct {
	config   types.Config
	factory  types.Factory
	slot     *Slot
	target   types.CaptureTarget
	encoders []types.VideoEncoder

	locker  xsync.Mutex
	state   types.State
	session *session
	lastErr error
}

// New validates the configuration and selects the video encoder; it does
// not acquire any capture resources.
func New(
	ctx context.Context,
	cfg types.Config,
	opts ...Option,
) (_ret *Recorder, _err error) {
	ctx = withDebugLogging(ctx, cfg)
	logger.Debugf(ctx, "New")
	defer func() { logger.Debugf(ctx, "/New: %v", _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Recorder{
		config: cfg,
		slot:   DefaultSlot(),
		target: types.DisplayTarget(""),
		state:  types.StateIdle,
	}
	Options(opts).apply(r)

	if r.factory == nil {
		f, err := DefaultFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the platform backend: %w", err)
		}
		r.factory = f
	}

	available, err := r.factory.VideoEncoders(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate video encoders: %w: %w", types.ErrEncoderInitFailed, err)
	}
	r.encoders = types.VideoEncodersOfCodec(available, cfg.Video.Codec)
	if len(r.encoders) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.Video.Codec, types.ErrEncoderNotFound)
	}
	logger.Debugf(ctx, "preferred video encoder: %s", r.encoders[0])
	return r, nil
}

func withDebugLogging(ctx context.Context, cfg types.Config) context.Context {
	if !cfg.DebugMode {
		return ctx
	}
	l := logger.FromCtx(ctx)
	if l.Level() >= logger.LevelDebug {
		return ctx
	}
	return logger.CtxWithLogger(ctx, l.WithLevel(logger.LevelDebug))
}

func (r *Recorder) Config() types.Config {
	return r.config
}

// VideoEncoder is the most preferred encoder; the session falls back to
// the next ones of the same codec if it cannot be initialized.
func (r *Recorder) VideoEncoder() types.VideoEncoder {
	return r.encoders[0]
}

func (r *Recorder) State(ctx context.Context) types.State {
	return xsync.DoR1(ctx, &r.locker, func() types.State {
		return r.state
	})
}

// Err is the error that moved the recorder into the failed state, if any.
func (r *Recorder) Err(ctx context.Context) error {
	return xsync.DoR1(ctx, &r.locker, func() error {
		return r.lastErr
	})
}

func (r *Recorder) setState(
	ctx context.Context,
	next types.State,
) {
	internal.Assert(ctx, r.state.CanTransitionTo(next), "invalid transition %s -> %s", r.state, next)
	logger.Debugf(ctx, "state: %s -> %s", r.state, next)
	r.state = next
}

// WithProcessName binds the recorder to the window of the given process.
func (r *Recorder) WithProcessName(
	ctx context.Context,
	processName string,
) error {
	return r.WithTarget(ctx, types.ProcessTarget(processName))
}

func (r *Recorder) WithWindowTitle(
	ctx context.Context,
	title string,
) error {
	return r.WithTarget(ctx, types.WindowTarget(title))
}

func (r *Recorder) WithTarget(
	ctx context.Context,
	target types.CaptureTarget,
) error {
	return xsync.DoR1(ctx, &r.locker, func() error {
		if r.state != types.StateIdle {
			return fmt.Errorf("the capture target can only be changed before the start, the recorder is %s: %w", r.state, types.ErrInvalidState)
		}
		r.target = target
		return nil
	})
}

func (r *Recorder) Target(ctx context.Context) types.CaptureTarget {
	return xsync.DoR1(ctx, &r.locker, func() types.CaptureTarget {
		return r.target
	})
}

func (r *Recorder) StartRecording(ctx context.Context) (_err error) {
	ctx = withDebugLogging(ctx, r.config)
	logger.Debugf(ctx, "StartRecording")
	defer func() { logger.Debugf(ctx, "/StartRecording: %v", _err) }()

	s, err := xsync.DoR2(ctx, &r.locker, func() (*session, error) {
		switch r.state {
		case types.StateIdle:
		case types.StateStarting, types.StateRecording, types.StateStopping:
			return nil, types.ErrAlreadyRecording
		default:
			return nil, fmt.Errorf("the recorder is %s, reset it first: %w", r.state, types.ErrInvalidState)
		}
		s := newSession(r.target)
		token, err := r.slot.Acquire(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.token = token
		r.setState(ctx, types.StateStarting)
		return s, nil
	})
	if err != nil {
		return err
	}

	if err := s.start(ctx, r.factory, r.config, r.encoders); err != nil {
		s.release(ctx)
		r.locker.Do(ctx, func() {
			r.lastErr = err
			r.setState(ctx, types.StateFailed)
		})
		return err
	}

	r.locker.Do(ctx, func() {
		r.session = s
		r.lastErr = nil
		r.setState(ctx, types.StateRecording)
	})
	s.serve(ctx, r.onSessionEnd)
	return nil
}

// onSessionEnd is called once the session released all its resources.
func (r *Recorder) onSessionEnd(
	ctx context.Context,
	s *session,
	err error,
) {
	r.locker.Do(ctx, func() {
		internal.Assert(ctx, r.session == s, "unexpected session %s", s.ID)
		switch r.state {
		case types.StateStopping:
			r.lastErr = err
			r.setState(ctx, types.StateStopped)
		case types.StateRecording:
			if err == nil {
				err = fmt.Errorf("the capture ended unexpectedly: %w", types.ErrCaptureSessionLost)
			}
			logger.Errorf(ctx, "the recording session %s failed: %v", s.ID, err)
			r.lastErr = err
			r.setState(ctx, types.StateFailed)
		default:
			internal.Assert(ctx, false, "session ended in state %s", r.state)
		}
	})
}

// StopRecording stops the capture, drains and finalizes the output file
// and releases every resource; it returns after all of that is done.
func (r *Recorder) StopRecording(ctx context.Context) (_err error) {
	ctx = withDebugLogging(ctx, r.config)
	logger.Debugf(ctx, "StopRecording")
	defer func() { logger.Debugf(ctx, "/StopRecording: %v", _err) }()

	s, err := xsync.DoR2(ctx, &r.locker, func() (*session, error) {
		switch r.state {
		case types.StateRecording:
			r.setState(ctx, types.StateStopping)
			return r.session, nil
		case types.StateStopping:
			return r.session, nil
		case types.StateFailed:
			if r.lastErr != nil {
				return nil, r.lastErr
			}
			return nil, types.ErrNotRecording
		case types.StateStarting:
			return nil, fmt.Errorf("the recording is still starting: %w", types.ErrInvalidState)
		default:
			return nil, types.ErrNotRecording
		}
	})
	if err != nil {
		return err
	}

	s.requestStop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
	}
	return s.Err()
}

// SaveReplay writes the content of the replay buffer into a new file and
// returns its path. If path already exists, a numeric suffix is added.
func (r *Recorder) SaveReplay(
	ctx context.Context,
	path string,
) (_ret string, _err error) {
	ctx = withDebugLogging(ctx, r.config)
	logger.Debugf(ctx, "SaveReplay(%s)", path)
	defer func() { logger.Debugf(ctx, "/SaveReplay(%s): %s, %v", path, _ret, _err) }()

	if !r.config.ReplayEnabled() {
		return "", types.ErrReplayDisabled
	}
	s, err := xsync.DoR2(ctx, &r.locker, func() (*session, error) {
		if !r.state.IsActive() {
			return nil, types.ErrNotRecording
		}
		return r.session, nil
	})
	if err != nil {
		return "", err
	}
	return s.saveReplay(ctx, r.factory, path)
}

// Reset brings a stopped or failed recorder back to idle, so it can be started again.
func (r *Recorder) Reset(ctx context.Context) error {
	return xsync.DoR1(ctx, &r.locker, func() error {
		if !r.state.IsTerminal() {
			return fmt.Errorf("only a stopped or failed recorder can be reset, the recorder is %s: %w", r.state, types.ErrInvalidState)
		}
		r.session = nil
		r.lastErr = nil
		r.setState(ctx, types.StateIdle)
		return nil
	})
}

// Close stops the recording if there is one.
func (r *Recorder) Close(ctx context.Context) error {
	if !r.State(ctx).IsActive() {
		return nil
	}
	return r.StopRecording(ctx)
}

type Stats struct {
	State     types.State
	SessionID string
	Pipeline  PipelineStats
	Replay    ReplayStats
}

func (r *Recorder) Stats(ctx context.Context) Stats {
	state, s := xsync.DoR2(ctx, &r.locker, func() (types.State, *session) {
		return r.state, r.session
	})
	stats := Stats{State: state}
	if s != nil {
		stats.SessionID = s.ID
		stats.Pipeline = s.pipeline.Stats()
		if s.replay != nil {
			stats.Replay = s.replay.Stats(ctx)
		}
	}
	return stats
}
