package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const defaultFPS = 30

// Server keeps at most one recorder; Stop discards it, so the next Start
// creates a fresh one.
type Server struct {
	// Options are passed to every recorder created by Start.
	Options []screenrec.Option
	// Configure, if set, may adjust the configuration built from the request.
	Configure func(*screenrec.ConfigBuilder)

	ctx      context.Context
	locker   xsync.Mutex
	recorder *screenrec.Recorder
}

var _ ControlServer = (*Server)(nil)

// NewServer uses ctx for logging and as the parent of the recordings.
func NewServer(ctx context.Context, opts ...screenrec.Option) *Server {
	return &Server{
		Options: opts,
		ctx:     ctx,
	}
}

func (srv *Server) withLogger(ctx context.Context) context.Context {
	return logger.CtxWithLogger(ctx, logger.FromCtx(srv.ctx))
}

func statusFromError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, types.ErrAlreadyRecording):
		code = codes.AlreadyExists
	case errors.Is(err, types.ErrNotRecording), errors.Is(err, types.ErrInvalidState):
		code = codes.FailedPrecondition
	case errors.Is(err, types.ErrConfigurationInvalid):
		code = codes.InvalidArgument
	case errors.Is(err, types.ErrTargetNotFound):
		code = codes.NotFound
	case errors.Is(err, types.ErrDeviceUnavailable), errors.Is(err, types.ErrCaptureSessionLost):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

func (srv *Server) newRecorder(
	ctx context.Context,
	settings StartSettings,
) (*screenrec.Recorder, error) {
	fps := settings.FPS
	if fps == 0 {
		fps = defaultFPS
	}
	b := screenrec.NewConfigBuilder().
		FPS(int(fps), 1).
		OutputPath(settings.OutputPath).
		CaptureAudio(settings.RecordAudio)
	if settings.RecordAudio {
		b.AudioSource(screenrec.AudioSourceDesktop)
	}
	if srv.Configure != nil {
		srv.Configure(b)
	}
	cfg, err := b.Build()
	if err != nil {
		return nil, err
	}

	r, err := screenrec.New(ctx, cfg, srv.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}
	if settings.ProcessName != "" {
		if err := r.WithProcessName(ctx, settings.ProcessName); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (srv *Server) Start(
	ctx context.Context,
	in *structpb.Struct,
) (_ret *wrapperspb.StringValue, _err error) {
	ctx = srv.withLogger(ctx)
	logger.Debugf(ctx, "Start")
	defer func() { logger.Debugf(ctx, "/Start: %v", _err) }()

	settings, err := StartSettingsFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return xsync.DoR2(ctx, &srv.locker, func() (*wrapperspb.StringValue, error) {
		if srv.recorder != nil {
			return nil, status.Error(codes.AlreadyExists, "Recording already in progress")
		}
		r, err := srv.newRecorder(ctx, settings)
		if err != nil {
			return nil, statusFromError(err)
		}
		if err := r.StartRecording(ctx); err != nil {
			return nil, statusFromError(fmt.Errorf("failed to start recording: %w", err))
		}
		srv.recorder = r
		return wrapperspb.String("Recording started successfully"), nil
	})
}

func (srv *Server) Stop(
	ctx context.Context,
	_ *structpb.Struct,
) (_ret *wrapperspb.StringValue, _err error) {
	ctx = srv.withLogger(ctx)
	logger.Debugf(ctx, "Stop")
	defer func() { logger.Debugf(ctx, "/Stop: %v", _err) }()

	return xsync.DoR2(ctx, &srv.locker, func() (*wrapperspb.StringValue, error) {
		r := srv.recorder
		if r == nil {
			return nil, status.Error(codes.FailedPrecondition, "No recording in progress")
		}
		srv.recorder = nil
		if err := r.StopRecording(ctx); err != nil {
			return nil, statusFromError(fmt.Errorf("failed to stop recording: %w", err))
		}
		return wrapperspb.String("Recording stopped successfully"), nil
	})
}

func (srv *Server) SaveReplay(
	ctx context.Context,
	in *structpb.Struct,
) (_ret *wrapperspb.StringValue, _err error) {
	ctx = srv.withLogger(ctx)
	logger.Debugf(ctx, "SaveReplay")
	defer func() { logger.Debugf(ctx, "/SaveReplay: %v", _err) }()

	path, err := stringField(in, fieldPath)
	if err != nil || path == "" {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("field '%s' must be a non-empty string", fieldPath))
	}

	return xsync.DoR2(ctx, &srv.locker, func() (*wrapperspb.StringValue, error) {
		if srv.recorder == nil {
			return nil, status.Error(codes.FailedPrecondition, "No active recorder found")
		}
		written, err := srv.recorder.SaveReplay(ctx, path)
		if err != nil {
			return nil, statusFromError(fmt.Errorf("failed to save replay: %w", err))
		}
		return wrapperspb.String(fmt.Sprintf("Replay saved to %s", written)), nil
	})
}

// Close stops the recording if there is one.
func (srv *Server) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &srv.locker, func() error {
		r := srv.recorder
		srv.recorder = nil
		if r == nil {
			return nil
		}
		return r.Close(ctx)
	})
}
