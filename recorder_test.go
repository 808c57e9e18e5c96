package screenrec

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/screenrec/internal/fakebackend"
	"github.com/xaionaro-go/screenrec/types"
)

type testRecorder struct {
	*Recorder
	factory *fakebackend.Factory
	slot    *Slot
	dir     string
	path    string
}

func newTestRecorder(
	t *testing.T,
	fakeCfg fakebackend.Config,
	configure func(b *ConfigBuilder),
	opts ...Option,
) *testRecorder {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.mp4")
	b := NewConfigBuilder().OutputPath(path)
	if configure != nil {
		configure(b)
	}
	cfg, err := b.Build()
	require.NoError(t, err)

	factory := fakebackend.New(fakeCfg)
	slot := NewSlot()
	opts = append([]Option{OptionFactory{factory}, OptionSlot{slot}}, opts...)
	r, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close(context.Background())
	})
	return &testRecorder{
		Recorder: r,
		factory:  factory,
		slot:     slot,
		dir:      dir,
		path:     path,
	}
}

func testCtx(t *testing.T) context.Context {
	ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancelFn)
	return ctx
}

func requireReleased(t *testing.T, r *testRecorder) {
	require.Zero(t, r.factory.OpenHandles())
	require.Empty(t, r.slot.Owner(context.Background()))
}

func TestRecorderStartStop(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, nil)
	require.Equal(t, StateIdle, r.State(ctx))

	startedAt := time.Now()
	require.NoError(t, r.StartRecording(ctx))
	require.Equal(t, StateRecording, r.State(ctx))
	require.NotEmpty(t, r.slot.Owner(ctx))

	time.Sleep(time.Second)
	require.NoError(t, r.StopRecording(ctx))
	elapsed := time.Since(startedAt)
	require.Equal(t, StateStopped, r.State(ctx))
	requireReleased(t, r)

	c, err := fakebackend.ReadContainer(r.path)
	require.NoError(t, err)
	require.True(t, c.Finalized)
	require.True(t, c.HasStream(types.StreamTagVideo))
	require.True(t, c.HasStream(types.StreamTagAudio))
	require.NotEmpty(t, c.StreamChunks(types.StreamTagVideo))
	require.NotEmpty(t, c.StreamChunks(types.StreamTagAudio))
	require.LessOrEqual(t, c.Duration(), elapsed+r.Config().FrameRate.Interval())

	require.ErrorIs(t, r.StopRecording(ctx), ErrNotRecording)
}

func TestRecorderDoubleStart(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, nil)

	require.NoError(t, r.StartRecording(ctx))
	require.ErrorIs(t, r.StartRecording(ctx), ErrAlreadyRecording)
	require.Equal(t, StateRecording, r.State(ctx))

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, r.StopRecording(ctx))

	c, err := fakebackend.ReadContainer(r.path)
	require.NoError(t, err)
	require.True(t, c.Finalized)
	require.NotEmpty(t, c.StreamChunks(types.StreamTagVideo))
	requireReleased(t, r)
}

func TestRecorderNotRecording(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, nil)

	require.ErrorIs(t, r.StopRecording(ctx), ErrNotRecording)
	_, err := r.SaveReplay(ctx, filepath.Join(r.dir, "clip.mp4"))
	require.ErrorIs(t, err, ErrNotRecording)
	require.Equal(t, StateIdle, r.State(ctx))
	require.Empty(t, r.factory.Created())

	_, err = os.Stat(r.path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRecorderCaptureLost(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{LoseVideoAfter: 10}, nil)

	require.NoError(t, r.StartRecording(ctx))
	require.Eventually(t, func() bool {
		return r.State(ctx) == StateFailed
	}, 10*time.Second, 10*time.Millisecond)

	require.ErrorIs(t, r.Err(ctx), ErrCaptureSessionLost)
	require.ErrorIs(t, r.StopRecording(ctx), ErrCaptureSessionLost)
	requireReleased(t, r)

	c, err := fakebackend.ReadContainer(r.path)
	require.NoError(t, err)
	require.True(t, c.Finalized)

	require.ErrorIs(t, r.StartRecording(ctx), ErrInvalidState)
	require.NoError(t, r.Reset(ctx))
	require.Equal(t, StateIdle, r.State(ctx))
	require.NoError(t, r.Err(ctx))
}

func TestRecorderStartFailureReleasesEverything(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{
		FailAudioOrigins: []types.AudioOrigin{types.AudioOriginMicrophone},
	}, func(b *ConfigBuilder) {
		b.AudioSource(AudioSourceBoth)
	})

	err := r.StartRecording(ctx)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	require.Equal(t, StateFailed, r.State(ctx))
	requireReleased(t, r)
	require.Contains(t, r.factory.Created(), "video-input")
	require.Contains(t, r.factory.Created(), "audio-input-desktop")

	require.ErrorIs(t, r.StopRecording(ctx), ErrDeviceUnavailable)
	require.NoError(t, r.Reset(ctx))
	require.Equal(t, StateIdle, r.State(ctx))
}

func TestRecorderUnknownMicrophone(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, func(b *ConfigBuilder) {
		b.CaptureMicrophone(true).MicrophoneDevice("no-such-mic")
	})

	require.ErrorIs(t, r.StartRecording(ctx), ErrDeviceUnavailable)
	requireReleased(t, r)
}

func TestRecorderEncoderFallback(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{
		FailEncoders: []string{"h264_nvenc"},
	}, nil)
	require.Equal(t, "h264_nvenc", r.VideoEncoder().Name)

	require.NoError(t, r.StartRecording(ctx))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, r.StopRecording(ctx))

	c, err := fakebackend.ReadContainer(r.path)
	require.NoError(t, err)
	require.Equal(t, "libx264", c.Streams[0].CodecName)
	requireReleased(t, r)
}

func TestRecorderAllEncodersFail(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{
		FailEncoders: []string{"h264_nvenc", "libx264"},
	}, nil)

	require.ErrorIs(t, r.StartRecording(ctx), ErrEncoderInitFailed)
	require.Equal(t, StateFailed, r.State(ctx))
	requireReleased(t, r)
}

func TestNewWithoutEncoderOfCodec(t *testing.T) {
	cfg, err := NewConfigBuilder().VideoCodec(VideoEncoderTypeAV1).Build()
	require.NoError(t, err)

	_, err = New(context.Background(), cfg, OptionFactory{fakebackend.New(fakebackend.Config{})}, OptionSlot{NewSlot()})
	require.ErrorIs(t, err, types.ErrEncoderNotFound)
	require.ErrorIs(t, err, ErrEncoderInitFailed)
}

func TestRecorderSaveReplay(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, func(b *ConfigBuilder) {
		b.ReplayWindow(10 * time.Second)
	})
	require.NoError(t, r.StartRecording(ctx))

	clipPath := filepath.Join(r.dir, "clips", "clip.mp4")
	time.Sleep(time.Second)
	first, err := r.SaveReplay(ctx, clipPath)
	require.NoError(t, err)
	require.Equal(t, clipPath, first)

	time.Sleep(time.Second)
	second, err := r.SaveReplay(ctx, clipPath)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(r.dir, "clips", "clip-1.mp4"), second)

	require.NoError(t, r.StopRecording(ctx))
	requireReleased(t, r)

	firstClip, err := fakebackend.ReadContainer(first)
	require.NoError(t, err)
	secondClip, err := fakebackend.ReadContainer(second)
	require.NoError(t, err)
	for _, c := range []*fakebackend.Container{firstClip, secondClip} {
		require.True(t, c.Finalized)
		require.NotEmpty(t, c.Chunks)
		require.Zero(t, c.Start())
		require.LessOrEqual(t, c.Duration(), r.Config().ReplayWindow)
		video := c.StreamChunks(types.StreamTagVideo)
		require.NotEmpty(t, video)
		require.True(t, video[0].KeyFrame)
	}
	require.Greater(t, secondClip.End(), firstClip.End())

	matches, err := filepath.Glob(filepath.Join(r.dir, "clips", "*"+partialSuffix))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestRecorderSaveReplayRightAfterStart(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, nil)
	require.NoError(t, r.StartRecording(ctx))

	clipPath := filepath.Join(r.dir, "early.mp4")
	written, err := r.SaveReplay(ctx, clipPath)
	require.NoError(t, err)
	require.Equal(t, clipPath, written)

	clip, err := fakebackend.ReadContainer(written)
	require.NoError(t, err)
	require.True(t, clip.Finalized)
	require.Len(t, clip.Streams, 2)
	if video := clip.StreamChunks(types.StreamTagVideo); len(video) > 0 {
		require.True(t, video[0].KeyFrame)
		require.Zero(t, clip.Start())
	}
	require.LessOrEqual(t, clip.Duration(), time.Second)

	_, err = os.Stat(written + partialSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, r.StopRecording(ctx))
	requireReleased(t, r)
}

func TestRecorderReplayDisabled(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, func(b *ConfigBuilder) {
		b.ReplayWindow(0)
	})
	require.NoError(t, r.StartRecording(ctx))
	_, err := r.SaveReplay(ctx, filepath.Join(r.dir, "clip.mp4"))
	require.ErrorIs(t, err, ErrReplayDisabled)
	require.ErrorIs(t, err, ErrConfigurationInvalid)
	require.NoError(t, r.StopRecording(ctx))
}

func TestRecorderSharedSlot(t *testing.T) {
	ctx := testCtx(t)
	first := newTestRecorder(t, fakebackend.Config{}, nil)
	second := newTestRecorder(t, fakebackend.Config{}, nil, OptionSlot{first.slot})

	require.NoError(t, first.StartRecording(ctx))
	require.ErrorIs(t, second.StartRecording(ctx), ErrAlreadyRecording)
	require.Equal(t, StateIdle, second.State(ctx))
	require.Empty(t, second.factory.Created())

	require.NoError(t, first.StopRecording(ctx))
	require.NoError(t, second.StartRecording(ctx))
	require.NoError(t, second.StopRecording(ctx))
}

func TestRecorderTarget(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{KnownTargets: []string{"game.exe"}}, nil)

	require.NoError(t, r.WithProcessName(ctx, "unknown.exe"))
	require.ErrorIs(t, r.StartRecording(ctx), ErrTargetNotFound)
	requireReleased(t, r)
	require.NoError(t, r.Reset(ctx))

	require.NoError(t, r.WithProcessName(ctx, "game.exe"))
	require.Equal(t, types.ProcessTarget("game.exe"), r.Target(ctx))
	require.NoError(t, r.StartRecording(ctx))
	require.ErrorIs(t, r.WithProcessName(ctx, "other.exe"), ErrInvalidState)
	require.ErrorIs(t, r.WithWindowTitle(ctx, "Other"), ErrInvalidState)
	require.NoError(t, r.StopRecording(ctx))
}

func TestRecorderResolveTimeout(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{
		KnownTargets: []string{"slow.exe"},
		ResolveDelay: time.Second,
	}, func(b *ConfigBuilder) {
		b.AcquireTimeout(100 * time.Millisecond)
	}, OptionTarget(types.ProcessTarget("slow.exe")))

	startedAt := time.Now()
	err := r.StartRecording(ctx)
	require.ErrorIs(t, err, ErrTargetNotFound)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(startedAt), time.Second)
	requireReleased(t, r)
}

func TestRecorderFiveSeconds(t *testing.T) {
	if testing.Short() {
		t.Skip("records for five seconds")
	}
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, func(b *ConfigBuilder) {
		b.FPS(30, 1).CaptureAudio(true).AudioSource(AudioSourceDesktop)
	})

	require.NoError(t, r.StartRecording(ctx))
	time.Sleep(5 * time.Second)
	require.NoError(t, r.StopRecording(ctx))

	c, err := fakebackend.ReadContainer(r.path)
	require.NoError(t, err)
	require.Len(t, c.Streams, 2)
	require.True(t, c.HasStream(types.StreamTagVideo))
	require.True(t, c.HasStream(types.StreamTagAudio))
	require.GreaterOrEqual(t, c.Duration(), 4800*time.Millisecond)
	require.LessOrEqual(t, c.Duration(), 5500*time.Millisecond)
}

func TestRecorderStats(t *testing.T) {
	ctx := testCtx(t)
	r := newTestRecorder(t, fakebackend.Config{}, nil)
	require.Equal(t, StateIdle, r.Stats(ctx).State)

	require.NoError(t, r.StartRecording(ctx))
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, r.StopRecording(ctx))

	stats := r.Stats(ctx)
	require.Equal(t, StateStopped, stats.State)
	require.NotEmpty(t, stats.SessionID)
	require.NotZero(t, stats.Pipeline.VideoChunks)
	require.NotZero(t, stats.Replay.Chunks)
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")

	got, err := uniquePath(path)
	require.NoError(t, err)
	require.Equal(t, path, got)

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip-1.mp4"), nil, 0o644))
	got, err = uniquePath(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "clip-2.mp4"), got)
}

func TestPreferredVideoEncoderSelection(t *testing.T) {
	ctx := testCtx(t)
	f := fakebackend.New(fakebackend.Config{})

	enc, err := preferredVideoEncoder(ctx, f, VideoEncoderTypeH264)
	require.NoError(t, err)
	require.Equal(t, "h264_nvenc", enc.Name)

	enc, err = preferredVideoEncoder(ctx, f, VideoEncoderTypeHEVC)
	require.NoError(t, err)
	require.Equal(t, VideoEncoderTypeHEVC, enc.Codec)

	_, err = preferredVideoEncoder(ctx, f, VideoEncoderTypeAV1)
	require.ErrorIs(t, err, ErrEncoderInitFailed)

	devices, err := enumerateAudioInputDevices(ctx, f)
	require.NoError(t, err)
	require.Len(t, devices, 2)
}
