package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/screenrec/internal/fakebackend"
	"github.com/xaionaro-go/screenrec/replay"
	"github.com/xaionaro-go/screenrec/synchronizer"
	"github.com/xaionaro-go/screenrec/types"
)

type testPipeline struct {
	*Pipeline
	factory *fakebackend.Factory
	path    string
}

func newTestPipeline(t *testing.T, cfg fakebackend.Config) *testPipeline {
	ctx := context.Background()
	factory := fakebackend.New(cfg)
	clock := types.NewWallClock()
	frameRate := types.Rational{Num: 30, Den: 1}

	videoInput, err := factory.NewVideoInput(ctx, types.VideoInputParams{
		Target:    types.ResolvedTarget{Target: types.DisplayTarget("")},
		FrameRate: frameRate,
		Clock:     clock,
	})
	require.NoError(t, err)
	audioInput, err := factory.NewAudioInput(ctx, types.AudioInputParams{
		Origin:     types.AudioOriginDesktop,
		SampleRate: 48000,
		Channels:   2,
		Volume:     1,
		Clock:      clock,
	})
	require.NoError(t, err)
	videoEncoder, err := factory.NewVideoEncoder(ctx, types.VideoEncoderParams{
		Encoder:          types.VideoEncoder{Name: "libx264", Codec: types.VideoCodecH264},
		InputSize:        videoInput.Size(),
		OutputSize:       videoInput.Size(),
		FrameRate:        frameRate,
		KeyframeInterval: time.Second,
	})
	require.NoError(t, err)
	audioEncoder, err := factory.NewAudioEncoder(ctx, types.AudioEncoderParams{
		SampleRate: 48000,
		Channels:   2,
		Config:     types.EncodeAudioConfig{Codec: types.AudioCodecAAC},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.mp4")
	output, err := factory.NewOutput(ctx, path, []types.StreamConfig{
		videoEncoder.StreamConfig(),
		audioEncoder.StreamConfig(),
	})
	require.NoError(t, err)

	sync, err := synchronizer.New(synchronizer.Config{
		FrameRate:    frameRate,
		SampleRate:   48000,
		Channels:     2,
		AudioOrigins: []types.AudioOrigin{types.AudioOriginDesktop},
	}, clock)
	require.NoError(t, err)

	t.Cleanup(func() {
		for _, c := range []interface{ Close() error }{output, audioEncoder, videoEncoder, audioInput, videoInput} {
			_ = c.Close()
		}
		require.Zero(t, factory.OpenHandles())
	})

	return &testPipeline{
		Pipeline: &Pipeline{
			VideoInput:   videoInput,
			AudioInputs:  []types.AudioInput{audioInput},
			Synchronizer: sync,
			VideoEncoder: videoEncoder,
			AudioEncoder: audioEncoder,
			Output:       output,
			Replay:       replay.NewBuffer(10 * time.Second),
		},
		factory: factory,
		path:    path,
	}
}

func requireMonotonic(t *testing.T, chunks []types.EncodedChunk) {
	for i := 1; i < len(chunks); i++ {
		require.Greater(t, chunks[i].PTS, chunks[i-1].PTS, "chunk #%d", i)
	}
}

func TestPipelineStop(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelFn()

	p := newTestPipeline(t, fakebackend.Config{})
	stopCh := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx, stopCh)
	}()

	time.Sleep(time.Second)
	close(stopCh)
	require.NoError(t, <-errCh)

	c, err := fakebackend.ReadContainer(p.path)
	require.NoError(t, err)
	require.True(t, c.Finalized)
	require.True(t, c.HasStream(types.StreamTagVideo))
	require.True(t, c.HasStream(types.StreamTagAudio))

	video := c.StreamChunks(types.StreamTagVideo)
	audio := c.StreamChunks(types.StreamTagAudio)
	require.NotEmpty(t, video)
	require.NotEmpty(t, audio)
	require.True(t, video[0].KeyFrame)
	requireMonotonic(t, video)
	requireMonotonic(t, audio)
	require.LessOrEqual(t, c.Duration(), time.Second+200*time.Millisecond)

	stats := p.Stats()
	require.Equal(t, uint64(len(video)), stats.VideoChunks)
	require.Equal(t, uint64(len(audio)), stats.AudioChunks)
	require.False(t, p.Replay.Snapshot(ctx).IsEmpty())
}

func TestPipelineCaptureLost(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelFn()

	p := newTestPipeline(t, fakebackend.Config{LoseVideoAfter: 10})
	err := p.Run(ctx, make(chan struct{}))
	require.ErrorIs(t, err, types.ErrCaptureSessionLost)

	c, err := fakebackend.ReadContainer(p.path)
	require.NoError(t, err)
	require.True(t, c.Finalized, "the output must be finalized on a best-effort basis")
}

func TestPipelineIncomplete(t *testing.T) {
	p := &Pipeline{}
	require.Error(t, p.Run(context.Background(), nil))
}
