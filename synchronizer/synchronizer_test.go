package synchronizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/screenrec/types"
)

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	return c.now
}

func newTestSynchronizer(t *testing.T, origins ...types.AudioOrigin) *Synchronizer {
	s, err := New(Config{
		FrameRate:    types.Rational{Num: 30, Den: 1},
		SampleRate:   48000,
		Channels:     2,
		AudioOrigins: origins,
	}, &fakeClock{})
	require.NoError(t, err)
	return s
}

func frameAt(ts time.Duration) *types.Frame {
	return &types.Frame{Timestamp: ts, Width: 2, Height: 2, Stride: 8, Data: make([]byte, 16)}
}

func requireStrictlyIncreasing(t *testing.T, units []types.Unit) {
	for i := 1; i < len(units); i++ {
		require.Greater(t, units[i].PTS, units[i-1].PTS, "unit #%d", i)
	}
}

func TestVideoSteadyRate(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t)
	interval := time.Second / 30

	var units []types.Unit
	for i := 0; i < 90; i++ {
		units = append(units, s.PushVideo(ctx, frameAt(time.Duration(i)*interval+time.Millisecond))...)
	}
	require.Len(t, units, 90)
	requireStrictlyIncreasing(t, units)
	for i, u := range units {
		require.Equal(t, time.Duration(i)*interval, u.PTS)
		require.False(t, u.Duplicate)
	}
}

func TestVideoTooFastSourceIsDecimated(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t)

	var units []types.Unit
	for i := 0; i < 240; i++ {
		units = append(units, s.PushVideo(ctx, frameAt(time.Duration(i)*time.Second/120))...)
	}
	requireStrictlyIncreasing(t, units)
	stats := s.Stats()
	require.NotZero(t, stats.VideoDropped)
	require.InDelta(t, 60, len(units), 4)
	require.Zero(t, stats.VideoDuplicated)
}

func TestVideoGapIsFilledWithDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t)
	interval := time.Second / 30

	var units []types.Unit
	for i := 0; i < 5; i++ {
		units = append(units, s.PushVideo(ctx, frameAt(time.Duration(i)*interval))...)
	}
	for i := 1; i <= 10; i++ {
		units = append(units, s.Tick(ctx, 4*interval+time.Duration(i)*interval)...)
	}
	units = append(units, s.PushVideo(ctx, frameAt(15*interval))...)

	requireStrictlyIncreasing(t, units)
	require.NotZero(t, s.Stats().VideoDuplicated)
	last := units[len(units)-1]
	require.False(t, last.Duplicate)
	require.InDelta(t, float64(15*interval), float64(last.PTS), float64(s.Config.DriftThreshold()))
	for _, u := range units[5 : len(units)-1] {
		require.True(t, u.Duplicate)
	}
}

func TestVideoFirstFrameStartsAtItsSlot(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t)
	interval := time.Second / 30

	units := s.PushVideo(ctx, frameAt(10*interval+time.Millisecond))
	require.Len(t, units, 1)
	require.Equal(t, 10*interval, units[0].PTS)
}

func audioAt(origin types.AudioOrigin, ts time.Duration, frames int, value float32) *types.AudioSample {
	samples := make([]float32, frames*2)
	for i := range samples {
		samples[i] = value
	}
	return &types.AudioSample{
		Timestamp:  ts,
		Origin:     origin,
		SampleRate: 48000,
		Channels:   2,
		Samples:    samples,
	}
}

func collectAudio(units []types.Unit) []float32 {
	var result []float32
	for _, u := range units {
		if u.Tag == types.StreamTagAudio {
			result = append(result, u.Audio.Samples...)
		}
	}
	return result
}

func TestAudioSingleTrackPassThrough(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, types.AudioOriginDesktop)

	var units []types.Unit
	for i := 0; i < 10; i++ {
		units = append(units, s.PushAudio(ctx, audioAt(types.AudioOriginDesktop, time.Duration(i)*10*time.Millisecond, 480, 0.25))...)
	}
	requireStrictlyIncreasing(t, units)
	samples := collectAudio(units)
	require.Len(t, samples, 10*480*2)
	for _, v := range samples {
		require.Equal(t, float32(0.25), v)
	}
	require.Equal(t, types.AudioOriginDesktop, units[0].Audio.Origin)
	require.Equal(t, time.Duration(0), units[0].PTS)
}

func TestAudioGapIsPaddedWithSilence(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, types.AudioOriginDesktop)

	units := s.PushAudio(ctx, audioAt(types.AudioOriginDesktop, 0, 480, 0.5))
	units = append(units, s.PushAudio(ctx, audioAt(types.AudioOriginDesktop, 500*time.Millisecond, 480, 0.5))...)

	samples := collectAudio(units)
	require.Len(t, samples, (24000+480)*2)
	require.Equal(t, float32(0), samples[480*2])
	require.Equal(t, float32(0.5), samples[len(samples)-1])
	require.Equal(t, uint64(24000-480), s.Stats().AudioPaddedSamples)
}

func TestAudioAheadOfClockIsDropped(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, types.AudioOriginDesktop)

	for i := 0; i < 100; i++ {
		s.PushAudio(ctx, audioAt(types.AudioOriginDesktop, 0, 480, 0.5))
	}
	require.NotZero(t, s.Stats().AudioBlocksDropped)
}

func TestAudioMixingWithSilentMicrophone(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, types.AudioOriginDesktop, types.AudioOriginMicrophone)

	var units []types.Unit
	for i := 0; i < 50; i++ {
		ts := time.Duration(i) * 10 * time.Millisecond
		units = append(units, s.PushAudio(ctx, audioAt(types.AudioOriginDesktop, ts, 480, 0.75))...)
		units = append(units, s.Tick(ctx, ts+10*time.Millisecond)...)
	}
	require.NotEmpty(t, units)
	requireStrictlyIncreasing(t, units)
	require.Equal(t, types.AudioOriginMixed, units[0].Audio.Origin)
	for _, v := range collectAudio(units) {
		require.Equal(t, float32(0.75), v)
	}

	units = units[:0]
	for i := 50; i < 60; i++ {
		ts := time.Duration(i) * 10 * time.Millisecond
		units = append(units, s.PushAudio(ctx, audioAt(types.AudioOriginMicrophone, ts, 480, 0.5))...)
		units = append(units, s.PushAudio(ctx, audioAt(types.AudioOriginDesktop, ts, 480, 0.75))...)
	}
	units = append(units, s.Flush(ctx)...)
	samples := collectAudio(units)
	require.NotEmpty(t, samples)
	require.Equal(t, float32(1), samples[len(samples)-1], "the sum must be clamped")
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue[int](2, nil)
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	require.False(t, q.Push(3))
	require.Equal(t, uint64(1), q.Dropped())
	q.Close()

	var got []int
	for v := range q.C() {
		got = append(got, v)
	}
	require.Equal(t, []int{2, 3}, got)
}

func TestServe(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	s, err := New(Config{
		FrameRate:    types.Rational{Num: 30, Den: 1},
		SampleRate:   48000,
		Channels:     2,
		AudioOrigins: []types.AudioOrigin{types.AudioOriginDesktop},
		SyncConfig:   types.SyncConfig{VideoQueueSize: 64},
	}, &fakeClock{})
	require.NoError(t, err)
	interval := time.Second / 30

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ctx)
	}()

	go func() {
		for i := 0; i < 30; i++ {
			s.VideoIn.Push(frameAt(time.Duration(i) * interval))
		}
		s.VideoIn.Close()
	}()
	go func() {
		q := s.AudioQueue(types.AudioOriginDesktop)
		for i := 0; i < 100; i++ {
			q.Push(audioAt(types.AudioOriginDesktop, time.Duration(i)*10*time.Millisecond, 480, 0.1))
		}
		q.Close()
	}()

	var videoUnits, audioUnits []types.Unit
	videoOut, audioOut := s.VideoOut, s.AudioOut
	for videoOut != nil || audioOut != nil {
		select {
		case u, ok := <-videoOut:
			if !ok {
				videoOut = nil
				continue
			}
			videoUnits = append(videoUnits, u)
		case u, ok := <-audioOut:
			if !ok {
				audioOut = nil
				continue
			}
			audioUnits = append(audioUnits, u)
		}
	}
	require.NoError(t, <-errCh)
	require.Len(t, videoUnits, 30)
	requireStrictlyIncreasing(t, videoUnits)
	requireStrictlyIncreasing(t, audioUnits)
	require.Len(t, collectAudio(audioUnits), 100*480*2)
}

func TestVideoQueueSizeFollowsFrameRate(t *testing.T) {
	for _, tc := range []struct {
		rate types.Rational
		size int
	}{
		{types.Rational{Num: 30, Den: 1}, 8},
		{types.Rational{Num: 60, Den: 1}, 15},
		{types.Rational{Num: 240, Den: 1}, 60},
		{types.Rational{Num: 1, Den: 1}, minVideoQueueSize},
	} {
		cfg := Config{FrameRate: tc.rate}
		require.Equal(t, tc.size, cfg.VideoQueueSize(), tc.rate.String())

		s, err := New(cfg, &fakeClock{})
		require.NoError(t, err)
		require.Equal(t, tc.size, s.VideoIn.Cap())
		require.Equal(t, tc.size, cap(s.VideoOut))
	}

	cfg := Config{
		FrameRate:  types.Rational{Num: 30, Den: 1},
		SyncConfig: types.SyncConfig{VideoQueueSize: 100},
	}
	require.Equal(t, 100, cfg.VideoQueueSize())
}
