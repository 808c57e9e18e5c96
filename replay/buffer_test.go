package replay

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/screenrec/types"
)

func videoChunk(pts time.Duration, key bool) types.EncodedChunk {
	return types.EncodedChunk{
		Tag:      types.StreamTagVideo,
		PTS:      pts,
		DTS:      pts,
		Duration: time.Second / 30,
		KeyFrame: key,
		Data:     []byte{1, 2, 3},
	}
}

func audioChunk(pts time.Duration) types.EncodedChunk {
	return types.EncodedChunk{
		Tag:      types.StreamTagAudio,
		PTS:      pts,
		DTS:      pts,
		Duration: 1024 * time.Second / 48000,
		KeyFrame: true,
		Data:     []byte{4, 5},
	}
}

func TestBufferSpanNeverExceedsWindow(t *testing.T) {
	ctx := context.Background()
	window := 2 * time.Second
	b := NewBuffer(window)
	rng := rand.New(rand.NewSource(1))

	var videoPTS, audioPTS time.Duration
	for i := 0; i < 20000; i++ {
		if rng.Intn(2) == 0 {
			videoPTS += time.Duration(rng.Intn(50)) * time.Millisecond
			b.Append(ctx, videoChunk(videoPTS, rng.Intn(30) == 0))
		} else {
			audioPTS += time.Duration(rng.Intn(30)) * time.Millisecond
			b.Append(ctx, audioChunk(audioPTS))
		}
		require.LessOrEqual(t, b.Span(ctx), window)
	}

	stats := b.Stats(ctx)
	require.NotZero(t, stats.Chunks)
	require.LessOrEqual(t, stats.Span, window)
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(time.Second)
	interval := time.Second / 30
	for i := 0; i < 90; i++ {
		b.Append(ctx, videoChunk(time.Duration(i)*interval, i%30 == 0))
	}

	snapshot := b.Snapshot(ctx)
	require.False(t, snapshot.IsEmpty())
	require.LessOrEqual(t, snapshot.Duration(), time.Second)
	require.Equal(t, 89*interval+interval, snapshot.End())
}

func TestSnapshotStartsAtKeyFrame(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(10 * time.Second)
	interval := time.Second / 30
	for i := 0; i < 60; i++ {
		pts := time.Duration(i) * interval
		b.Append(ctx, videoChunk(pts, i == 10 || i == 40))
		b.Append(ctx, audioChunk(pts))
	}

	snapshot := b.Snapshot(ctx)
	require.Equal(t, types.StreamTagVideo, snapshot.Chunks[0].Tag)
	require.True(t, snapshot.Chunks[0].KeyFrame)
	require.Equal(t, 10*interval, snapshot.Start())
	for i := 1; i < len(snapshot.Chunks); i++ {
		require.GreaterOrEqual(t, snapshot.Chunks[i].DTS, snapshot.Chunks[i-1].DTS)
	}

	rebased := snapshot.Rebased()
	require.Equal(t, time.Duration(0), rebased.Start())
	require.Equal(t, snapshot.Duration(), rebased.Duration())
	require.Equal(t, 10*interval, snapshot.Chunks[0].PTS, "the original must stay intact")
}

func TestSnapshotWithoutKeyFrameHasNoVideo(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(10 * time.Second)
	for i := 0; i < 10; i++ {
		pts := time.Duration(i) * 10 * time.Millisecond
		b.Append(ctx, videoChunk(pts, false))
		b.Append(ctx, audioChunk(pts))
	}
	snapshot := b.Snapshot(ctx)
	require.Len(t, snapshot.Chunks, 10)
	for _, c := range snapshot.Chunks {
		require.Equal(t, types.StreamTagAudio, c.Tag)
	}
}

func TestEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(time.Second)
	snapshot := b.Snapshot(ctx)
	require.True(t, snapshot.IsEmpty())
	require.Zero(t, snapshot.Duration())
	require.Zero(t, b.Span(ctx))
}

func TestSnapshotIsIndependentFromLaterAppends(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(time.Second)
	b.Append(ctx, videoChunk(0, true))
	snapshot := b.Snapshot(ctx)
	for i := 1; i < 100; i++ {
		b.Append(ctx, videoChunk(time.Duration(i)*time.Second/30, i%30 == 0))
	}
	require.Len(t, snapshot.Chunks, 1)
	require.Equal(t, time.Duration(0), snapshot.Chunks[0].PTS)
}
