package replay

import (
	"context"
	"sort"
	"time"

	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
)

// Buffer keeps the most recent encoded chunks of every stream, such that
// the span between the oldest chunk start and the newest chunk end never
// exceeds Window.
type Buffer struct {
	Window time.Duration

	locker  xsync.Mutex
	streams map[types.StreamTag][]types.EncodedChunk
	maxEnd  time.Duration
	bytes   int
}

func NewBuffer(window time.Duration) *Buffer {
	return &Buffer{
		Window:  window,
		streams: map[types.StreamTag][]types.EncodedChunk{},
	}
}

func (b *Buffer) Append(
	ctx context.Context,
	chunk types.EncodedChunk,
) {
	b.locker.Do(ctx, func() {
		b.appendLocked(chunk)
	})
}

func (b *Buffer) appendLocked(chunk types.EncodedChunk) {
	b.streams[chunk.Tag] = append(b.streams[chunk.Tag], chunk)
	b.bytes += len(chunk.Data)
	if end := chunk.End(); end > b.maxEnd || b.count() == 1 {
		b.maxEnd = end
	}
	for b.count() > 0 && b.maxEnd-b.minStart() > b.Window {
		b.evictOldest()
	}
}

func (b *Buffer) count() int {
	total := 0
	for _, chunks := range b.streams {
		total += len(chunks)
	}
	return total
}

func (b *Buffer) oldestTag() (types.StreamTag, bool) {
	var (
		found  bool
		result types.StreamTag
		oldest time.Duration
	)
	for tag, chunks := range b.streams {
		if len(chunks) == 0 {
			continue
		}
		if !found || chunks[0].PTS < oldest || (chunks[0].PTS == oldest && tag < result) {
			found = true
			result = tag
			oldest = chunks[0].PTS
		}
	}
	return result, found
}

func (b *Buffer) minStart() time.Duration {
	tag, ok := b.oldestTag()
	if !ok {
		return b.maxEnd
	}
	return b.streams[tag][0].PTS
}

func (b *Buffer) evictOldest() {
	tag, ok := b.oldestTag()
	if !ok {
		return
	}
	chunks := b.streams[tag]
	b.bytes -= len(chunks[0].Data)
	chunks[0] = types.EncodedChunk{}
	chunks = chunks[1:]
	if len(chunks) == 0 {
		delete(b.streams, tag)
		return
	}
	if cap(chunks) > 2*len(chunks)+64 {
		chunks = append(make([]types.EncodedChunk, 0, len(chunks)), chunks...)
	}
	b.streams[tag] = chunks
}

// Span is the duration currently covered by the buffer.
func (b *Buffer) Span(ctx context.Context) time.Duration {
	return xsync.DoR1(ctx, &b.locker, func() time.Duration {
		if b.count() == 0 {
			return 0
		}
		return b.maxEnd - b.minStart()
	})
}

func (b *Buffer) Stats(ctx context.Context) Stats {
	return xsync.DoR1(ctx, &b.locker, func() Stats {
		stats := Stats{
			Chunks: b.count(),
			Bytes:  b.bytes,
		}
		if stats.Chunks > 0 {
			stats.Span = b.maxEnd - b.minStart()
		}
		return stats
	})
}

type Stats struct {
	Chunks int
	Bytes  int
	Span   time.Duration
}

// Snapshot copies the current content, interleaved by DTS and starting at
// the first video keyframe so that the copy is decodable on its own.
func (b *Buffer) Snapshot(ctx context.Context) *Snapshot {
	var chunks []types.EncodedChunk
	b.locker.Do(ctx, func() {
		chunks = make([]types.EncodedChunk, 0, b.count())
		for _, streamChunks := range b.streams {
			chunks = append(chunks, streamChunks...)
		}
	})
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].DTS != chunks[j].DTS {
			return chunks[i].DTS < chunks[j].DTS
		}
		return chunks[i].Tag < chunks[j].Tag
	})
	return &Snapshot{Chunks: trimToKeyFrame(chunks)}
}

func trimToKeyFrame(chunks []types.EncodedChunk) []types.EncodedChunk {
	hasVideo := false
	for idx, chunk := range chunks {
		if chunk.Tag != types.StreamTagVideo {
			continue
		}
		hasVideo = true
		if !chunk.KeyFrame {
			continue
		}
		start := chunk.PTS
		result := make([]types.EncodedChunk, 0, len(chunks)-idx)
		for _, c := range chunks {
			if c.PTS >= start && (c.Tag != types.StreamTagVideo || c.DTS >= chunk.DTS) {
				result = append(result, c)
			}
		}
		return result
	}
	if !hasVideo {
		return chunks
	}

	// no keyframe: the video is not decodable, keep only the rest
	var result []types.EncodedChunk
	for _, c := range chunks {
		if c.Tag != types.StreamTagVideo {
			result = append(result, c)
		}
	}
	return result
}
