package replay

import (
	"time"

	"github.com/xaionaro-go/screenrec/types"
)

type Snapshot struct {
	Chunks []types.EncodedChunk
}

func (s *Snapshot) IsEmpty() bool {
	return len(s.Chunks) == 0
}

func (s *Snapshot) Start() time.Duration {
	if s.IsEmpty() {
		return 0
	}
	start := s.Chunks[0].PTS
	for _, c := range s.Chunks {
		start = min(start, c.PTS, c.DTS)
	}
	return start
}

func (s *Snapshot) End() time.Duration {
	var end time.Duration
	for _, c := range s.Chunks {
		end = max(end, c.End())
	}
	return end
}

func (s *Snapshot) Duration() time.Duration {
	if s.IsEmpty() {
		return 0
	}
	return s.End() - s.Start()
}

// Rebased returns a copy with timestamps shifted so the snapshot starts at zero.
func (s *Snapshot) Rebased() *Snapshot {
	offset := s.Start()
	result := &Snapshot{Chunks: make([]types.EncodedChunk, len(s.Chunks))}
	for idx, c := range s.Chunks {
		c.PTS -= offset
		c.DTS -= offset
		result.Chunks[idx] = c
	}
	return result
}
