package synchronizer

import (
	"sync/atomic"
)

type Stats struct {
	VideoFramesIn      uint64
	VideoUnitsOut      uint64
	VideoDuplicated    uint64
	VideoDropped       uint64
	VideoQueueDropped  uint64
	AudioBlocksIn      uint64
	AudioBlocksDropped uint64
	AudioQueueDropped  uint64
	AudioPaddedSamples uint64
	AudioSamplesOut    uint64
}

type commonsStats struct {
	VideoFramesIn      atomic.Uint64
	VideoUnitsOut      atomic.Uint64
	VideoDuplicated    atomic.Uint64
	VideoDropped       atomic.Uint64
	VideoQueueDropped  atomic.Uint64
	AudioBlocksIn      atomic.Uint64
	AudioBlocksDropped atomic.Uint64
	AudioQueueDropped  atomic.Uint64
	AudioPaddedSamples atomic.Uint64
	AudioSamplesOut    atomic.Uint64
}

func (stats *commonsStats) Convert() Stats {
	return Stats{
		VideoFramesIn:      stats.VideoFramesIn.Load(),
		VideoUnitsOut:      stats.VideoUnitsOut.Load(),
		VideoDuplicated:    stats.VideoDuplicated.Load(),
		VideoDropped:       stats.VideoDropped.Load(),
		VideoQueueDropped:  stats.VideoQueueDropped.Load(),
		AudioBlocksIn:      stats.AudioBlocksIn.Load(),
		AudioBlocksDropped: stats.AudioBlocksDropped.Load(),
		AudioQueueDropped:  stats.AudioQueueDropped.Load(),
		AudioPaddedSamples: stats.AudioPaddedSamples.Load(),
		AudioSamplesOut:    stats.AudioSamplesOut.Load(),
	}
}
