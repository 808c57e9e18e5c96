package synchronizer

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
)

const (
	videoQueueSpan              = 250 * time.Millisecond
	minVideoQueueSize           = 2
	maxVideoQueueSize           = 64
	defaultAudioQueueSize       = 256
	defaultMaxDuplicatesPerTick = 4
	minDriftThreshold           = 60 * time.Millisecond
)

type Config struct {
	FrameRate    types.Rational
	SampleRate   int
	Channels     int
	AudioOrigins []types.AudioOrigin
	types.SyncConfig
}

func (cfg Config) DriftThreshold() time.Duration {
	if cfg.SyncConfig.DriftThreshold > 0 {
		return cfg.SyncConfig.DriftThreshold
	}
	return max(2*cfg.FrameRate.Interval(), minDriftThreshold)
}

func (cfg Config) VideoQueueSize() int {
	if cfg.SyncConfig.VideoQueueSize > 0 {
		return cfg.SyncConfig.VideoQueueSize
	}
	// raw frames are large, so only a short span of them is buffered
	num, den := int64(cfg.FrameRate.Num), int64(cfg.FrameRate.Den)
	if num <= 0 || den <= 0 {
		return minVideoQueueSize
	}
	spanMS := int64(videoQueueSpan / time.Millisecond)
	n := (num*spanMS + 1000*den - 1) / (1000 * den)
	return int(min(max(n, minVideoQueueSize), maxVideoQueueSize))
}

func (cfg Config) AudioQueueSize() int {
	if cfg.SyncConfig.AudioQueueSize > 0 {
		return cfg.SyncConfig.AudioQueueSize
	}
	return defaultAudioQueueSize
}

func (cfg Config) MaxDuplicatesPerTick() int {
	if cfg.SyncConfig.MaxDuplicatesPerTick > 0 {
		return cfg.SyncConfig.MaxDuplicatesPerTick
	}
	return defaultMaxDuplicatesPerTick
}

// Synchronizer places captured video frames and audio blocks on a common
// output timeline. Its Push*/Tick/Flush methods are not safe for
// concurrent use; Serve is the intended single caller.
type Synchronizer struct {
	Config    Config
	Clock     types.Clock
	VideoIn   *Queue[*types.Frame]
	AudioIn   []*Queue[*types.AudioSample]
	VideoOut  chan types.Unit
	AudioOut  chan types.Unit
	stats     commonsStats
	interval  time.Duration
	threshold time.Duration

	nextSlot      int64
	videoStarted  bool
	lastFrame     *types.Frame
	mixer         *audioMixer
	mixerOriginOf map[types.AudioOrigin]int
}

func New(
	cfg Config,
	clock types.Clock,
) (*Synchronizer, error) {
	if cfg.FrameRate.Num <= 0 || cfg.FrameRate.Den <= 0 {
		return nil, fmt.Errorf("invalid frame rate %s", cfg.FrameRate)
	}
	if len(cfg.AudioOrigins) > 0 && (cfg.SampleRate <= 0 || cfg.Channels <= 0) {
		return nil, fmt.Errorf("invalid audio format: %d Hz, %d channels", cfg.SampleRate, cfg.Channels)
	}

	s := &Synchronizer{
		Config:        cfg,
		Clock:         clock,
		interval:      cfg.FrameRate.Interval(),
		threshold:     cfg.DriftThreshold(),
		mixerOriginOf: map[types.AudioOrigin]int{},
	}
	s.VideoIn = NewQueue[*types.Frame](cfg.VideoQueueSize(), nil)
	s.VideoOut = make(chan types.Unit, cfg.VideoQueueSize())
	if len(cfg.AudioOrigins) > 0 {
		s.mixer = newAudioMixer(cfg.SampleRate, cfg.Channels, len(cfg.AudioOrigins))
		for idx, origin := range cfg.AudioOrigins {
			s.mixerOriginOf[origin] = idx
			s.AudioIn = append(s.AudioIn, NewQueue[*types.AudioSample](cfg.AudioQueueSize(), nil))
		}
		s.AudioOut = make(chan types.Unit, cfg.AudioQueueSize())
	}
	return s, nil
}

// AudioQueue returns the input queue for the given origin, or nil if it is not captured.
func (s *Synchronizer) AudioQueue(origin types.AudioOrigin) *Queue[*types.AudioSample] {
	idx, ok := s.mixerOriginOf[origin]
	if !ok {
		return nil
	}
	return s.AudioIn[idx]
}

func (s *Synchronizer) Stats() Stats {
	r := s.stats.Convert()
	if s.VideoIn != nil {
		r.VideoQueueDropped = s.VideoIn.Dropped()
	}
	for _, q := range s.AudioIn {
		r.AudioQueueDropped += q.Dropped()
	}
	return r
}

func (s *Synchronizer) slotPTS(slot int64) time.Duration {
	return time.Duration(slot) * s.interval
}

func (s *Synchronizer) videoUnit(frame *types.Frame, duplicate bool) types.Unit {
	u := types.Unit{
		Tag:       types.StreamTagVideo,
		PTS:       s.slotPTS(s.nextSlot),
		Duration:  s.interval,
		Video:     frame,
		Duplicate: duplicate,
	}
	s.nextSlot++
	s.stats.VideoUnitsOut.Add(1)
	return u
}

// PushVideo assigns the frame to the next output slot, or drops it if it
// is older than the slot by more than the drift threshold.
func (s *Synchronizer) PushVideo(
	ctx context.Context,
	frame *types.Frame,
) []types.Unit {
	s.stats.VideoFramesIn.Add(1)
	if !s.videoStarted {
		s.videoStarted = true
		if slot := int64(frame.Timestamp / s.interval); slot > s.nextSlot {
			s.nextSlot = slot
		}
	}

	var result []types.Unit
	for dups := 0; s.lastFrame != nil && dups < s.Config.MaxDuplicatesPerTick(); dups++ {
		if frame.Timestamp-s.slotPTS(s.nextSlot) <= s.threshold {
			break
		}
		result = append(result, s.videoUnit(s.lastFrame, true))
		s.stats.VideoDuplicated.Add(1)
	}

	skew := frame.Timestamp - s.slotPTS(s.nextSlot)
	if skew < -s.threshold {
		logger.Tracef(ctx, "dropping a stale video frame: skew %v", skew)
		s.stats.VideoDropped.Add(1)
		return result
	}

	s.lastFrame = frame
	return append(result, s.videoUnit(frame, false))
}

// PushAudio places the block on its origin's track and returns the mixed
// audio that became complete.
func (s *Synchronizer) PushAudio(
	ctx context.Context,
	sample *types.AudioSample,
) []types.Unit {
	s.stats.AudioBlocksIn.Add(1)
	if s.mixer == nil {
		s.stats.AudioBlocksDropped.Add(1)
		return nil
	}
	idx, ok := s.mixerOriginOf[sample.Origin]
	if !ok || sample.SampleRate != s.Config.SampleRate || sample.Channels != s.Config.Channels {
		logger.Errorf(ctx, "unexpected audio block: origin %s, %d Hz, %d channels", sample.Origin, sample.SampleRate, sample.Channels)
		s.stats.AudioBlocksDropped.Add(1)
		return nil
	}

	thresholdSamples := int64(types.DurationToSamples(s.threshold, s.Config.SampleRate))
	start := int64(types.DurationToSamples(sample.Timestamp, s.Config.SampleRate))
	gap := start - s.mixer.trackEnd(idx)
	switch {
	case gap > thresholdSamples:
		s.stats.AudioPaddedSamples.Add(uint64(gap))
		s.mixer.padTo(idx, start)
	case gap < -thresholdSamples:
		logger.Tracef(ctx, "dropping an audio block of %s: it is ahead of the clock by %d samples", sample.Origin, -gap)
		s.stats.AudioBlocksDropped.Add(1)
		return nil
	}
	s.mixer.append(idx, sample.Samples)
	return s.mixedUnits()
}

// Tick duplicates the last video frame and pads silent audio tracks when
// the inputs fall behind the clock.
func (s *Synchronizer) Tick(
	ctx context.Context,
	now time.Duration,
) []types.Unit {
	var result []types.Unit
	if s.lastFrame != nil {
		for dups := 0; dups < s.Config.MaxDuplicatesPerTick(); dups++ {
			if now-s.slotPTS(s.nextSlot) <= s.threshold {
				break
			}
			result = append(result, s.videoUnit(s.lastFrame, true))
			s.stats.VideoDuplicated.Add(1)
		}
	}

	if s.mixer != nil {
		limit := int64(types.DurationToSamples(now-s.threshold, s.Config.SampleRate))
		for idx := range s.Config.AudioOrigins {
			if padded := s.mixer.padTo(idx, limit); padded > 0 {
				s.stats.AudioPaddedSamples.Add(uint64(padded))
			}
		}
		result = append(result, s.mixedUnits()...)
	}
	return result
}

// Flush completes the audio tracks up to the longest one and returns the
// rest of the mixed audio.
func (s *Synchronizer) Flush(
	ctx context.Context,
) []types.Unit {
	if s.mixer == nil {
		return nil
	}
	end := s.mixer.maxTrackEnd()
	for idx := range s.Config.AudioOrigins {
		if padded := s.mixer.padTo(idx, end); padded > 0 {
			s.stats.AudioPaddedSamples.Add(uint64(padded))
		}
	}
	return s.mixedUnits()
}

func (s *Synchronizer) mixedUnits() []types.Unit {
	pos, samples := s.mixer.mix()
	if len(samples) == 0 {
		return nil
	}
	origin := types.AudioOriginMixed
	if len(s.Config.AudioOrigins) == 1 {
		origin = s.Config.AudioOrigins[0]
	}
	pts := types.SamplesToDuration(int(pos), s.Config.SampleRate)
	block := &types.AudioSample{
		Timestamp:  pts,
		Origin:     origin,
		SampleRate: s.Config.SampleRate,
		Channels:   s.Config.Channels,
		Samples:    samples,
	}
	s.stats.AudioSamplesOut.Add(uint64(block.FrameCount()))
	return []types.Unit{{
		Tag:      types.StreamTagAudio,
		PTS:      pts,
		Duration: block.Duration(),
		Audio:    block,
	}}
}
