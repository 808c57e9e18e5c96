package types

import (
	"fmt"
	"time"
)

type StreamTag uint

const (
	StreamTagUndefined = StreamTag(iota)
	StreamTagVideo
	StreamTagAudio
)

func (t StreamTag) String() string {
	switch t {
	case StreamTagUndefined:
		return "<undefined>"
	case StreamTagVideo:
		return "video"
	case StreamTagAudio:
		return "audio"
	}
	return fmt.Sprintf("unexpected_stream_tag_%d", uint(t))
}

type AudioOrigin uint

const (
	AudioOriginUndefined = AudioOrigin(iota)
	AudioOriginDesktop
	AudioOriginMicrophone
	AudioOriginMixed
)

func (o AudioOrigin) String() string {
	switch o {
	case AudioOriginUndefined:
		return "<undefined>"
	case AudioOriginDesktop:
		return "desktop"
	case AudioOriginMicrophone:
		return "microphone"
	case AudioOriginMixed:
		return "mixed"
	}
	return fmt.Sprintf("unexpected_audio_origin_%d", uint(o))
}

// Frame is a captured picture in BGRA (4 bytes per pixel).
type Frame struct {
	// Timestamp is the capture moment on the session clock.
	Timestamp time.Duration
	Width     int
	Height    int
	Stride    int
	Data      []byte
}

// AudioSample is a block of interleaved float32 samples in [-1, 1] with
// the volume already applied.
type AudioSample struct {
	Timestamp  time.Duration
	Origin     AudioOrigin
	SampleRate int
	Channels   int
	Samples    []float32
}

func (s *AudioSample) FrameCount() int {
	if s.Channels == 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}

func (s *AudioSample) Duration() time.Duration {
	return SamplesToDuration(s.FrameCount(), s.SampleRate)
}

func SamplesToDuration(frames int, sampleRate int) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

func DurationToSamples(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

// Unit is a synchronized media item: its PTS is already on the output timeline.
type Unit struct {
	Tag       StreamTag
	PTS       time.Duration
	Duration  time.Duration
	Video     *Frame
	Audio     *AudioSample
	Duplicate bool
}

// EncodedChunk is one compressed access unit ready to be muxed.
//
// Data is never modified after the chunk is produced, so chunks may be
// shared between the output file and the replay buffer.
type EncodedChunk struct {
	Tag      StreamTag
	PTS      time.Duration
	DTS      time.Duration
	Duration time.Duration
	KeyFrame bool
	Data     []byte
}

func (c *EncodedChunk) End() time.Duration {
	return c.PTS + c.Duration
}

// StreamConfig describes an encoded stream well enough to create a container track for it.
type StreamConfig struct {
	Tag        StreamTag
	CodecName  string
	Width      int
	Height     int
	FrameRate  Rational
	SampleRate int
	Channels   int
	BitRate    int64

	// Parameters is backend-specific codec state (for example extradata
	// holders) that only the same backend's Output understands.
	Parameters any
}

type Clock interface {
	Now() time.Duration
}

type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) Now() time.Duration {
	return time.Since(c.start)
}
