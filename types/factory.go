package types

import (
	"context"
	"io"
	"time"
)

type VideoInput interface {
	io.Closer

	// Size is the native size of the captured surface.
	Size() Dimensions
	ReadFrame(ctx context.Context) (*Frame, error)
}

type AudioInput interface {
	io.Closer

	Origin() AudioOrigin
	ReadSamples(ctx context.Context) (*AudioSample, error)
}

type Encoder interface {
	io.Closer

	StreamConfig() StreamConfig
	Encode(ctx context.Context, unit *Unit) ([]EncodedChunk, error)
	// Flush drains the delayed chunks; the encoder accepts no input afterwards.
	Flush(ctx context.Context) ([]EncodedChunk, error)
}

type Output interface {
	io.Closer

	WriteChunk(ctx context.Context, chunk EncodedChunk) error
	// Finalize writes the container trailer; only the first call has an effect.
	Finalize(ctx context.Context) error
}

type VideoInputParams struct {
	Target        ResolvedTarget
	FrameRate     Rational
	CaptureCursor bool
	Clock         Clock
}

type AudioInputParams struct {
	Origin     AudioOrigin
	DeviceID   string
	SampleRate int
	Channels   int
	Volume     float64
	Clock      Clock
}

type VideoEncoderParams struct {
	Encoder          VideoEncoder
	InputSize        Dimensions
	OutputSize       Dimensions
	FrameRate        Rational
	KeyframeInterval time.Duration
	Config           EncodeVideoConfig
}

type AudioEncoderParams struct {
	SampleRate int
	Channels   int
	Config     EncodeAudioConfig
}

type TargetResolver interface {
	ResolveTarget(ctx context.Context, target CaptureTarget) (ResolvedTarget, error)
}

// Factory provides everything a recording session needs from the platform.
type Factory interface {
	TargetResolver

	AudioInputDevices(ctx context.Context) ([]AudioInputDevice, error)
	VideoEncoders(ctx context.Context) ([]VideoEncoder, error)

	NewVideoInput(ctx context.Context, params VideoInputParams) (VideoInput, error)
	NewAudioInput(ctx context.Context, params AudioInputParams) (AudioInput, error)
	NewVideoEncoder(ctx context.Context, params VideoEncoderParams) (Encoder, error)
	NewAudioEncoder(ctx context.Context, params AudioEncoderParams) (Encoder, error)
	NewOutput(ctx context.Context, path string, streams []StreamConfig) (Output, error)
}
