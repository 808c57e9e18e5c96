package types

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xaionaro-go/typing"
)

const (
	MinFrameRate        = 1
	MaxFrameRate        = 240
	MinOutputDimension  = 16
	MaxOutputDimension  = 8192
	MaxVolume           = 2.0
	MaxReplayWindow     = 10 * time.Minute
	DefaultOutputPath   = "output.mp4"
	DefaultReplayWindow = 30 * time.Second
)

type Rational struct {
	Num int `validate:"gt=0"`
	Den int `validate:"gt=0"`
}

func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Interval is the duration of one frame at this rate.
// It saturates instead of overflowing and is zero for a non-positive rate.
func (r Rational) Interval() time.Duration {
	if r.Num <= 0 || r.Den <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(time.Second), uint64(r.Den))
	if hi >= uint64(r.Num) {
		return time.Duration(math.MaxInt64)
	}
	q, _ := bits.Div64(hi, lo, uint64(r.Num))
	if q > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(q)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

type Dimensions struct {
	Width  int
	Height int
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// SyncConfig tunes the A/V synchronizer; zero values mean "derive from the frame rate".
type SyncConfig struct {
	DriftThreshold       time.Duration `validate:"gte=0"`
	VideoQueueSize       int           `validate:"gte=0"`
	AudioQueueSize       int           `validate:"gte=0"`
	MaxDuplicatesPerTick int           `validate:"gte=0"`
}

// Config is the immutable recorder configuration; build it with NewConfigBuilder.
type Config struct {
	FrameRate         Rational
	OutputDimensions  typing.Optional[Dimensions]
	CaptureAudio      bool
	CaptureMicrophone bool
	AudioSource       AudioSource
	MicrophoneDevice  string
	MicrophoneVolume  float64 `validate:"gte=0,lte=2"`
	SystemVolume      float64 `validate:"gte=0,lte=2"`
	DebugMode         bool
	CaptureCursor     bool
	OutputPath        string `validate:"required"`

	Video            EncodeVideoConfig
	Audio            EncodeAudioConfig
	SampleRate       int `validate:"oneof=44100 48000"`
	Channels         int `validate:"oneof=1 2"`
	ReplayWindow     time.Duration
	KeyframeInterval time.Duration
	AcquireTimeout   time.Duration
	Sync             SyncConfig
}

func DefaultConfig() Config {
	return Config{
		FrameRate:        Rational{Num: 30, Den: 1},
		CaptureAudio:     true,
		AudioSource:      AudioSourceDesktop,
		MicrophoneVolume: 1.0,
		SystemVolume:     1.0,
		CaptureCursor:    true,
		OutputPath:       DefaultOutputPath,
		Video: EncodeVideoConfig{
			Codec:   VideoCodecH264,
			Quality: ptr(VideoQualityConstantBitrate(8_000_000)),
		},
		Audio: EncodeAudioConfig{
			Codec:   AudioCodecAAC,
			Quality: ptr(AudioQualityConstantBitrate(192_000)),
		},
		SampleRate:       48000,
		Channels:         2,
		ReplayWindow:     DefaultReplayWindow,
		KeyframeInterval: time.Second,
		AcquireTimeout:   10 * time.Second,
	}
}

// DesktopAudioEnabled reports whether system (loopback) audio is captured.
func (cfg Config) DesktopAudioEnabled() bool {
	if !cfg.CaptureAudio {
		return false
	}
	return cfg.AudioSource == AudioSourceDesktop || cfg.AudioSource == AudioSourceBoth
}

// MicrophoneEnabled reports whether a microphone is captured.
func (cfg Config) MicrophoneEnabled() bool {
	if cfg.CaptureMicrophone {
		return true
	}
	if !cfg.CaptureAudio {
		return false
	}
	return cfg.AudioSource == AudioSourceMicrophone || cfg.AudioSource == AudioSourceBoth
}

func (cfg Config) AudioEnabled() bool {
	return cfg.DesktopAudioEnabled() || cfg.MicrophoneEnabled()
}

func (cfg Config) ReplayEnabled() bool {
	return cfg.ReplayWindow > 0
}

var validate = validator.New()

func (cfg Config) Validate() error {
	if err := validate.Struct(&cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigurationInvalid, err)
	}

	if fps, rem := cfg.FrameRate.Num/cfg.FrameRate.Den, cfg.FrameRate.Num%cfg.FrameRate.Den; fps < MinFrameRate || fps > MaxFrameRate || (fps == MaxFrameRate && rem != 0) {
		return fmt.Errorf("%w: frame rate %s is out of range [%d..%d] fps", ErrConfigurationInvalid, cfg.FrameRate, MinFrameRate, MaxFrameRate)
	}
	if cfg.OutputDimensions.IsSet() {
		dims := cfg.OutputDimensions.Get()
		for _, v := range []int{dims.Width, dims.Height} {
			if v < MinOutputDimension || v > MaxOutputDimension {
				return fmt.Errorf("%w: output dimensions %s are out of range [%d..%d]", ErrConfigurationInvalid, dims, MinOutputDimension, MaxOutputDimension)
			}
			if v%2 != 0 {
				return fmt.Errorf("%w: output dimensions %s must be even", ErrConfigurationInvalid, dims)
			}
		}
	}
	if cfg.AudioSource <= AudioSourceUndefined || cfg.AudioSource >= EndOfAudioSource {
		return fmt.Errorf("%w: invalid audio source %v", ErrConfigurationInvalid, cfg.AudioSource)
	}
	if cfg.Video.Codec <= VideoCodecUndefined || cfg.Video.Codec >= EndOfVideoCodec {
		return fmt.Errorf("%w: invalid video codec %v", ErrConfigurationInvalid, cfg.Video.Codec)
	}
	if cfg.Video.Quality == nil {
		return fmt.Errorf("%w: video quality is not set", ErrConfigurationInvalid)
	}
	if cfg.AudioEnabled() {
		if cfg.Audio.Codec <= AudioCodecUndefined || cfg.Audio.Codec >= EndOfAudioCodec {
			return fmt.Errorf("%w: invalid audio codec %v", ErrConfigurationInvalid, cfg.Audio.Codec)
		}
		if cfg.Audio.Quality == nil {
			return fmt.Errorf("%w: audio quality is not set", ErrConfigurationInvalid)
		}
	}
	if cfg.ReplayWindow < 0 || cfg.ReplayWindow > MaxReplayWindow {
		return fmt.Errorf("%w: replay window %v is out of range [0..%v]", ErrConfigurationInvalid, cfg.ReplayWindow, MaxReplayWindow)
	}
	if cfg.KeyframeInterval <= 0 {
		return fmt.Errorf("%w: keyframe interval must be positive, got %v", ErrConfigurationInvalid, cfg.KeyframeInterval)
	}
	if cfg.AcquireTimeout <= 0 {
		return fmt.Errorf("%w: acquire timeout must be positive, got %v", ErrConfigurationInvalid, cfg.AcquireTimeout)
	}
	return nil
}

// ConfigBuilder accumulates settings; Build validates them all at once.
type ConfigBuilder struct {
	cfg Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: DefaultConfig()}
}

func (b *ConfigBuilder) FPS(num, den int) *ConfigBuilder {
	b.cfg.FrameRate = Rational{Num: num, Den: den}
	return b
}

func (b *ConfigBuilder) OutputDimensions(width, height int) *ConfigBuilder {
	b.cfg.OutputDimensions = typing.Opt(Dimensions{Width: width, Height: height})
	return b
}

func (b *ConfigBuilder) CaptureAudio(v bool) *ConfigBuilder {
	b.cfg.CaptureAudio = v
	return b
}

func (b *ConfigBuilder) CaptureMicrophone(v bool) *ConfigBuilder {
	b.cfg.CaptureMicrophone = v
	return b
}

func (b *ConfigBuilder) AudioSource(v AudioSource) *ConfigBuilder {
	b.cfg.AudioSource = v
	return b
}

// MicrophoneDevice selects the microphone by ID or name; empty means the system default.
func (b *ConfigBuilder) MicrophoneDevice(v string) *ConfigBuilder {
	b.cfg.MicrophoneDevice = v
	return b
}

func (b *ConfigBuilder) MicrophoneVolume(v float64) *ConfigBuilder {
	b.cfg.MicrophoneVolume = v
	return b
}

func (b *ConfigBuilder) SystemVolume(v float64) *ConfigBuilder {
	b.cfg.SystemVolume = v
	return b
}

func (b *ConfigBuilder) DebugMode(v bool) *ConfigBuilder {
	b.cfg.DebugMode = v
	return b
}

func (b *ConfigBuilder) CaptureCursor(v bool) *ConfigBuilder {
	b.cfg.CaptureCursor = v
	return b
}

func (b *ConfigBuilder) OutputPath(v string) *ConfigBuilder {
	b.cfg.OutputPath = v
	return b
}

func (b *ConfigBuilder) VideoCodec(v VideoCodec) *ConfigBuilder {
	b.cfg.Video.Codec = v
	return b
}

func (b *ConfigBuilder) VideoQuality(v VideoQuality) *ConfigBuilder {
	b.cfg.Video.Quality = v
	return b
}

func (b *ConfigBuilder) VideoCustomOptions(opts ...CustomOption) *ConfigBuilder {
	b.cfg.Video.CustomOptions = append(b.cfg.Video.CustomOptions, opts...)
	return b
}

func (b *ConfigBuilder) AudioCodec(v AudioCodec) *ConfigBuilder {
	b.cfg.Audio.Codec = v
	return b
}

func (b *ConfigBuilder) AudioQuality(v AudioQuality) *ConfigBuilder {
	b.cfg.Audio.Quality = v
	return b
}

func (b *ConfigBuilder) SampleRate(v int) *ConfigBuilder {
	b.cfg.SampleRate = v
	return b
}

func (b *ConfigBuilder) Channels(v int) *ConfigBuilder {
	b.cfg.Channels = v
	return b
}

// ReplayWindow sets how much of the most recent media is kept for SaveReplay; zero disables it.
func (b *ConfigBuilder) ReplayWindow(v time.Duration) *ConfigBuilder {
	b.cfg.ReplayWindow = v
	return b
}

func (b *ConfigBuilder) KeyframeInterval(v time.Duration) *ConfigBuilder {
	b.cfg.KeyframeInterval = v
	return b
}

func (b *ConfigBuilder) AcquireTimeout(v time.Duration) *ConfigBuilder {
	b.cfg.AcquireTimeout = v
	return b
}

func (b *ConfigBuilder) Sync(v SyncConfig) *ConfigBuilder {
	b.cfg.Sync = v
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	cfg := b.cfg
	cfg.Video.CustomOptions = append(CustomOptions(nil), cfg.Video.CustomOptions...)
	cfg.Audio.CustomOptions = append(CustomOptions(nil), cfg.Audio.CustomOptions...)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
