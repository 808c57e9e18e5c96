package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/xaionaro-go/screenrec"
	"github.com/xaionaro-go/screenrec/types"
)

// settings is the content of the optional --settings YAML file; flags given
// explicitly on the command line take precedence over it.
type settings struct {
	OutputPath        string                   `yaml:"output_path,omitempty"`
	FPS               *types.Rational          `yaml:"fps,omitempty"`
	OutputDimensions  *types.Dimensions        `yaml:"output_dimensions,omitempty"`
	CaptureAudio      *bool                    `yaml:"capture_audio,omitempty"`
	CaptureMicrophone *bool                    `yaml:"capture_microphone,omitempty"`
	AudioSource       *types.AudioSource       `yaml:"audio_source,omitempty"`
	MicrophoneDevice  string                   `yaml:"microphone_device,omitempty"`
	MicrophoneVolume  *float64                 `yaml:"microphone_volume,omitempty"`
	SystemVolume      *float64                 `yaml:"system_volume,omitempty"`
	CaptureCursor     *bool                    `yaml:"capture_cursor,omitempty"`
	DebugMode         bool                     `yaml:"debug_mode,omitempty"`
	ReplayWindow      string                   `yaml:"replay_window,omitempty"`
	Video             *types.EncodeVideoConfig `yaml:"video,omitempty"`
	Audio             *types.EncodeAudioConfig `yaml:"audio,omitempty"`
	ProcessName       string                   `yaml:"process_name,omitempty"`
	WindowTitle       string                   `yaml:"window_title,omitempty"`
}

func readSettings(path string) (*settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	return parseSettings(b)
}

func parseSettings(b []byte) (*settings, error) {
	var s settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unable to parse the settings: %w", err)
	}
	return &s, nil
}

func (s *settings) apply(b *screenrec.ConfigBuilder) error {
	if s.OutputPath != "" {
		b.OutputPath(s.OutputPath)
	}
	if s.FPS != nil {
		b.FPS(s.FPS.Num, s.FPS.Den)
	}
	if s.OutputDimensions != nil {
		b.OutputDimensions(s.OutputDimensions.Width, s.OutputDimensions.Height)
	}
	if s.CaptureAudio != nil {
		b.CaptureAudio(*s.CaptureAudio)
	}
	if s.CaptureMicrophone != nil {
		b.CaptureMicrophone(*s.CaptureMicrophone)
	}
	if s.AudioSource != nil {
		b.AudioSource(*s.AudioSource)
	}
	if s.MicrophoneDevice != "" {
		b.MicrophoneDevice(s.MicrophoneDevice)
	}
	if s.MicrophoneVolume != nil {
		b.MicrophoneVolume(*s.MicrophoneVolume)
	}
	if s.SystemVolume != nil {
		b.SystemVolume(*s.SystemVolume)
	}
	if s.CaptureCursor != nil {
		b.CaptureCursor(*s.CaptureCursor)
	}
	if s.DebugMode {
		b.DebugMode(true)
	}
	if s.Video != nil {
		if s.Video.Codec != types.VideoCodecUndefined {
			b.VideoCodec(s.Video.Codec)
		}
		if s.Video.Quality != nil {
			b.VideoQuality(s.Video.Quality)
		}
		b.VideoCustomOptions(s.Video.CustomOptions...)
	}
	if s.Audio != nil {
		if s.Audio.Codec != types.AudioCodecUndefined {
			b.AudioCodec(s.Audio.Codec)
		}
		if s.Audio.Quality != nil {
			b.AudioQuality(s.Audio.Quality)
		}
	}
	if s.ReplayWindow != "" {
		d, err := time.ParseDuration(s.ReplayWindow)
		if err != nil {
			return fmt.Errorf("unable to parse replay_window '%s': %w", s.ReplayWindow, err)
		}
		b.ReplayWindow(d)
	}
	return nil
}

func (s *settings) target() (types.CaptureTarget, bool) {
	switch {
	case s.ProcessName != "":
		return types.ProcessTarget(s.ProcessName), true
	case s.WindowTitle != "":
		return types.WindowTarget(s.WindowTitle), true
	}
	return types.CaptureTarget{}, false
}
