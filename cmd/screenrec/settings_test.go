package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/screenrec"
	"github.com/xaionaro-go/screenrec/types"
)

const sampleSettings = `
output_path: /tmp/session.mp4
fps:
  num: 60
  den: 1
output_dimensions:
  width: 1280
  height: 720
capture_audio: true
capture_microphone: true
audio_source: both
microphone_device: USB Mic
microphone_volume: 1.5
system_volume: 0.25
capture_cursor: false
replay_window: 45s
video:
  codec: hevc
  quality:
    type: constant_quality
    quality: 23
process_name: game.exe
`

func TestSettingsApply(t *testing.T) {
	s, err := parseSettings([]byte(sampleSettings))
	require.NoError(t, err)

	b := screenrec.NewConfigBuilder()
	require.NoError(t, s.apply(b))
	cfg, err := b.Build()
	require.NoError(t, err)

	require.Equal(t, "/tmp/session.mp4", cfg.OutputPath)
	require.Equal(t, types.Rational{Num: 60, Den: 1}, cfg.FrameRate)
	require.Equal(t, types.Dimensions{Width: 1280, Height: 720}, cfg.OutputDimensions.Get())
	require.Equal(t, types.AudioSourceBoth, cfg.AudioSource)
	require.Equal(t, "USB Mic", cfg.MicrophoneDevice)
	require.Equal(t, 1.5, cfg.MicrophoneVolume)
	require.Equal(t, 0.25, cfg.SystemVolume)
	require.False(t, cfg.CaptureCursor)
	require.Equal(t, 45*time.Second, cfg.ReplayWindow)
	require.Equal(t, types.VideoCodecHEVC, cfg.Video.Codec)
	require.Equal(t, types.VideoQualityConstantQuality(23), *cfg.Video.Quality.(*types.VideoQualityConstantQuality))

	target, ok := s.target()
	require.True(t, ok)
	require.Equal(t, types.ProcessTarget("game.exe"), target)
}

func TestSettingsInvalid(t *testing.T) {
	s, err := parseSettings([]byte("replay_window: soon\n"))
	require.NoError(t, err)
	require.Error(t, s.apply(screenrec.NewConfigBuilder()))

	s, err = parseSettings([]byte("system_volume: 3\n"))
	require.NoError(t, err)
	b := screenrec.NewConfigBuilder()
	require.NoError(t, s.apply(b))
	_, err = b.Build()
	require.ErrorIs(t, err, types.ErrConfigurationInvalid)

	_, err = readSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRecordFlagsOverrideSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSettings), 0o644))

	fs := pflag.NewFlagSet("record", pflag.ContinueOnError)
	var flags recordFlags
	flags.register(fs)
	require.NoError(t, fs.Parse([]string{
		"--settings", path,
		"--fps", "24",
		"--window-title", "Editor",
	}))

	cfg, target, err := flags.config(fs)
	require.NoError(t, err)
	require.Equal(t, types.Rational{Num: 24, Den: 1}, cfg.FrameRate)
	require.Equal(t, "/tmp/session.mp4", cfg.OutputPath)
	require.Equal(t, types.VideoCodecHEVC, cfg.Video.Codec)
	require.Equal(t, types.WindowTarget("Editor"), target)
}

func TestRecordFlagsDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("record", pflag.ContinueOnError)
	var flags recordFlags
	flags.register(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, target, err := flags.config(fs)
	require.NoError(t, err)
	require.Equal(t, types.DefaultConfig().FrameRate, cfg.FrameRate)
	require.Equal(t, types.DefaultOutputPath, cfg.OutputPath)
	require.Equal(t, types.DisplayTarget(""), target)
}
