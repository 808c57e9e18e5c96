package types

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/require"
)

func TestConfigBuilderDefaults(t *testing.T) {
	cfg, err := NewConfigBuilder().Build()
	require.NoError(t, err)

	require.Equal(t, Rational{Num: 30, Den: 1}, cfg.FrameRate)
	require.False(t, cfg.OutputDimensions.IsSet())
	require.True(t, cfg.CaptureAudio)
	require.Equal(t, AudioSourceDesktop, cfg.AudioSource)
	require.Equal(t, 1.0, cfg.MicrophoneVolume)
	require.Equal(t, 1.0, cfg.SystemVolume)
	require.Equal(t, DefaultOutputPath, cfg.OutputPath)
	require.Equal(t, VideoCodecH264, cfg.Video.Codec)
	require.True(t, cfg.DesktopAudioEnabled())
	require.False(t, cfg.MicrophoneEnabled())
	require.True(t, cfg.ReplayEnabled())
}

func TestConfigBuilderChain(t *testing.T) {
	cfg, err := NewConfigBuilder().
		FPS(60, 1).
		OutputDimensions(1920, 1080).
		CaptureAudio(true).
		CaptureMicrophone(false).
		AudioSource(AudioSourceDesktop).
		MicrophoneVolume(1.0).
		SystemVolume(0.5).
		DebugMode(true).
		CaptureCursor(false).
		OutputPath("clip.mp4").
		Build()
	require.NoError(t, err)

	require.Equal(t, 60.0, cfg.FrameRate.Float64())
	require.Equal(t, Dimensions{Width: 1920, Height: 1080}, cfg.OutputDimensions.Get())
	require.Equal(t, 0.5, cfg.SystemVolume)
	require.True(t, cfg.DebugMode)
	require.False(t, cfg.CaptureCursor)
	require.Equal(t, "clip.mp4", cfg.OutputPath)
	require.Equal(t, time.Second/60, cfg.FrameRate.Interval())
}

func TestConfigBuilderInvalid(t *testing.T) {
	for name, b := range map[string]*ConfigBuilder{
		"zero_fps_num":      NewConfigBuilder().FPS(0, 1),
		"zero_fps_den":      NewConfigBuilder().FPS(30, 0),
		"too_high_fps":      NewConfigBuilder().FPS(1000, 1),
		"too_low_fps":       NewConfigBuilder().FPS(1, 2),
		"huge_fps_den":      NewConfigBuilder().FPS(1, 1<<40),
		"huge_fps_num":      NewConfigBuilder().FPS(1<<40, 1),
		"odd_dimensions":    NewConfigBuilder().OutputDimensions(1921, 1080),
		"tiny_dimensions":   NewConfigBuilder().OutputDimensions(2, 2),
		"negative_volume":   NewConfigBuilder().SystemVolume(-0.1),
		"too_loud_mic":      NewConfigBuilder().MicrophoneVolume(2.5),
		"empty_output":      NewConfigBuilder().OutputPath(""),
		"bad_audio_source":  NewConfigBuilder().AudioSource(AudioSourceUndefined),
		"bad_sample_rate":   NewConfigBuilder().SampleRate(8000),
		"bad_channels":      NewConfigBuilder().Channels(6),
		"no_video_quality":  NewConfigBuilder().VideoQuality(nil),
		"bad_video_codec":   NewConfigBuilder().VideoCodec(VideoCodecUndefined),
		"negative_replay":   NewConfigBuilder().ReplayWindow(-time.Second),
		"too_long_replay":   NewConfigBuilder().ReplayWindow(time.Hour),
		"zero_keyframe_gap": NewConfigBuilder().KeyframeInterval(0),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build()
			require.ErrorIs(t, err, ErrConfigurationInvalid)
		})
	}
}

func TestRationalInterval(t *testing.T) {
	require.Equal(t, time.Second/30, Rational{Num: 30, Den: 1}.Interval())
	require.Equal(t, time.Duration(33366666), Rational{Num: 30000, Den: 1001}.Interval())
	require.Equal(t, time.Second, Rational{Num: 1 << 40, Den: 1 << 40}.Interval())
	require.Equal(t, time.Duration(math.MaxInt64), Rational{Num: 1, Den: 1 << 40}.Interval())
	require.Zero(t, Rational{Num: 0, Den: 1}.Interval())

	cfg, err := NewConfigBuilder().FPS(1, 1).Build()
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.FrameRate.Interval())
}

func TestConfigBuilderIsolation(t *testing.T) {
	b := NewConfigBuilder().VideoCustomOptions(CustomOption{Key: "preset", Value: "p4"})
	cfg, err := b.Build()
	require.NoError(t, err)

	b.VideoCustomOptions(CustomOption{Key: "tune", Value: "ll"})
	require.Len(t, cfg.Video.CustomOptions, 1)
}

func TestConfigAudioSelection(t *testing.T) {
	type expectation struct {
		desktop    bool
		microphone bool
	}
	for _, tc := range []struct {
		captureAudio bool
		captureMic   bool
		source       AudioSource
		expected     expectation
	}{
		{true, false, AudioSourceDesktop, expectation{true, false}},
		{true, false, AudioSourceMicrophone, expectation{false, true}},
		{true, false, AudioSourceBoth, expectation{true, true}},
		{true, true, AudioSourceDesktop, expectation{true, true}},
		{false, true, AudioSourceDesktop, expectation{false, true}},
		{false, false, AudioSourceBoth, expectation{false, false}},
	} {
		cfg, err := NewConfigBuilder().
			CaptureAudio(tc.captureAudio).
			CaptureMicrophone(tc.captureMic).
			AudioSource(tc.source).
			Build()
		require.NoError(t, err)
		require.Equal(t, tc.expected.desktop, cfg.DesktopAudioEnabled(), "%+v", tc)
		require.Equal(t, tc.expected.microphone, cfg.MicrophoneEnabled(), "%+v", tc)
	}
}

func TestEncodeConfigMarshalUnmarshal(t *testing.T) {
	cfg := &EncodeVideoConfig{
		Codec:   VideoCodecHEVC,
		Quality: ptr(VideoQualityConstantQuality(23)),
		CustomOptions: CustomOptions{
			{Key: "preset", Value: "p4"},
		},
	}

	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	var cfgDup EncodeVideoConfig
	err = yaml.Unmarshal(b, &cfgDup)
	require.NoError(t, err, string(b))
	require.Equal(t, cfg, &cfgDup)

	audioCfg := &EncodeAudioConfig{
		Codec:   AudioCodecAAC,
		Quality: ptr(AudioQualityConstantBitrate(128_000)),
	}
	b, err = json.Marshal(audioCfg)
	require.NoError(t, err)

	var audioCfgDup EncodeAudioConfig
	err = json.Unmarshal(b, &audioCfgDup)
	require.NoError(t, err, string(b))
	require.Equal(t, audioCfg, &audioCfgDup)
}

func TestVideoCodecText(t *testing.T) {
	var vc VideoCodec
	require.NoError(t, vc.UnmarshalText([]byte("h265")))
	require.Equal(t, VideoCodecHEVC, vc)
	require.Error(t, vc.UnmarshalText([]byte("mpeg2")))
}
