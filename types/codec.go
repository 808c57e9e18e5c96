package types

import (
	"fmt"
	"strings"
)

type VideoCodec uint

const (
	VideoCodecUndefined = VideoCodec(iota)
	VideoCodecH264
	VideoCodecHEVC
	VideoCodecAV1
	EndOfVideoCodec
)

func (vc VideoCodec) String() string {
	switch vc {
	case VideoCodecUndefined:
		return "<undefined>"
	case VideoCodecH264:
		return "h264"
	case VideoCodecHEVC:
		return "hevc"
	case VideoCodecAV1:
		return "av1"
	}
	return fmt.Sprintf("unexpected_video_codec_id_%d", uint(vc))
}

func (vc VideoCodec) MarshalText() ([]byte, error) {
	return []byte(vc.String()), nil
}

func (vc *VideoCodec) UnmarshalText(b []byte) error {
	if vc == nil {
		return fmt.Errorf("VideoCodec is nil")
	}
	s := strings.ToLower(strings.Trim(string(b), `"`))
	switch s {
	case "h265":
		*vc = VideoCodecHEVC
		return nil
	}
	for cmp := VideoCodecUndefined; cmp < EndOfVideoCodec; cmp++ {
		if cmp.String() == s {
			*vc = cmp
			return nil
		}
	}
	return fmt.Errorf("unknown value of the VideoCodec: '%s'", s)
}

type AudioCodec uint

const (
	AudioCodecUndefined = AudioCodec(iota)
	AudioCodecAAC
	AudioCodecOpus
	EndOfAudioCodec
)

func (ac AudioCodec) String() string {
	switch ac {
	case AudioCodecUndefined:
		return "<undefined>"
	case AudioCodecAAC:
		return "aac"
	case AudioCodecOpus:
		return "opus"
	}
	return fmt.Sprintf("unexpected_audio_codec_id_%d", uint(ac))
}

func (ac AudioCodec) MarshalText() ([]byte, error) {
	return []byte(ac.String()), nil
}

func (ac *AudioCodec) UnmarshalText(b []byte) error {
	if ac == nil {
		return fmt.Errorf("AudioCodec is nil")
	}
	s := strings.ToLower(strings.Trim(string(b), `"`))
	for cmp := AudioCodecUndefined; cmp < EndOfAudioCodec; cmp++ {
		if cmp.String() == s {
			*ac = cmp
			return nil
		}
	}
	return fmt.Errorf("unknown value of the AudioCodec: '%s'", s)
}

type AudioSource uint

const (
	AudioSourceUndefined = AudioSource(iota)
	AudioSourceDesktop
	AudioSourceMicrophone
	AudioSourceBoth
	EndOfAudioSource
)

func (s AudioSource) String() string {
	switch s {
	case AudioSourceUndefined:
		return "<undefined>"
	case AudioSourceDesktop:
		return "desktop"
	case AudioSourceMicrophone:
		return "microphone"
	case AudioSourceBoth:
		return "both"
	}
	return fmt.Sprintf("unexpected_audio_source_%d", uint(s))
}

func (s AudioSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AudioSource) UnmarshalText(b []byte) error {
	if s == nil {
		return fmt.Errorf("AudioSource is nil")
	}
	str := strings.ToLower(strings.Trim(string(b), `"`))
	for cmp := AudioSourceUndefined + 1; cmp < EndOfAudioSource; cmp++ {
		if cmp.String() == str {
			*s = cmp
			return nil
		}
	}
	return fmt.Errorf("unknown value of the AudioSource: '%s'", str)
}
