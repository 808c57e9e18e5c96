package types

import (
	"fmt"
	"sort"
)

type AudioInputDevice struct {
	ID        string `json:"id"         yaml:"id"`
	Name      string `json:"name"       yaml:"name"`
	IsDefault bool   `json:"is_default" yaml:"is_default"`
}

type Acceleration uint

const (
	AccelerationSoftware = Acceleration(iota)
	AccelerationNVENC
	AccelerationAMF
	AccelerationQSV
	AccelerationVideoToolbox
	AccelerationMediaCodec
	AccelerationVAAPI
	EndOfAcceleration
)

func (a Acceleration) String() string {
	switch a {
	case AccelerationSoftware:
		return "software"
	case AccelerationNVENC:
		return "nvenc"
	case AccelerationAMF:
		return "amf"
	case AccelerationQSV:
		return "qsv"
	case AccelerationVideoToolbox:
		return "videotoolbox"
	case AccelerationMediaCodec:
		return "mediacodec"
	case AccelerationVAAPI:
		return "vaapi"
	}
	return fmt.Sprintf("unexpected_acceleration_%d", uint(a))
}

func (a Acceleration) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a Acceleration) IsHardware() bool {
	return a != AccelerationSoftware
}

// VideoEncoder describes an encoder available on this machine.
type VideoEncoder struct {
	// Name is the backend's encoder name, e.g. "h264_nvenc".
	Name         string       `json:"name"         yaml:"name"`
	Codec        VideoCodec   `json:"codec"        yaml:"codec"`
	Acceleration Acceleration `json:"acceleration" yaml:"acceleration"`

	// Rank orders encoders with the same acceleration, lower is preferred.
	Rank int `json:"rank" yaml:"rank"`
}

func (e VideoEncoder) String() string {
	return fmt.Sprintf("%s (%s, %s)", e.Name, e.Codec, e.Acceleration)
}

func videoEncoderLess(a, b VideoEncoder) bool {
	if a.Acceleration.IsHardware() != b.Acceleration.IsHardware() {
		return a.Acceleration.IsHardware()
	}
	if a.Acceleration != b.Acceleration {
		return a.Acceleration < b.Acceleration
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Name < b.Name
}

// SortVideoEncoders orders encoders from the most to the least preferred:
// hardware before software, then by acceleration kind and rank.
func SortVideoEncoders(encoders []VideoEncoder) {
	sort.SliceStable(encoders, func(i, j int) bool {
		return videoEncoderLess(encoders[i], encoders[j])
	})
}

// VideoEncodersOfCodec returns encoders of the given codec, most preferred first.
func VideoEncodersOfCodec(encoders []VideoEncoder, codec VideoCodec) []VideoEncoder {
	var result []VideoEncoder
	for _, enc := range encoders {
		if enc.Codec == codec {
			result = append(result, enc)
		}
	}
	SortVideoEncoders(result)
	return result
}

// PreferredVideoEncoder never returns an encoder of another codec.
func PreferredVideoEncoder(encoders []VideoEncoder, codec VideoCodec) (VideoEncoder, error) {
	candidates := VideoEncodersOfCodec(encoders, codec)
	if len(candidates) == 0 {
		return VideoEncoder{}, fmt.Errorf("%s: %w", codec, ErrEncoderNotFound)
	}
	return candidates[0], nil
}
