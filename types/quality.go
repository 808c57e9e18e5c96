package types

import (
	"encoding/json"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

type VideoQuality interface {
	videoQuality()
	typeName() string
	serializable() videoQualitySerializable
	setValues(vq videoQualitySerializable) error
}

type VideoQualityConstantBitrate uint

func (VideoQualityConstantBitrate) typeName() string {
	return "constant_bitrate"
}

func (VideoQualityConstantBitrate) videoQuality() {}

func (vq VideoQualityConstantBitrate) serializable() videoQualitySerializable {
	return videoQualitySerializable{
		"type":    vq.typeName(),
		"bitrate": uint(vq),
	}
}

func (vq VideoQualityConstantBitrate) MarshalJSON() ([]byte, error) {
	return json.Marshal(vq.serializable())
}

func (vq VideoQualityConstantBitrate) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(vq.serializable())
}

func (vq *VideoQualityConstantBitrate) setValues(in videoQualitySerializable) error {
	bitrate, ok := asUint(in["bitrate"])
	if !ok {
		return fmt.Errorf("have not found a non-negative number using key 'bitrate' in %#+v", in)
	}

	*vq = VideoQualityConstantBitrate(bitrate)
	return nil
}

// VideoQualityConstantQuality is a CRF/CQP-like value, the lower the better.
type VideoQualityConstantQuality uint8

func (VideoQualityConstantQuality) typeName() string {
	return "constant_quality"
}

func (VideoQualityConstantQuality) videoQuality() {}

func (vq VideoQualityConstantQuality) serializable() videoQualitySerializable {
	return videoQualitySerializable{
		"type":    vq.typeName(),
		"quality": uint(vq),
	}
}

func (vq VideoQualityConstantQuality) MarshalJSON() ([]byte, error) {
	return json.Marshal(vq.serializable())
}

func (vq VideoQualityConstantQuality) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(vq.serializable())
}

func (vq *VideoQualityConstantQuality) setValues(in videoQualitySerializable) error {
	quality, ok := asUint(in["quality"])
	if !ok || quality > 255 {
		return fmt.Errorf("have not found a number in range [0..255] using key 'quality' in %#+v", in)
	}

	*vq = VideoQualityConstantQuality(quality)
	return nil
}

type videoQualitySerializable map[string]any

func (videoQualitySerializable) videoQuality() {}

func (vq videoQualitySerializable) typeName() string {
	result, _ := vq["type"].(string)
	return result
}

func (vq videoQualitySerializable) serializable() videoQualitySerializable {
	return vq
}

func (vq videoQualitySerializable) setValues(in videoQualitySerializable) error {
	for k := range vq {
		delete(vq, k)
	}
	maps.Copy(vq, in)
	return nil
}

func (vq videoQualitySerializable) Convert() (VideoQuality, error) {
	typeName, ok := vq["type"].(string)
	if !ok {
		return nil, nil
	}

	var r VideoQuality
	for _, sample := range []VideoQuality{
		ptr(VideoQualityConstantBitrate(0)),
		ptr(VideoQualityConstantQuality(0)),
	} {
		if sample.typeName() == typeName {
			r = sample
			break
		}
	}
	if r == nil {
		return nil, fmt.Errorf("unknown type '%s'", typeName)
	}

	if err := r.setValues(vq); err != nil {
		return nil, fmt.Errorf("unable to convert the value (vq): %w", err)
	}
	return r, nil
}

type AudioQuality interface {
	audioQuality()
	typeName() string
	serializable() audioQualitySerializable
	setValues(vq audioQualitySerializable) error
}

type AudioQualityConstantBitrate uint

func (AudioQualityConstantBitrate) typeName() string {
	return "constant_bitrate"
}

func (AudioQualityConstantBitrate) audioQuality() {}

func (aq AudioQualityConstantBitrate) serializable() audioQualitySerializable {
	return audioQualitySerializable{
		"type":    aq.typeName(),
		"bitrate": uint(aq),
	}
}

func (aq AudioQualityConstantBitrate) MarshalJSON() ([]byte, error) {
	return json.Marshal(aq.serializable())
}

func (aq AudioQualityConstantBitrate) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(aq.serializable())
}

func (aq *AudioQualityConstantBitrate) setValues(in audioQualitySerializable) error {
	bitrateR := in["bitrate"]
	bitrate, ok := asUint(bitrateR)
	if !ok {
		return fmt.Errorf("have not found a non-negative number using key 'bitrate' in %#+v, found %T, instead", in, bitrateR)
	}

	*aq = AudioQualityConstantBitrate(bitrate)
	return nil
}

type audioQualitySerializable map[string]any

func (audioQualitySerializable) audioQuality() {}

func (aq audioQualitySerializable) typeName() string {
	result, _ := aq["type"].(string)
	return result
}

func (aq audioQualitySerializable) serializable() audioQualitySerializable {
	return aq
}

func (aq audioQualitySerializable) setValues(in audioQualitySerializable) error {
	for k := range aq {
		delete(aq, k)
	}
	maps.Copy(aq, in)
	return nil
}

func (aq audioQualitySerializable) Convert() (AudioQuality, error) {
	typeName, ok := aq["type"].(string)
	if !ok {
		return nil, nil
	}

	var r AudioQuality
	for _, sample := range []AudioQuality{
		ptr(AudioQualityConstantBitrate(0)),
	} {
		if sample.typeName() == typeName {
			r = sample
			break
		}
	}
	if r == nil {
		return nil, fmt.Errorf("unknown type '%s'", typeName)
	}

	if err := r.setValues(aq); err != nil {
		return nil, fmt.Errorf("unable to convert the value (aq): %w", err)
	}
	return r, nil
}

// asUint accepts whatever number representation JSON or YAML decoders produce.
func asUint(v any) (uint64, bool) {
	switch v := v.(type) {
	case int:
		return uint64(v), v >= 0
	case int64:
		return uint64(v), v >= 0
	case uint:
		return uint64(v), true
	case uint64:
		return v, true
	case float64:
		return uint64(v), v >= 0 && v == float64(uint64(v))
	}
	return 0, false
}

func ptr[T any](in T) *T {
	return &in
}
