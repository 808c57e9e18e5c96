package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type EncodeVideoConfig struct {
	Codec         VideoCodec    `json:"codec,omitempty"          yaml:"codec,omitempty"`
	Quality       VideoQuality  `json:"quality,omitempty"        yaml:"quality,omitempty"`
	CustomOptions CustomOptions `json:"custom_options,omitempty" yaml:"custom_options,omitempty"`
}

type encodeVideoConfigPlain EncodeVideoConfig

func (c *EncodeVideoConfig) UnmarshalJSON(b []byte) (_err error) {
	var aux struct {
		encodeVideoConfigPlain
		Quality videoQualitySerializable `json:"quality,omitempty"`
	}
	err := json.Unmarshal(b, &aux)
	if err != nil {
		return fmt.Errorf("unable to un-JSON-ize: %w", err)
	}
	*c = EncodeVideoConfig(aux.encodeVideoConfigPlain)
	c.Quality = nil
	if aux.Quality != nil {
		c.Quality, err = aux.Quality.Convert()
		if err != nil {
			return fmt.Errorf("unable to convert the 'quality' field: %w", err)
		}
	}
	return nil
}

func (c *EncodeVideoConfig) UnmarshalYAML(b []byte) (_err error) {
	m := map[string]any{}
	err := yaml.Unmarshal(b, &m)
	if err != nil {
		return fmt.Errorf("unable to unmarshal EncodeVideoConfig bytes to a map: %w", err)
	}
	quality := m["quality"]
	delete(m, "quality")
	b, err = yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("unable to remarshal back to EncodeVideoConfig from the map: %w", err)
	}
	var plain encodeVideoConfigPlain
	err = yaml.Unmarshal(b, &plain)
	if err != nil {
		return fmt.Errorf("unable to un-YAML-ize: %w", err)
	}
	*c = EncodeVideoConfig(plain)
	if quality != nil {
		sb, err := yaml.Marshal(quality)
		if err != nil {
			return fmt.Errorf("unable to remarshal the 'quality' field: %w", err)
		}
		s := videoQualitySerializable{}
		err = yaml.Unmarshal(sb, &s)
		if err != nil {
			return fmt.Errorf("unable to un-YAML-ize the 'quality' field: %w", err)
		}
		c.Quality, err = s.Convert()
		if err != nil {
			return fmt.Errorf("unable to convert the 'quality' field: %w", err)
		}
	}
	return nil
}

func (c EncodeVideoConfig) MarshalYAML() ([]byte, error) {
	cpy := encodeVideoConfigPlain(c)
	if cpy.Quality != nil {
		cpy.Quality = cpy.Quality.serializable()
	}
	return yaml.Marshal(cpy)
}

type EncodeAudioConfig struct {
	Codec         AudioCodec    `json:"codec,omitempty"          yaml:"codec,omitempty"`
	Quality       AudioQuality  `json:"quality,omitempty"        yaml:"quality,omitempty"`
	CustomOptions CustomOptions `json:"custom_options,omitempty" yaml:"custom_options,omitempty"`
}

type encodeAudioConfigPlain EncodeAudioConfig

func (c *EncodeAudioConfig) UnmarshalJSON(b []byte) (_err error) {
	var aux struct {
		encodeAudioConfigPlain
		Quality audioQualitySerializable `json:"quality,omitempty"`
	}
	err := json.Unmarshal(b, &aux)
	if err != nil {
		return fmt.Errorf("unable to un-JSON-ize: %w", err)
	}
	*c = EncodeAudioConfig(aux.encodeAudioConfigPlain)
	c.Quality = nil
	if aux.Quality != nil {
		c.Quality, err = aux.Quality.Convert()
		if err != nil {
			return fmt.Errorf("unable to convert the 'quality' field: %w", err)
		}
	}
	return nil
}

func (c *EncodeAudioConfig) UnmarshalYAML(b []byte) (_err error) {
	m := map[string]any{}
	err := yaml.Unmarshal(b, &m)
	if err != nil {
		return fmt.Errorf("unable to unmarshal EncodeAudioConfig bytes to a map: %w", err)
	}
	quality := m["quality"]
	delete(m, "quality")
	b, err = yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("unable to remarshal back to EncodeAudioConfig from the map: %w", err)
	}
	var plain encodeAudioConfigPlain
	err = yaml.Unmarshal(b, &plain)
	if err != nil {
		return fmt.Errorf("unable to un-YAML-ize: %w", err)
	}
	*c = EncodeAudioConfig(plain)
	if quality != nil {
		sb, err := yaml.Marshal(quality)
		if err != nil {
			return fmt.Errorf("unable to remarshal the 'quality' field: %w", err)
		}
		s := audioQualitySerializable{}
		err = yaml.Unmarshal(sb, &s)
		if err != nil {
			return fmt.Errorf("unable to un-YAML-ize the 'quality' field: %w", err)
		}
		c.Quality, err = s.Convert()
		if err != nil {
			return fmt.Errorf("unable to convert the 'quality' field: %w", err)
		}
	}
	return nil
}

func (c EncodeAudioConfig) MarshalYAML() ([]byte, error) {
	cpy := encodeAudioConfigPlain(c)
	if cpy.Quality != nil {
		cpy.Quality = cpy.Quality.serializable()
	}
	return yaml.Marshal(cpy)
}
