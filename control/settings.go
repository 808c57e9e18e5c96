package control

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// StartSettings are the parameters of a remote Start.
type StartSettings struct {
	OutputPath  string
	FPS         uint32
	RecordAudio bool
	// ProcessName is optional; the whole display is captured without it.
	ProcessName string
}

const (
	fieldOutputPath  = "output_path"
	fieldFPS         = "fps"
	fieldRecordAudio = "record_audio"
	fieldProcessName = "process_name"
	fieldPath        = "path"
)

func (s StartSettings) ToStruct() (*structpb.Struct, error) {
	m := map[string]any{
		fieldOutputPath:  s.OutputPath,
		fieldRecordAudio: s.RecordAudio,
	}
	// zero means the server's default
	if s.FPS != 0 {
		m[fieldFPS] = float64(s.FPS)
	}
	if s.ProcessName != "" {
		m[fieldProcessName] = s.ProcessName
	}
	return structpb.NewStruct(m)
}

func stringField(in *structpb.Struct, name string) (string, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return "", nil
	}
	if _, isString := v.GetKind().(*structpb.Value_StringValue); !isString {
		return "", fmt.Errorf("field '%s' must be a string", name)
	}
	return v.GetStringValue(), nil
}

func StartSettingsFromStruct(in *structpb.Struct) (StartSettings, error) {
	var (
		s   StartSettings
		err error
	)
	if s.OutputPath, err = stringField(in, fieldOutputPath); err != nil {
		return s, err
	}
	if s.OutputPath == "" {
		return s, fmt.Errorf("field '%s' is required", fieldOutputPath)
	}
	if s.ProcessName, err = stringField(in, fieldProcessName); err != nil {
		return s, err
	}

	fields := in.GetFields()
	if v, ok := fields[fieldFPS]; ok {
		if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); !isNumber {
			return s, fmt.Errorf("field '%s' must be a number", fieldFPS)
		}
		fps := v.GetNumberValue()
		if fps < 1 || fps != float64(uint32(fps)) {
			return s, fmt.Errorf("field '%s' must be a positive integer, got %v", fieldFPS, fps)
		}
		s.FPS = uint32(fps)
	}
	if v, ok := fields[fieldRecordAudio]; ok {
		if _, isBool := v.GetKind().(*structpb.Value_BoolValue); !isBool {
			return s, fmt.Errorf("field '%s' must be a boolean", fieldRecordAudio)
		}
		s.RecordAudio = v.GetBoolValue()
	}
	return s, nil
}
