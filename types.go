package screenrec

import (
	"github.com/xaionaro-go/screenrec/types"
)

type Config = types.Config
type ConfigBuilder = types.ConfigBuilder
type State = types.State
type AudioSource = types.AudioSource
type AudioInputDevice = types.AudioInputDevice
type VideoEncoder = types.VideoEncoder
type VideoEncoderType = types.VideoCodec
type CaptureTarget = types.CaptureTarget

const (
	StateIdle      = types.StateIdle
	StateStarting  = types.StateStarting
	StateRecording = types.StateRecording
	StateStopping  = types.StateStopping
	StateStopped   = types.StateStopped
	StateFailed    = types.StateFailed

	AudioSourceDesktop    = types.AudioSourceDesktop
	AudioSourceMicrophone = types.AudioSourceMicrophone
	AudioSourceBoth       = types.AudioSourceBoth

	VideoEncoderTypeH264 = types.VideoCodecH264
	VideoEncoderTypeHEVC = types.VideoCodecHEVC
	VideoEncoderTypeAV1  = types.VideoCodecAV1
)

var (
	ErrConfigurationInvalid = types.ErrConfigurationInvalid
	ErrTargetNotFound       = types.ErrTargetNotFound
	ErrDeviceUnavailable    = types.ErrDeviceUnavailable
	ErrEncoderInitFailed    = types.ErrEncoderInitFailed
	ErrCaptureSessionLost   = types.ErrCaptureSessionLost
	ErrIO                   = types.ErrIO
	ErrAlreadyRecording     = types.ErrAlreadyRecording
	ErrNotRecording         = types.ErrNotRecording
	ErrInvalidState         = types.ErrInvalidState
	ErrReplayDisabled       = types.ErrReplayDisabled
)

func NewConfigBuilder() *ConfigBuilder {
	return types.NewConfigBuilder()
}
