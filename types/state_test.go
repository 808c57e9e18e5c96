package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	allowed := map[[2]State]bool{
		{StateIdle, StateStarting}:      true,
		{StateStarting, StateRecording}: true,
		{StateStarting, StateFailed}:    true,
		{StateRecording, StateStopping}: true,
		{StateRecording, StateFailed}:   true,
		{StateStopping, StateStopped}:   true,
		{StateStopped, StateIdle}:       true,
		{StateFailed, StateIdle}:        true,
	}
	for from := StateIdle; from < EndOfState; from++ {
		for to := StateIdle; to < EndOfState; to++ {
			require.Equal(t, allowed[[2]State{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestErrorKind(t *testing.T) {
	require.Equal(t, ErrConfigurationInvalid, ErrorKind(ErrReplayDisabled))
	require.Equal(t, ErrEncoderInitFailed, ErrorKind(ErrEncoderNotFound))
	require.Nil(t, ErrorKind(nil))
}
