package types

import (
	"fmt"
)

type State uint

const (
	StateUndefined = State(iota)
	StateIdle
	StateStarting
	StateRecording
	StateStopping
	StateStopped
	StateFailed
	EndOfState
)

func (s State) String() string {
	switch s {
	case StateUndefined:
		return "<undefined>"
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("unexpected_state_%d", uint(s))
}

// IsTerminal reports whether the recording session is over.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// IsActive reports whether a recording session exists and still produces media.
func (s State) IsActive() bool {
	return s == StateRecording || s == StateStopping
}

var stateTransitions = map[State][]State{
	StateIdle:      {StateStarting},
	StateStarting:  {StateRecording, StateFailed},
	StateRecording: {StateStopping, StateFailed},
	StateStopping:  {StateStopped},
	StateStopped:   {StateIdle},
	StateFailed:    {StateIdle},
}

func (s State) CanTransitionTo(next State) bool {
	for _, candidate := range stateTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}
