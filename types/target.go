package types

import (
	"fmt"
)

type CaptureTargetKind uint

const (
	CaptureTargetKindDisplay = CaptureTargetKind(iota)
	CaptureTargetKindProcess
	CaptureTargetKindWindow
)

func (k CaptureTargetKind) String() string {
	switch k {
	case CaptureTargetKindDisplay:
		return "display"
	case CaptureTargetKindProcess:
		return "process"
	case CaptureTargetKindWindow:
		return "window"
	}
	return fmt.Sprintf("unexpected_capture_target_kind_%d", uint(k))
}

// CaptureTarget names what to capture; it is resolved to a live handle only at start.
type CaptureTarget struct {
	Kind CaptureTargetKind
	// Name is a display name (empty means the primary one), a process
	// image name or a window title, depending on Kind.
	Name string
}

func DisplayTarget(name string) CaptureTarget {
	return CaptureTarget{Kind: CaptureTargetKindDisplay, Name: name}
}

func ProcessTarget(name string) CaptureTarget {
	return CaptureTarget{Kind: CaptureTargetKindProcess, Name: name}
}

func WindowTarget(title string) CaptureTarget {
	return CaptureTarget{Kind: CaptureTargetKindWindow, Name: title}
}

func (t CaptureTarget) String() string {
	if t.Name == "" {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s '%s'", t.Kind, t.Name)
}

type ResolvedTarget struct {
	Target CaptureTarget

	// WindowTitle is set when a specific window is captured.
	WindowTitle string
	PID         int
	Display     string
}
