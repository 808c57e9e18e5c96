package screenrec

import (
	"github.com/xaionaro-go/screenrec/types"
)

type Option interface {
	apply(*Recorder)
}

type Options []Option

func (opts Options) apply(r *Recorder) {
	for _, opt := range opts {
		opt.apply(r)
	}
}

// OptionFactory replaces the platform capture/encoding backend.
type OptionFactory struct {
	types.Factory
}

func (opt OptionFactory) apply(r *Recorder) {
	r.factory = opt.Factory
}

// OptionSlot makes the recorder compete for the given slot instead of the default one.
type OptionSlot struct {
	*Slot
}

func (opt OptionSlot) apply(r *Recorder) {
	r.slot = opt.Slot
}

type OptionTarget types.CaptureTarget

func (opt OptionTarget) apply(r *Recorder) {
	r.target = types.CaptureTarget(opt)
}
