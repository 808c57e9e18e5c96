package screenrec

import (
	"context"
	"fmt"
	"sync"

	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xsync"
)

// Slot allows at most one active recording among the recorders sharing it.
type Slot struct {
	locker xsync.Mutex
	owner  string
}

func NewSlot() *Slot {
	return &Slot{}
}

var defaultSlot = NewSlot()

// DefaultSlot is shared by all recorders created without OptionSlot.
func DefaultSlot() *Slot {
	return defaultSlot
}

// SlotToken proves ownership of the slot until released.
type SlotToken struct {
	slot        *Slot
	releaseOnce sync.Once
}

func (s *Slot) Acquire(
	ctx context.Context,
	owner string,
) (*SlotToken, error) {
	return xsync.DoR2(ctx, &s.locker, func() (*SlotToken, error) {
		if s.owner != "" {
			return nil, fmt.Errorf("the slot is taken by session %s: %w", s.owner, types.ErrAlreadyRecording)
		}
		s.owner = owner
		return &SlotToken{slot: s}, nil
	})
}

// Owner is the session holding the slot, or an empty string.
func (s *Slot) Owner(ctx context.Context) string {
	return xsync.DoR1(ctx, &s.locker, func() string {
		return s.owner
	})
}

func (t *SlotToken) Release(ctx context.Context) {
	t.releaseOnce.Do(func() {
		t.slot.locker.Do(ctx, func() {
			t.slot.owner = ""
		})
	})
}
