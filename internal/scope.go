package internal

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
)

var openHandles atomic.Int64

// OpenHandles is the number of resources currently registered in any Scope.
func OpenHandles() int64 {
	return openHandles.Load()
}

// Scope owns resources acquired together and releases them in reverse
// order of acquisition.
type Scope struct {
	Name   string
	closer *astikit.Closer
	open   atomic.Int64
	closed atomic.Bool
}

func NewScope(name string) *Scope {
	return &Scope{
		Name:   name,
		closer: astikit.NewCloser(),
	}
}

// Add registers the resource; if the scope is already closed the resource
// is closed immediately.
func (s *Scope) Add(
	ctx context.Context,
	name string,
	c io.Closer,
) error {
	if s.closed.Load() {
		logger.Debugf(ctx, "scope '%s' is already closed, releasing '%s' right away", s.Name, name)
		if err := c.Close(); err != nil {
			return fmt.Errorf("unable to close '%s': %w", name, err)
		}
		return fmt.Errorf("scope '%s' is already closed", s.Name)
	}

	logger.Debugf(ctx, "acquired '%s' (scope '%s')", name, s.Name)
	s.open.Add(1)
	openHandles.Add(1)
	s.closer.AddWithError(func() error {
		logger.Debugf(ctx, "releasing '%s' (scope '%s')", name, s.Name)
		defer func() {
			s.open.Add(-1)
			openHandles.Add(-1)
		}()
		if err := c.Close(); err != nil {
			return fmt.Errorf("unable to close '%s': %w", name, err)
		}
		return nil
	})
	return nil
}

func (s *Scope) OpenCount() int64 {
	return s.open.Load()
}

// Close releases everything once; subsequent calls are no-ops.
func (s *Scope) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.closer.Close()
}
