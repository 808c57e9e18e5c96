package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (fn closerFunc) Close() error {
	return fn()
}

func TestScopeReleasesInReverseOrder(t *testing.T) {
	ctx := context.Background()
	before := OpenHandles()

	var order []string
	s := NewScope("test")
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(ctx, name, closerFunc(func() error {
			order = append(order, name)
			return nil
		})))
	}
	require.Equal(t, int64(3), s.OpenCount())
	require.Equal(t, before+3, OpenHandles())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, []string{"c", "b", "a"}, order)
	require.Zero(t, s.OpenCount())
	require.Equal(t, before, OpenHandles())

	closed := false
	err := s.Add(ctx, "late", closerFunc(func() error {
		closed = true
		return nil
	}))
	require.Error(t, err)
	require.True(t, closed)
}

func TestScopeCloseReportsErrors(t *testing.T) {
	ctx := context.Background()
	s := NewScope("test")
	require.NoError(t, s.Add(ctx, "broken", closerFunc(func() error {
		return errors.New("boom")
	})))
	require.Error(t, s.Close())
	require.Zero(t, s.OpenCount())
}

func TestCallWithTimeout(t *testing.T) {
	ctx := context.Background()

	v, err := CallWithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 42, v)

	released := make(chan int, 1)
	_, err = CallWithTimeout(ctx, 10*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(100 * time.Millisecond)
		return 7, nil
	}, func(v int) {
		released <- v
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	select {
	case v := <-released:
		require.Equal(t, 7, v)
	case <-time.After(5 * time.Second):
		t.Fatal("the late result was not released")
	}
}
