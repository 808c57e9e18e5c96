package synchronizer

import (
	"sync"
	"sync/atomic"
)

// Queue is a bounded single-producer queue; Push never blocks and
// evicts the oldest item when the queue is full.
type Queue[T any] struct {
	ch        chan T
	dropped   atomic.Uint64
	closeOnce sync.Once
	onDrop    func(T)
}

func NewQueue[T any](capacity int, onDrop func(T)) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		ch:     make(chan T, capacity),
		onDrop: onDrop,
	}
}

// Push reports false if an older item had to be dropped to fit the new one.
func (q *Queue[T]) Push(item T) bool {
	evicted := false
	for {
		select {
		case q.ch <- item:
			return !evicted
		default:
		}
		select {
		case old := <-q.ch:
			evicted = true
			q.dropped.Add(1)
			if q.onDrop != nil {
				q.onDrop(old)
			}
		default:
		}
	}
}

func (q *Queue[T]) C() <-chan T {
	return q.ch
}

func (q *Queue[T]) Len() int {
	return len(q.ch)
}

func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close must be called by the producer after its last Push.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.ch)
	})
}
