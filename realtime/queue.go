package realtime

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueSize bounds a subscriber's backlog.
const DefaultQueueSize = 256

// Queue is a bounded, non-blocking event buffer for one subscriber. When the
// buffer is full the newest event is dropped and a lag signal is raised so
// the consumer can resync.
type Queue[T any] struct {
	mu      sync.RWMutex
	events  chan T
	lagged  chan struct{}
	closed  bool
	dropped atomic.Uint64
	onClose func()
}

// NewQueue returns a queue holding up to size events.
func NewQueue[T any](size int, onClose func()) *Queue[T] {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue[T]{events: make(chan T, size), lagged: make(chan struct{}, 1), onClose: onClose}
}

// Push enqueues v without blocking. It reports false when v was dropped.
func (q *Queue[T]) Push(v T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.events <- v:
		return true
	default:
		q.dropped.Add(1)
		q.signalLag()
		return false
	}
}

// MarkLagged raises the lag signal without dropping anything locally.
func (q *Queue[T]) MarkLagged() {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.closed {
		q.signalLag()
	}
}

func (q *Queue[T]) signalLag() {
	select {
	case q.lagged <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) Events() <-chan T { return q.events }

func (q *Queue[T]) Lagged() <-chan struct{} { return q.lagged }

// Dropped is the number of events lost to overflow.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }

// Close unsubscribes. Buffered events stay readable until drained.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.events)
	q.mu.Unlock()
	if q.onClose != nil {
		q.onClose()
	}
	return nil
}

// Map forwards src through fn into a new queue of the same size. Events for
// which fn reports false are skipped. Closing the result closes src.
func Map[S, T any](src *Queue[S], fn func(S) (T, bool)) *Queue[T] {
	dst := NewQueue[T](cap(src.events), func() { _ = src.Close() })
	go func() {
		defer dst.Close()
		for {
			select {
			case v, ok := <-src.Events():
				if !ok {
					return
				}
				if out, keep := fn(v); keep {
					dst.Push(out)
				}
			case <-src.Lagged():
				dst.MarkLagged()
			}
		}
	}()
	return dst
}
