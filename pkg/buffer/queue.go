package buffer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/c360/cstrloop/errors"
)

// Queue is a bounded SPSC queue with drop-oldest overflow.
type Queue[T any] struct {
	ch     chan T
	onDrop func(T)

	mu     sync.Mutex // serializes Put against eviction
	closed atomic.Bool

	// Statistics, always collected
	puts  atomic.Int64
	gets  atomic.Int64
	drops atomic.Int64
}

// Option configures a Queue.
type Option[T any] func(*Queue[T])

// WithDropHandler sets a callback invoked for every item evicted on overflow.
func WithDropHandler[T any](fn func(T)) Option[T] {
	return func(q *Queue[T]) {
		q.onDrop = fn
	}
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue[T any](capacity int, opts ...Option[T]) (*Queue[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Queue", "NewQueue", "capacity must be positive")
	}

	q := &Queue[T]{
		ch: make(chan T, capacity),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Put adds an item, evicting the oldest item if the queue is full.
// Put never blocks.
func (q *Queue[T]) Put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Checked under the lock so Close cannot race a send on a closed channel
	if q.closed.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Queue", "Put", "queue closed")
	}

	for {
		select {
		case q.ch <- item:
			q.puts.Add(1)
			return nil
		default:
			// Full: evict the oldest and try again
			select {
			case old := <-q.ch:
				q.drops.Add(1)
				if q.onDrop != nil {
					q.onDrop(old)
				}
			default:
				// Consumer drained it between selects; loop retries the send
			}
		}
	}
}

// Get blocks until an item is available or the context is done.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	select {
	case item, ok := <-q.ch:
		if !ok {
			var zero T
			return zero, errors.WrapInvalid(errors.ErrAlreadyStopped, "Queue", "Get", "queue closed")
		}
		q.gets.Add(1)
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, errors.WrapTransient(ctx.Err(), "Queue", "Get", "wait for item")
	}
}

// TryGet returns the next item without blocking; ok is false when empty.
func (q *Queue[T]) TryGet() (T, bool) {
	select {
	case item, ok := <-q.ch:
		if !ok {
			var zero T
			return zero, false
		}
		q.gets.Add(1)
		return item, true
	default:
		var zero T
		return zero, false
	}
}

// DrainLatest removes up to max buffered items and returns them in arrival
// order. The caller applies the newest; older entries are already superseded.
func (q *Queue[T]) DrainLatest(max int) []T {
	var items []T
	for len(items) < max {
		item, ok := q.TryGet()
		if !ok {
			break
		}
		items = append(items, item)
	}
	return items
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Stats returns cumulative put/get/drop counts.
func (q *Queue[T]) Stats() (puts, gets, drops int64) {
	return q.puts.Load(), q.gets.Load(), q.drops.Load()
}

// Close marks the queue closed. Buffered items remain readable via TryGet
// until drained; Put fails afterwards.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		q.mu.Lock()
		close(q.ch)
		q.mu.Unlock()
	}
}
