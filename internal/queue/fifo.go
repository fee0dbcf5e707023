// Package queue holds the unbounded FIFO behind the serial pool and the
// timer heap behind the scheduled pool.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push after Close, and by Pop once a closed queue
// has been drained.
var ErrClosed = errors.New("queue is closed")

// FIFO is an unbounded, mutex-guarded first-in first-out queue.
//
// Consumers are woken through a one-slot notification channel, so Push never
// blocks. A consumer that leaves items behind passes the signal on.
type FIFO[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	notifyC chan struct{}
	closeC  chan struct{}
}

// NewFIFO returns an empty open queue.
func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{
		notifyC: make(chan struct{}, 1),
		closeC:  make(chan struct{}),
	}
}

// Push appends v. It fails only when the queue is closed.
func (q *FIFO[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop removes the oldest element, blocking until one is available.
// Items pushed before Close are still returned; ErrClosed is reported only
// when the queue is closed and empty.
func (q *FIFO[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		v, ok, closed := q.take()
		if ok {
			return v, nil
		}
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-q.notifyC:
		case <-q.closeC:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryPop removes the oldest element without blocking.
func (q *FIFO[T]) TryPop() (T, bool) {
	v, ok, _ := q.take()
	return v, ok
}

// Len reports the number of queued elements.
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops further pushes. Safe to call more than once.
func (q *FIFO[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closeC)
}

func (q *FIFO[T]) take() (v T, ok bool, closed bool) {
	q.mu.Lock()
	if q.head == len(q.items) {
		closed = q.closed
		q.mu.Unlock()
		return v, false, closed
	}

	var zero T
	v = q.items[q.head]
	q.items[q.head] = zero
	q.head++

	remaining := len(q.items) - q.head
	if remaining == 0 {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		// compact once the consumed prefix dominates the backing array
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.mu.Unlock()

	if remaining > 0 {
		q.signal()
	}
	return v, true, false
}

func (q *FIFO[T]) signal() {
	select {
	case q.notifyC <- struct{}{}:
	default:
	}
}
