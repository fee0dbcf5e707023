package queue

import (
	"container/heap"
	"time"
)

// TimerHeap orders values by the time they become due. Entries due at the
// same instant come out in insertion order.
//
// TimerHeap is not safe for concurrent use; the scheduled pool guards it
// with its own mutex.
type TimerHeap[T any] struct {
	entries timerEntries[T]
	seq     uint64
}

type timerEntry[T any] struct {
	at    time.Time
	seq   uint64
	value T
}

type timerEntries[T any] []timerEntry[T]

func (e timerEntries[T]) Len() int { return len(e) }

func (e timerEntries[T]) Less(i, j int) bool {
	if e[i].at.Equal(e[j].at) {
		return e[i].seq < e[j].seq
	}
	return e[i].at.Before(e[j].at)
}

func (e timerEntries[T]) Swap(i, j int) { e[i], e[j] = e[j], e[i] }

func (e *timerEntries[T]) Push(x any) { *e = append(*e, x.(timerEntry[T])) }

func (e *timerEntries[T]) Pop() any {
	old := *e
	n := len(old)
	item := old[n-1]
	old[n-1] = timerEntry[T]{}
	*e = old[:n-1]
	return item
}

// Push schedules v to become due at at.
func (h *TimerHeap[T]) Push(at time.Time, v T) {
	h.seq++
	heap.Push(&h.entries, timerEntry[T]{at: at, seq: h.seq, value: v})
}

// Next reports when the earliest entry becomes due.
func (h *TimerHeap[T]) Next() (time.Time, bool) {
	if len(h.entries) == 0 {
		return time.Time{}, false
	}
	return h.entries[0].at, true
}

// PopDue removes and returns every entry due at or before now, earliest first.
func (h *TimerHeap[T]) PopDue(now time.Time) []T {
	var due []T
	for len(h.entries) > 0 && !h.entries[0].at.After(now) {
		due = append(due, heap.Pop(&h.entries).(timerEntry[T]).value)
	}
	return due
}

// Drain removes and returns every entry regardless of due time.
func (h *TimerHeap[T]) Drain() []T {
	out := make([]T, 0, len(h.entries))
	for len(h.entries) > 0 {
		out = append(out, heap.Pop(&h.entries).(timerEntry[T]).value)
	}
	return out
}

// Len reports the number of pending entries.
func (h *TimerHeap[T]) Len() int { return len(h.entries) }
