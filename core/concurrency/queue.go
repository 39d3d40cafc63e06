// File: core/concurrency/queue.go
// Package concurrency provides the lock-free primitives used by the pools.
// License: Apache-2.0
//
// Bounded MPMC queue using per-cell sequence numbers (the Vyukov scheme).
// Enqueue and Dequeue are safe from any number of goroutines and never
// block; both fail fast when the queue is full or empty.

package concurrency

import "sync/atomic"

// MPMCQueue is a bounded multi-producer/multi-consumer queue.
// Capacity is rounded up to a power of two at construction.
type MPMCQueue[T any] struct {
	head atomic.Uint64
	_    [cacheLinePad]byte
	tail atomic.Uint64
	_    [cacheLinePad]byte
	mask uint64
	ring []seqCell[T]
}

const cacheLinePad = 64

type seqCell[T any] struct {
	seq atomic.Uint64
	val T
}

// NewMPMCQueue builds a queue holding at least capacity items.
func NewMPMCQueue[T any](capacity int) *MPMCQueue[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &MPMCQueue[T]{
		mask: uint64(size - 1),
		ring: make([]seqCell[T], size),
	}
	for i := range q.ring {
		q.ring[i].seq.Store(uint64(i))
	}
	return q
}

// Enqueue appends val; returns false if the queue is full.
func (q *MPMCQueue[T]) Enqueue(val T) bool {
	for {
		tail := q.tail.Load()
		c := &q.ring[tail&q.mask]
		diff := int64(c.seq.Load()) - int64(tail)
		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(tail, tail+1) {
				c.val = val
				c.seq.Store(tail + 1)
				return true
			}
		case diff < 0:
			return false // full
		}
		// tail moved under us, retry
	}
}

// Dequeue removes the oldest item; ok is false if the queue is empty.
func (q *MPMCQueue[T]) Dequeue() (item T, ok bool) {
	for {
		head := q.head.Load()
		c := &q.ring[head&q.mask]
		diff := int64(c.seq.Load()) - int64(head+1)
		switch {
		case diff == 0:
			if q.head.CompareAndSwap(head, head+1) {
				item = c.val
				var zero T
				c.val = zero
				c.seq.Store(head + q.mask + 1)
				return item, true
			}
		case diff < 0:
			var zero T
			return zero, false // empty
		}
	}
}

// Len returns the current population. Advisory under concurrency.
func (q *MPMCQueue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap returns the rounded capacity.
func (q *MPMCQueue[T]) Cap() int {
	return len(q.ring)
}
