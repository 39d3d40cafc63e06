// File: pool/pool.go
// Package pool — generic fixed-size object pool with lock-free loan access.
// License: Apache-2.0

package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/photondaq/framepool/api"
	"github.com/photondaq/framepool/core/concurrency"
)

// FactoryFunc builds one pool item. A factory error aborts construction or
// growth without mutating the pool.
type FactoryFunc[T any] func() (T, error)

// ResetFunc restores an item before it re-enters the free queue. Reset
// hooks are expected to be infallible; a panicking hook is recovered and
// logged, and the slot is still returned.
type ResetFunc[T any] func(*T)

// Pool arbitrates access to a fixed set of pre-allocated items.
//
// The availability semaphore counts free slots; the MPMC queue holds their
// indices. The structural lock is only taken briefly: to cache a slot
// pointer at acquire time, to run the reset hook at release, and
// exclusively during growth. Item access through a Loaned handle is
// lock-free because exclusivity is the synchronization.
//
// Waiters are woken in arrival order (the semaphore is FIFO), which rules
// out starvation under bounded contention; callers must not rely on
// stricter ordering than that.
type Pool[T any] struct {
	mu    sync.RWMutex
	slots []*slot[T]
	free  *concurrency.MPMCQueue[int]

	sem     *semaphore.Weighted
	factory FactoryFunc[T]
	reset   ResetFunc[T]

	size      atomic.Int64
	inUse     atomic.Int64
	highWater atomic.Int64
	acquires  atomic.Uint64
	returns   atomic.Uint64
	exhausted atomic.Uint64
	timeouts  atomic.Uint64

	onBackpressure atomic.Pointer[func(api.BackpressureKind)]

	log *slog.Logger
}

// slot storage is allocated per entry so that appending to the table never
// moves an existing item.
type slot[T any] struct {
	value T
}

// New eagerly builds size items via factory. reset may be nil. The only
// construction failure mode is a factory error, which is fatal: no pool is
// created.
func New[T any](size int, factory FactoryFunc[T], reset ResetFunc[T]) (*Pool[T], error) {
	if size < 1 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, api.ErrInvalidArgument,
			"pool size must be at least 1").WithContext("size", size)
	}
	if factory == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, api.ErrInvalidArgument,
			"pool factory must not be nil")
	}

	p := &Pool[T]{
		slots:   make([]*slot[T], 0, size),
		free:    concurrency.NewMPMCQueue[int](size),
		sem:     semaphore.NewWeighted(int64(size)),
		factory: factory,
		reset:   reset,
		log:     slog.Default(),
	}
	for i := 0; i < size; i++ {
		v, err := factory()
		if err != nil {
			return nil, api.NewError(api.ErrCodeConstruction, api.ErrConstructionFailed,
				fmt.Sprintf("factory failed: %v", err)).WithContext("slot", i)
		}
		p.slots = append(p.slots, &slot[T]{value: v})
		p.free.Enqueue(i)
	}
	p.size.Store(int64(size))
	return p, nil
}

// SetLogger replaces the pool's logger. Safe only before the pool is shared.
func (p *Pool[T]) SetLogger(log *slog.Logger) {
	if log != nil {
		p.log = log
	}
}

// OnBackpressure installs a hook fired whenever a non-suspending or timed
// acquire fails. The hook must be fast; it runs on the acquiring goroutine.
func (p *Pool[T]) OnBackpressure(fn func(api.BackpressureKind)) {
	if fn == nil {
		p.onBackpressure.Store(nil)
		return
	}
	p.onBackpressure.Store(&fn)
}

func (p *Pool[T]) signalBackpressure(kind api.BackpressureKind) {
	if fn := p.onBackpressure.Load(); fn != nil {
		(*fn)(kind)
	}
}

// Acquire suspends the caller until a slot is free or ctx is done. A
// cancelled wait consumes nothing: the semaphore hands the permit to the
// next waiter, so no slot is leaked or double-delivered.
func (p *Pool[T]) Acquire(ctx context.Context) (*Loaned[T], error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return p.takeSlot(), nil
}

// TryAcquire returns a loan if a slot was free at this instant, else
// api.ErrPoolExhausted. Never suspends.
func (p *Pool[T]) TryAcquire() (*Loaned[T], error) {
	if !p.sem.TryAcquire(1) {
		p.exhausted.Add(1)
		p.signalBackpressure(api.BackpressureExhausted)
		return nil, api.ErrPoolExhausted
	}
	return p.takeSlot(), nil
}

// TryAcquireTimeout suspends up to d, returning api.ErrAcquireTimeout on
// expiry with pool state untouched. Producers feeding from sources with
// their own retention window (a camera ring buffer, typically ~200ms)
// should keep d well under that window.
func (p *Pool[T]) TryAcquireTimeout(d time.Duration) (*Loaned[T], error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.timeouts.Add(1)
		p.signalBackpressure(api.BackpressureTimeout)
		p.log.Warn("pool acquire timeout",
			"timeout", d,
			"available", p.Available(),
			"size", p.Size())
		return nil, api.ErrAcquireTimeout
	}
	return p.takeSlot(), nil
}

// takeSlot runs after a successful semaphore decrement. An index is
// enqueued before its permit is released, so an index for this permit has
// been published or is about to be. The queue is fail-fast: Dequeue
// reports a miss while a concurrent release has claimed its cell but not
// yet stamped the sequence number, so a miss here is transient and the
// dequeue is retried until the in-flight enqueue lands.
func (p *Pool[T]) takeSlot() *Loaned[T] {
	var (
		idx int
		s   *slot[T]
	)
	for {
		p.mu.RLock()
		i, ok := p.free.Dequeue()
		if ok {
			idx = i
			s = p.slots[i]
		}
		p.mu.RUnlock()
		if ok {
			break
		}
		runtime.Gosched()
	}

	p.acquires.Add(1)
	used := p.inUse.Add(1)
	for {
		hw := p.highWater.Load()
		if used <= hw || p.highWater.CompareAndSwap(hw, used) {
			break
		}
	}
	return &Loaned[T]{pool: p, idx: idx, item: &s.value}
}

// release returns idx to the free queue. Reset runs first, under the brief
// shared lock; a panicking reset hook never corrupts bookkeeping.
func (p *Pool[T]) release(idx int) {
	if p.reset != nil {
		p.mu.RLock()
		s := p.slots[idx]
		p.mu.RUnlock()
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Warn("pool reset hook panicked; slot returned anyway",
						"slot", idx, "panic", r)
				}
			}()
			p.reset(&s.value)
		}()
	}

	// Queue capacity covers every live index, so Enqueue can only miss
	// while a concurrent acquire has claimed the head cell but not yet
	// stamped it free. Retry until that dequeue lands.
	for {
		p.mu.RLock()
		ok := p.free.Enqueue(idx)
		p.mu.RUnlock()
		if ok {
			break
		}
		runtime.Gosched()
	}

	p.inUse.Add(-1)
	p.returns.Add(1)
	p.sem.Release(1)
}

// Grow appends count slots. Existing slot storage never moves, so
// outstanding loans keep their cached references. A factory error leaves
// the pool exactly as it was.
func (p *Pool[T]) Grow(count int) error {
	if count < 1 {
		return api.NewError(api.ErrCodeInvalidArgument, api.ErrInvalidArgument,
			"grow count must be at least 1").WithContext("count", count)
	}

	// Build outside the lock; only mutate once everything exists.
	fresh := make([]*slot[T], 0, count)
	for i := 0; i < count; i++ {
		v, err := p.factory()
		if err != nil {
			return api.NewError(api.ErrCodeConstruction, api.ErrConstructionFailed,
				fmt.Sprintf("factory failed during grow: %v", err)).WithContext("slot", i)
		}
		fresh = append(fresh, &slot[T]{value: v})
	}

	p.mu.Lock()
	oldSize := len(p.slots)
	newSize := oldSize + count
	if newSize > p.free.Cap() {
		// The exclusive lock excludes all queue traffic, so draining into
		// a larger queue is safe here and nowhere else.
		bigger := concurrency.NewMPMCQueue[int](newSize)
		for {
			idx, ok := p.free.Dequeue()
			if !ok {
				break
			}
			bigger.Enqueue(idx)
		}
		p.free = bigger
	}
	p.slots = append(p.slots, fresh...)
	for i := oldSize; i < newSize; i++ {
		p.free.Enqueue(i)
	}
	p.mu.Unlock()

	p.size.Store(int64(newSize))
	p.sem.Release(int64(count))

	p.log.Warn("pool grown; producer is outpacing consumers",
		"old_size", oldSize, "new_size", newSize)
	return nil
}

// Size reports the total slot count. Snapshot only.
func (p *Pool[T]) Size() int {
	return int(p.size.Load())
}

// Available reports the free slot count. Snapshot only, not
// transactionally consistent with concurrent acquires.
func (p *Pool[T]) Available() int {
	return int(p.size.Load() - p.inUse.Load())
}

// Stats returns acquisition counters. Snapshot only.
func (p *Pool[T]) Stats() api.PoolStats {
	size := p.size.Load()
	used := p.inUse.Load()
	return api.PoolStats{
		Capacity:      int(size),
		Available:     int(size - used),
		InUse:         int(used),
		HighWaterMark: int(p.highWater.Load()),
		TotalAcquires: p.acquires.Load(),
		TotalReturns:  p.returns.Load(),
		Exhausted:     p.exhausted.Load(),
		Timeouts:      p.timeouts.Load(),
	}
}

// Loaned is an exclusive, scope-bound checkout of one slot. The slot
// reference is cached at acquire time; Get never locks. Go has no
// destructors, so disposal is an explicit, idempotent Release — callers
// defer it so every exit path returns the slot.
type Loaned[T any] struct {
	pool *Pool[T]
	idx  int
	item *T
	done atomic.Bool
}

// Get returns the loaned item. Lock-free: exclusivity guarantees no
// concurrent writer exists for this slot while on loan. Panics if the loan
// was already released.
func (l *Loaned[T]) Get() *T {
	if l.done.Load() {
		panic("framepool: use of released loan")
	}
	return l.item
}

// SlotIndex reports which slot backs this loan. Diagnostic only.
func (l *Loaned[T]) SlotIndex() int { return l.idx }

// Release returns the slot to the pool. Idempotent; further Get calls
// panic.
func (l *Loaned[T]) Release() {
	if !l.done.CompareAndSwap(false, true) {
		return
	}
	l.pool.release(l.idx)
}

// released reports whether the loan has been consumed.
func (l *Loaned[T]) released() bool { return l.done.Load() }

// forget consumes the loan without returning the slot. The caller takes
// over responsibility for the eventual release. Reports whether this call
// was the one that consumed the loan.
func (l *Loaned[T]) forget() bool {
	return l.done.CompareAndSwap(false, true)
}

// CloneItem deep-copies the value via clone and immediately releases the
// slot.
func (l *Loaned[T]) CloneItem(clone func(T) T) T {
	v := clone(*l.Get())
	l.Release()
	return v
}

// TryCloneIntoPool deep-copies the value into a freshly acquired slot of
// the same pool, leaving this loan untouched. Fails with
// api.ErrPoolExhausted when no slot is free.
func (l *Loaned[T]) TryCloneIntoPool(clone func(T) T) (*Loaned[T], error) {
	nl, err := l.pool.TryAcquire()
	if err != nil {
		return nil, err
	}
	*nl.Get() = clone(*l.Get())
	return nl, nil
}
