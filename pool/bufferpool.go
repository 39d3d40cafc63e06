// File: pool/bufferpool.go
// Package pool — fixed-capacity byte buffer pool with zero-copy freeze.
// License: Apache-2.0
//
// BufferPool sits between a high-rate frame producer and its consumers.
// The producer acquires a buffer, fills it (usually via one raw copy from
// an SDK callback), and freezes it. Freezing converts the exclusive loan
// into a shared FrozenView over the same backing memory; the slot returns
// to the pool when the last view clone is released.

package pool

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/photondaq/framepool/api"
)

// frame is one pooled buffer: fixed-capacity storage plus the valid length.
type frame struct {
	data []byte
	n    int
}

// BufferPool is a Pool of fixed-capacity byte buffers.
type BufferPool struct {
	inner    *Pool[frame]
	capacity int
}

// NewBufferPool pre-allocates poolSize buffers of exactly bufferCapacity
// bytes each. Buffer storage comes from the platform slab allocator
// (hugepage-backed mappings on Linux when large enough). A nil log falls
// back to slog.Default; pass the owning component's logger so the
// construction line and later warnings carry its identity.
func NewBufferPool(poolSize, bufferCapacity int, log *slog.Logger) (*BufferPool, error) {
	if bufferCapacity < 1 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, api.ErrInvalidArgument,
			"buffer capacity must be at least 1").WithContext("buffer_capacity", bufferCapacity)
	}
	if log == nil {
		log = slog.Default()
	}
	inner, err := New(poolSize,
		func() (frame, error) { return frame{data: allocSlab(bufferCapacity)}, nil },
		func(f *frame) { f.n = 0 })
	if err != nil {
		return nil, err
	}
	inner.SetLogger(log)
	log.Info("buffer pool created",
		"pool_size", poolSize,
		"buffer_capacity", bufferCapacity,
		"total_mb", float64(poolSize*bufferCapacity)/(1024*1024))
	return &BufferPool{inner: inner, capacity: bufferCapacity}, nil
}

// SetLogger replaces the pool's logger. Safe only before the pool is shared.
func (bp *BufferPool) SetLogger(log *slog.Logger) { bp.inner.SetLogger(log) }

// OnBackpressure installs the backpressure hook; see Pool.OnBackpressure.
func (bp *BufferPool) OnBackpressure(fn func(api.BackpressureKind)) {
	bp.inner.OnBackpressure(fn)
}

// Acquire suspends until a buffer is free or ctx is done.
func (bp *BufferPool) Acquire(ctx context.Context) (*LoanedBuffer, error) {
	loan, err := bp.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &LoanedBuffer{loan: loan, pool: bp}, nil
}

// TryAcquire returns a buffer if one was free at this instant, else
// api.ErrPoolExhausted.
func (bp *BufferPool) TryAcquire() (*LoanedBuffer, error) {
	loan, err := bp.inner.TryAcquire()
	if err != nil {
		return nil, err
	}
	return &LoanedBuffer{loan: loan, pool: bp}, nil
}

// TryAcquireTimeout suspends up to d; api.ErrAcquireTimeout on expiry.
func (bp *BufferPool) TryAcquireTimeout(d time.Duration) (*LoanedBuffer, error) {
	loan, err := bp.inner.TryAcquireTimeout(d)
	if err != nil {
		return nil, err
	}
	return &LoanedBuffer{loan: loan, pool: bp}, nil
}

// Grow appends count buffers; outstanding loans and views stay valid.
func (bp *BufferPool) Grow(count int) error { return bp.inner.Grow(count) }

// Size reports the total buffer count.
func (bp *BufferPool) Size() int { return bp.inner.Size() }

// Available reports the free buffer count. Snapshot only.
func (bp *BufferPool) Available() int { return bp.inner.Available() }

// BufferCapacity reports the fixed per-buffer capacity in bytes.
func (bp *BufferPool) BufferCapacity() int { return bp.capacity }

// Stats reports capacity, availability, high-water mark and acquisition
// totals. Snapshot only.
func (bp *BufferPool) Stats() api.PoolStats {
	st := bp.inner.Stats()
	st.BufferCapacity = bp.capacity
	return st
}

// LoanedBuffer is the exclusive checkout of one pooled buffer.
// Dispose of it exactly one way: Freeze it, or Release it (defer-friendly,
// idempotent).
type LoanedBuffer struct {
	loan *Loaned[frame]
	pool *BufferPool
}

// Bytes returns the valid region written so far.
func (b *LoanedBuffer) Bytes() []byte {
	f := b.loan.Get()
	return f.data[:f.n]
}

// Writable exposes the full fixed-capacity writable region. Pair with
// SetLen to mark how much was written.
func (b *LoanedBuffer) Writable() []byte {
	return b.loan.Get().data
}

// SetLen marks the first n bytes as valid.
func (b *LoanedBuffer) SetLen(n int) error {
	if b.loan.released() {
		return api.ErrBufferConsumed
	}
	if n < 0 || n > b.pool.capacity {
		return api.ErrCopyOverflow
	}
	b.loan.Get().n = n
	return nil
}

// Len reports the valid length.
func (b *LoanedBuffer) Len() int { return b.loan.Get().n }

// Capacity reports the fixed buffer capacity.
func (b *LoanedBuffer) Capacity() int { return b.pool.capacity }

// SlotIndex reports the backing slot. Diagnostic only.
func (b *LoanedBuffer) SlotIndex() int { return b.loan.SlotIndex() }

// CopyFromSlice copies src into the buffer and sets the valid length.
// Fails with api.ErrCopyOverflow, writing nothing, if src exceeds the
// buffer capacity.
func (b *LoanedBuffer) CopyFromSlice(src []byte) error {
	if b.loan.released() {
		return api.ErrBufferConsumed
	}
	f := b.loan.Get()
	if len(src) > len(f.data) {
		return api.ErrCopyOverflow
	}
	copy(f.data, src)
	f.n = len(src)
	return nil
}

// CopyFromExternal copies length bytes from a raw source address, as handed
// to a hardware SDK callback. This is the single place a raw address/length
// pair is trusted; the length is validated against the buffer capacity
// before any byte moves.
//
// The caller must guarantee src points at least length readable bytes for
// the duration of the call.
func (b *LoanedBuffer) CopyFromExternal(src unsafe.Pointer, length int) error {
	if b.loan.released() {
		return api.ErrBufferConsumed
	}
	f := b.loan.Get()
	if length < 0 || length > len(f.data) {
		return api.ErrCopyOverflow
	}
	copy(f.data, unsafe.Slice((*byte)(src), length))
	f.n = length
	return nil
}

// Release returns the buffer to the pool without freezing. Idempotent;
// a no-op after Freeze.
func (b *LoanedBuffer) Release() { b.loan.Release() }

// Freeze consumes the loan and returns a shared, immutable view over the
// same backing memory. No bytes are copied. The slot returns to the pool
// exactly once, when the last view clone is released. Panics if the buffer
// was already frozen or released.
func (b *LoanedBuffer) Freeze() *FrozenView {
	f := b.loan.Get()
	shared := &frozenShared{
		pool: b.pool,
		idx:  b.loan.SlotIndex(),
		data: f.data,
		n:    f.n,
	}
	shared.refs.Store(1)
	if !b.loan.forget() {
		panic("framepool: buffer already frozen or released")
	}
	return &FrozenView{shared: shared}
}

// frozenShared is the refcounted state behind all clones of one view.
type frozenShared struct {
	pool *BufferPool
	idx  int
	data []byte
	n    int
	refs atomic.Int64
}

func (s *frozenShared) drop() {
	if s.refs.Add(-1) == 0 {
		s.pool.inner.release(s.idx)
	}
}

// FrozenView is a shared, immutable, reference-counted view over a frozen
// buffer. Clones are cheap (refcount increment only) and may be read
// concurrently without locking: frozen contents never change.
//
// Each view, original or clone, must be Released exactly when its holder
// is done; Release is idempotent per view.
type FrozenView struct {
	shared   *frozenShared
	released atomic.Bool
}

// Bytes returns the frozen valid region. Read-only by contract.
func (v *FrozenView) Bytes() []byte {
	if v.released.Load() {
		panic("framepool: use of released view")
	}
	return v.shared.data[:v.shared.n]
}

// Len reports the frozen valid length.
func (v *FrozenView) Len() int { return v.shared.n }

// SlotIndex reports the backing slot. Diagnostic only.
func (v *FrozenView) SlotIndex() int { return v.shared.idx }

// Clone creates another handle on the same bytes. The caller must hold an
// un-released view.
func (v *FrozenView) Clone() *FrozenView {
	if v.released.Load() {
		panic("framepool: clone of released view")
	}
	v.shared.refs.Add(1)
	return &FrozenView{shared: v.shared}
}

// Release drops this handle; the last release returns the slot to the
// pool. Idempotent.
func (v *FrozenView) Release() {
	if !v.released.CompareAndSwap(false, true) {
		return
	}
	v.shared.drop()
}
