// File: fake/camera.go
// Package fake provides simulated hardware for tests and examples.
// License: Apache-2.0

package fake

import (
	"context"
	"encoding/binary"
	"errors"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/photondaq/framepool/api"
	"github.com/photondaq/framepool/pool"
)

// Camera is a simulated frame source. It paces itself with a rate limiter,
// fills pooled buffers through the same raw-copy path a real SDK callback
// would use, and hands each frozen frame to the sink. When the pool is
// exhausted it drops the frame and keeps going, exactly like a hardware
// ring buffer overwriting unread slots.
type Camera struct {
	pool       *pool.BufferPool
	limiter    *rate.Limiter
	frameBytes int
	acquire    func() (*pool.LoanedBuffer, error)

	produced atomic.Uint64
	dropped  atomic.Uint64
}

// NewCamera simulates a source emitting frameBytes-sized frames at fps.
// acquire decides the backpressure policy (usually a timed acquire well
// under the simulated retention window).
func NewCamera(bp *pool.BufferPool, fps float64, frameBytes int, acquire func() (*pool.LoanedBuffer, error)) *Camera {
	if acquire == nil {
		acquire = bp.TryAcquire
	}
	// Every frame carries an 8-byte sequence header, so that is the floor;
	// the buffer capacity is the ceiling.
	if frameBytes < 8 {
		frameBytes = 8
	}
	if frameBytes > bp.BufferCapacity() {
		frameBytes = bp.BufferCapacity()
	}
	return &Camera{
		pool:       bp,
		limiter:    rate.NewLimiter(rate.Limit(fps), 1),
		frameBytes: frameBytes,
		acquire:    acquire,
	}
}

// Run produces frames until ctx is done, delivering each frozen frame to
// sink. The sink takes ownership of the view.
func (c *Camera) Run(ctx context.Context, sink func(*pool.FrozenView)) error {
	for {
		// Wait fails only when ctx is done or its deadline cannot cover
		// the next tick; both mean the run is over.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}

		lb, err := c.acquire()
		if err != nil {
			if errors.Is(err, api.ErrPoolExhausted) || errors.Is(err, api.ErrAcquireTimeout) {
				c.dropped.Add(1)
				continue
			}
			return err
		}

		seq := c.produced.Add(1)
		c.fill(lb, seq)
		sink(lb.Freeze())
	}
}

// fill writes a synthetic frame: an 8-byte sequence header, then a
// repeating pattern derived from it.
func (c *Camera) fill(lb *pool.LoanedBuffer, seq uint64) {
	w := lb.Writable()[:c.frameBytes]
	if len(w) >= 8 {
		binary.BigEndian.PutUint64(w[:8], seq)
	}
	for i := 8; i < len(w); i++ {
		w[i] = byte(seq + uint64(i))
	}
	// The buffer is exactly as long as a real readout would be.
	_ = lb.SetLen(c.frameBytes)
}

// FrameSeq extracts the sequence number written by fill.
func FrameSeq(frame []byte) uint64 {
	if len(frame) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(frame[:8])
}

// Produced reports frames successfully acquired and emitted.
func (c *Camera) Produced() uint64 { return c.produced.Load() }

// Dropped reports frames lost to pool backpressure.
func (c *Camera) Dropped() uint64 { return c.dropped.Load() }
