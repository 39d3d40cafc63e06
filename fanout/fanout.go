// File: fanout/fanout.go
// Package fanout distributes frozen frames to independent consumers.
// License: Apache-2.0
//
// A Distributor hands each published frame to every subscribed tap as a
// cheap FrozenView clone — the bytes are never copied. Delivery is
// non-blocking: a tap that cannot keep up drops frames (and its clone is
// released immediately) rather than stalling the producer or its peers.

package fanout

import (
	"sync"
	"sync/atomic"

	"github.com/photondaq/framepool/pool"
)

// Tap is one consumer's subscription. The consumer must Release every view
// it receives, and Close the tap when done.
type Tap struct {
	id     int
	ch     chan *pool.FrozenView
	drops  atomic.Uint64
	closed atomic.Bool
	dist   *Distributor
}

// Frames returns the receive channel. Closed when the tap or the
// distributor closes; any views still buffered at that point have already
// been released by the closer.
func (t *Tap) Frames() <-chan *pool.FrozenView { return t.ch }

// Drops reports how many frames this tap missed.
func (t *Tap) Drops() uint64 { return t.drops.Load() }

// Close unsubscribes the tap and releases any undelivered views.
func (t *Tap) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.dist.remove(t)
	close(t.ch)
	for v := range t.ch {
		v.Release()
	}
}

// Distributor fans frames out to all current taps.
type Distributor struct {
	mu     sync.RWMutex
	taps   map[int]*Tap
	nextID int
	closed bool

	published atomic.Uint64
}

// NewDistributor creates a distributor with no taps.
func NewDistributor() *Distributor {
	return &Distributor{taps: make(map[int]*Tap)}
}

// Subscribe registers a tap with the given channel depth. Depth bounds how
// far the consumer may lag before it starts dropping.
func (d *Distributor) Subscribe(depth int) *Tap {
	if depth < 1 {
		depth = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &Tap{id: d.nextID, ch: make(chan *pool.FrozenView, depth), dist: d}
	if d.closed {
		t.closed.Store(true)
		close(t.ch)
		return t
	}
	d.taps[d.nextID] = t
	d.nextID++
	return t
}

func (d *Distributor) remove(t *Tap) {
	d.mu.Lock()
	delete(d.taps, t.id)
	d.mu.Unlock()
}

// Publish takes ownership of v, delivers one clone per tap and releases
// the original. Slow taps drop: the clone is released on the spot and the
// tap's drop counter advances.
func (d *Distributor) Publish(v *pool.FrozenView) {
	d.mu.RLock()
	for _, t := range d.taps {
		c := v.Clone()
		select {
		case t.ch <- c:
		default:
			c.Release()
			t.drops.Add(1)
		}
	}
	d.mu.RUnlock()
	d.published.Add(1)
	v.Release()
}

// Published reports how many frames have been through Publish.
func (d *Distributor) Published() uint64 { return d.published.Load() }

// Taps reports the current subscriber count.
func (d *Distributor) Taps() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.taps)
}

// Close unsubscribes every tap, releasing all undelivered views. Publish
// after Close releases the frame without delivering it.
func (d *Distributor) Close() {
	d.mu.Lock()
	taps := make([]*Tap, 0, len(d.taps))
	for _, t := range d.taps {
		taps = append(taps, t)
	}
	d.taps = make(map[int]*Tap)
	d.closed = true
	d.mu.Unlock()

	for _, t := range taps {
		if t.closed.CompareAndSwap(false, true) {
			close(t.ch)
			for v := range t.ch {
				v.Release()
			}
		}
	}
}
