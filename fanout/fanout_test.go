// File: fanout/fanout_test.go
// License: Apache-2.0

package fanout

import (
	"bytes"
	"testing"

	"github.com/photondaq/framepool/pool"
)

func freezeFrame(t *testing.T, bp *pool.BufferPool, payload []byte) *pool.FrozenView {
	t.Helper()
	lb, err := bp.TryAcquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lb.CopyFromSlice(payload); err != nil {
		t.Fatalf("copy: %v", err)
	}
	return lb.Freeze()
}

// TestDistributor_FanOut: every tap sees every frame, bytes shared not
// copied, and all slots come home afterwards.
func TestDistributor_FanOut(t *testing.T) {
	bp, err := pool.NewBufferPool(4, 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDistributor()
	t1 := d.Subscribe(4)
	t2 := d.Subscribe(4)

	payloads := [][]byte{[]byte("frame-a"), []byte("frame-b"), []byte("frame-c")}
	for _, p := range payloads {
		d.Publish(freezeFrame(t, bp, p))
	}

	for _, tap := range []*Tap{t1, t2} {
		for i, want := range payloads {
			v := <-tap.Frames()
			if !bytes.Equal(v.Bytes(), want) {
				t.Errorf("tap frame %d: got %q, want %q", i, v.Bytes(), want)
			}
			v.Release()
		}
	}

	if d.Published() != 3 {
		t.Errorf("expected 3 published, got %d", d.Published())
	}
	if bp.Available() != 4 {
		t.Errorf("slots leaked through fan-out: available=%d", bp.Available())
	}
	t1.Close()
	t2.Close()
}

// TestDistributor_SlowTapDrops: a lagging tap drops frames instead of
// stalling the producer, and dropped clones are released immediately.
func TestDistributor_SlowTapDrops(t *testing.T) {
	bp, err := pool.NewBufferPool(8, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDistributor()
	fast := d.Subscribe(8)
	slow := d.Subscribe(1) // depth 1: everything past the first frame drops

	for i := 0; i < 5; i++ {
		d.Publish(freezeFrame(t, bp, []byte{byte(i)}))
	}

	if got := slow.Drops(); got != 4 {
		t.Errorf("expected 4 drops on the slow tap, got %d", got)
	}
	if got := fast.Drops(); got != 0 {
		t.Errorf("fast tap dropped %d frames", got)
	}

	// Drain both taps; all slots must return.
	for i := 0; i < 5; i++ {
		(<-fast.Frames()).Release()
	}
	(<-slow.Frames()).Release()
	if bp.Available() != 8 {
		t.Errorf("dropped clones leaked: available=%d", bp.Available())
	}
	fast.Close()
	slow.Close()
}

// TestDistributor_CloseReleasesBuffered: closing releases undelivered
// views so no slot is stranded.
func TestDistributor_CloseReleasesBuffered(t *testing.T) {
	bp, err := pool.NewBufferPool(4, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDistributor()
	d.Subscribe(4) // never drained

	for i := 0; i < 4; i++ {
		d.Publish(freezeFrame(t, bp, []byte{byte(i)}))
	}
	if bp.Available() != 0 {
		t.Fatalf("expected all slots held by the tap, available=%d", bp.Available())
	}

	d.Close()
	if bp.Available() != 4 {
		t.Errorf("close stranded slots: available=%d", bp.Available())
	}
	if d.Taps() != 0 {
		t.Errorf("taps survived close: %d", d.Taps())
	}
}

// TestDistributor_PublishWithoutTaps just releases the frame.
func TestDistributor_PublishWithoutTaps(t *testing.T) {
	bp, err := pool.NewBufferPool(1, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDistributor()
	d.Publish(freezeFrame(t, bp, []byte("lonely")))
	if bp.Available() != 1 {
		t.Errorf("frame leaked with no taps: available=%d", bp.Available())
	}
}

// TestTap_CloseIsIdempotent and safe while subscribed peers continue.
func TestTap_CloseIsIdempotent(t *testing.T) {
	bp, err := pool.NewBufferPool(2, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDistributor()
	a := d.Subscribe(2)
	b := d.Subscribe(2)

	a.Close()
	a.Close()
	d.Publish(freezeFrame(t, bp, []byte("x")))

	v := <-b.Frames()
	v.Release()
	if _, ok := <-a.Frames(); ok {
		t.Error("closed tap still delivers")
	}
	b.Close()
	if bp.Available() != 2 {
		t.Errorf("slots leaked: available=%d", bp.Available())
	}
}
