// File: fake/camera_test.go
// License: Apache-2.0

package fake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/photondaq/framepool/pool"
)

// TestCamera_ProducesFrames: frames arrive at roughly the configured rate,
// carry increasing sequence numbers, and leak no slots.
func TestCamera_ProducesFrames(t *testing.T) {
	bp, err := pool.NewBufferPool(4, 256, nil)
	if err != nil {
		t.Fatal(err)
	}
	cam := NewCamera(bp, 200, 64, nil)

	var mu sync.Mutex
	var seqs []uint64
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := cam.Run(ctx, func(v *pool.FrozenView) {
		mu.Lock()
		seqs = append(seqs, FrameSeq(v.Bytes()))
		mu.Unlock()
		v.Release()
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if cam.Produced() == 0 {
		t.Fatal("camera produced nothing")
	}
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seqs); i++ {
		if seqs[i] != seqs[i-1]+1 {
			t.Fatalf("sequence gap: %d then %d", seqs[i-1], seqs[i])
		}
	}
	if bp.Available() != 4 {
		t.Errorf("camera leaked slots: available=%d", bp.Available())
	}
}

// TestCamera_TinyFrameBytes: a frame size below the 8-byte sequence
// header is widened to fit it, so frames still carry valid sequence
// numbers instead of the fill path slicing past the frame.
func TestCamera_TinyFrameBytes(t *testing.T) {
	bp, err := pool.NewBufferPool(2, 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	cam := NewCamera(bp, 1000, 4, nil)

	got := make(chan *pool.FrozenView, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go cam.Run(ctx, func(v *pool.FrozenView) {
		select {
		case got <- v:
		default:
			v.Release()
		}
	})

	v := <-got
	cancel()
	defer v.Release()

	if v.Len() != 8 {
		t.Fatalf("expected frame widened to the 8-byte header, got %d", v.Len())
	}
	if FrameSeq(v.Bytes()) == 0 {
		t.Fatal("frame missing sequence header")
	}
}

// TestCamera_DropsUnderBackpressure: with every buffer held hostage, the
// camera drops instead of stalling, like a hardware ring overwriting
// unread frames.
func TestCamera_DropsUnderBackpressure(t *testing.T) {
	bp, err := pool.NewBufferPool(1, 64, nil)
	if err != nil {
		t.Fatal(err)
	}
	held, _ := bp.TryAcquire()
	defer held.Release()

	cam := NewCamera(bp, 500, 64, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := cam.Run(ctx, func(v *pool.FrozenView) {
		t.Error("frame delivered from an exhausted pool")
		v.Release()
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if cam.Dropped() == 0 {
		t.Error("expected drops under backpressure")
	}
	if cam.Produced() != 0 {
		t.Errorf("expected no produced frames, got %d", cam.Produced())
	}
}

// TestCamera_FrameContent: the payload pattern matches what fill wrote.
func TestCamera_FrameContent(t *testing.T) {
	bp, err := pool.NewBufferPool(2, 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	cam := NewCamera(bp, 1000, 32, nil)

	got := make(chan *pool.FrozenView, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go cam.Run(ctx, func(v *pool.FrozenView) {
		select {
		case got <- v:
		default:
			v.Release()
		}
	})

	v := <-got
	cancel()
	defer v.Release()

	if v.Len() != 32 {
		t.Fatalf("expected 32-byte frame, got %d", v.Len())
	}
	seq := FrameSeq(v.Bytes())
	if seq == 0 {
		t.Fatal("frame missing sequence header")
	}
	for i := 8; i < 32; i++ {
		if v.Bytes()[i] != byte(seq+uint64(i)) {
			t.Fatalf("payload mismatch at byte %d", i)
		}
	}
}
