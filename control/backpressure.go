// File: control/backpressure.go
// License: Apache-2.0
//
// Bounded journal of recent backpressure events. The pool hot path only
// appends a timestamped kind; readers pull snapshots for diagnostics.
// Exhaustion and timeouts must surface somewhere visible — a producer that
// silently drops frames is the worst failure mode of an acquisition rig.

package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/photondaq/framepool/api"
)

// BackpressureEvent is one recorded acquisition failure.
type BackpressureEvent struct {
	Kind api.BackpressureKind
	At   time.Time
}

// Journal keeps the most recent backpressure events up to a fixed limit,
// oldest evicted first, plus running totals that never roll over.
type Journal struct {
	mu     sync.Mutex
	events *queue.Queue
	limit  int

	exhausted atomic.Uint64
	timeouts  atomic.Uint64
}

// NewJournal creates a journal retaining up to limit events.
func NewJournal(limit int) *Journal {
	if limit < 1 {
		limit = 1
	}
	return &Journal{events: queue.New(), limit: limit}
}

// Record appends an event, evicting the oldest when full.
func (j *Journal) Record(kind api.BackpressureKind) {
	switch kind {
	case api.BackpressureExhausted:
		j.exhausted.Add(1)
	case api.BackpressureTimeout:
		j.timeouts.Add(1)
	}

	j.mu.Lock()
	if j.events.Length() >= j.limit {
		j.events.Remove()
	}
	j.events.Add(BackpressureEvent{Kind: kind, At: time.Now()})
	j.mu.Unlock()
}

// Len reports the retained event count.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.events.Length()
}

// Snapshot returns the retained events, oldest first.
func (j *Journal) Snapshot() []BackpressureEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]BackpressureEvent, 0, j.events.Length())
	for i := 0; i < j.events.Length(); i++ {
		out = append(out, j.events.Get(i).(BackpressureEvent))
	}
	return out
}

// Exhausted reports the total exhaustion count since creation.
func (j *Journal) Exhausted() uint64 { return j.exhausted.Load() }

// Timeouts reports the total timeout count since creation.
func (j *Journal) Timeouts() uint64 { return j.timeouts.Load() }
