// File: api/stats.go
//
// Diagnostics types for the pooling core. Snapshots are advisory: they are
// read without transactional consistency against concurrent activity.
// License: Apache-2.0

package api

// PoolStats aggregates acquisition and occupancy counters for one pool.
type PoolStats struct {
	// Capacity is the total slot count, including growth.
	Capacity int
	// BufferCapacity is the fixed per-buffer size in bytes.
	// Zero for non-buffer pools.
	BufferCapacity int
	// Available is the slot count free at snapshot time.
	Available int
	// InUse is the slot count currently loaned or frozen.
	InUse int
	// HighWaterMark is the maximum simultaneous in-use count observed.
	HighWaterMark int
	// TotalAcquires counts successful acquisitions since construction.
	TotalAcquires uint64
	// TotalReturns counts slots returned since construction.
	TotalReturns uint64
	// Exhausted counts non-suspending acquires that found no free slot.
	Exhausted uint64
	// Timeouts counts timed acquires that expired.
	Timeouts uint64
}

// BackpressureKind labels why an acquisition did not complete.
type BackpressureKind int

const (
	// BackpressureExhausted: TryAcquire found no free slot.
	BackpressureExhausted BackpressureKind = iota
	// BackpressureTimeout: a timed acquire expired while waiting.
	BackpressureTimeout
)

func (k BackpressureKind) String() string {
	switch k {
	case BackpressureExhausted:
		return "exhausted"
	case BackpressureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}
