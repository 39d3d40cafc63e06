// File: control/metrics.go
// License: Apache-2.0
//
// Runtime metrics registry for session-level monitoring.
// Counters live in a thread-safe map with dynamic registration so
// diagnostics surfaces (CLI status, future admin endpoints) can read one
// consistent snapshot.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry holds named metric values.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{metrics: make(map[string]any)}
}

// Set stores or updates a metric.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns one metric and whether it exists.
func (mr *MetricsRegistry) Get(key string) (any, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, ok := mr.metrics[key]
	return v, ok
}

// Snapshot returns a copy of all metrics.
func (mr *MetricsRegistry) Snapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// Updated reports when the registry last changed.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
