// File: internal/session/session.go
// Package session ties one acquisition run together: a buffer pool sized
// from config, a backpressure journal, a metrics registry and a logger,
// all under a unique session identity.
// License: Apache-2.0

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/photondaq/framepool/api"
	"github.com/photondaq/framepool/control"
	"github.com/photondaq/framepool/pool"
)

// Session owns the pooling resources for one acquisition run. Pools are
// created at session start and live for the whole run; a session is never
// torn down mid-acquisition.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	Pool    *pool.BufferPool
	Journal *control.Journal
	Metrics *control.MetricsRegistry

	cfg *control.Config
	log *slog.Logger
}

// New builds a session from config. Every backpressure event is recorded
// in the journal and logged; the acquisition hot path itself never blocks
// on either.
func New(cfg *control.Config, log *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = control.NewLogger(cfg.Logging, nil)
	}

	id := uuid.New()
	log = log.With("session", id.String())

	bp, err := pool.NewBufferPool(cfg.Pool.Slots, cfg.Pool.BufferCapacity, log)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		StartedAt: time.Now(),
		Pool:      bp,
		Journal:   control.NewJournal(cfg.JournalSize),
		Metrics:   control.NewMetricsRegistry(),
		cfg:       cfg,
		log:       log,
	}
	bp.OnBackpressure(func(kind api.BackpressureKind) {
		s.Journal.Record(kind)
	})

	s.log.Info("acquisition session started",
		"slots", cfg.Pool.Slots,
		"buffer_capacity", cfg.Pool.BufferCapacity)
	return s, nil
}

// AcquireFrame is the producer entry point: a timed acquire bounded by the
// configured timeout, so a stalled pipeline surfaces as backpressure
// instead of silently eating the upstream retention window.
func (s *Session) AcquireFrame() (*pool.LoanedBuffer, error) {
	if s.cfg.Pool.AcquireTimeout.Std() <= 0 {
		return s.Pool.TryAcquire()
	}
	return s.Pool.TryAcquireTimeout(s.cfg.Pool.AcquireTimeout.Std())
}

// AcquireFrameBlocking waits without a deadline; for consumers that may
// idle, not for the camera callback path.
func (s *Session) AcquireFrameBlocking(ctx context.Context) (*pool.LoanedBuffer, error) {
	return s.Pool.Acquire(ctx)
}

// GrowPool enlarges the pool by the configured step.
func (s *Session) GrowPool() error {
	step := s.cfg.Pool.GrowStep
	if step < 1 {
		step = 1
	}
	return s.Pool.Grow(step)
}

// PublishStats pushes a pool snapshot into the metrics registry.
func (s *Session) PublishStats() {
	st := s.Pool.Stats()
	s.Metrics.Set("pool.capacity", st.Capacity)
	s.Metrics.Set("pool.buffer_capacity", st.BufferCapacity)
	s.Metrics.Set("pool.available", st.Available)
	s.Metrics.Set("pool.in_use", st.InUse)
	s.Metrics.Set("pool.high_water", st.HighWaterMark)
	s.Metrics.Set("pool.acquires", st.TotalAcquires)
	s.Metrics.Set("pool.returns", st.TotalReturns)
	s.Metrics.Set("backpressure.exhausted", s.Journal.Exhausted())
	s.Metrics.Set("backpressure.timeouts", s.Journal.Timeouts())
}

// Uptime reports how long the session has been running.
func (s *Session) Uptime() time.Duration { return time.Since(s.StartedAt) }
