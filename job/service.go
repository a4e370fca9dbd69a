package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/imagevault/core/config"
	"github.com/imagevault/core/queue"
	"github.com/imagevault/core/store"
)

// Service wires the Manager to its background loops (retention sweep,
// dead-letter recovery) and hands out the bounded concurrency pool work
// stages must run through, per spec §5's concurrency model.
type Service struct {
	Manager *Manager

	pool      chan struct{}
	clampPool chan struct{}
	clamped   atomic.Bool
}

// NewService builds a Service sized by cfg: one slot per job by default,
// or one slot per distinct cache folder when EnableParallelCacheProcessing
// is set, matching spec §5's "parallel across cache folders, serial
// within one" rule.
func NewService(jobs store.JobStore, cfg config.Config, folderCount int) *Service {
	slots := 1
	if cfg.EnableParallelCacheProcessing && folderCount > 1 {
		slots = folderCount
	}

	return &Service{
		Manager:   New(jobs),
		pool:      make(chan struct{}, slots),
		clampPool: make(chan struct{}, 1),
	}
}

// Run acquires a concurrency slot, runs work, and releases the slot,
// blocking until a slot is free or ctx is cancelled. Once ClampToSingleWorker
// has been called, every subsequent Run serializes through a single slot
// regardless of the pool size NewService was given.
func (s *Service) Run(ctx context.Context, work func(context.Context) error) error {
	pool := s.pool
	if s.clamped.Load() {
		pool = s.clampPool
	}

	select {
	case pool <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-pool }()

	return work(ctx)
}

// ClampToSingleWorker permanently reduces this Service's concurrency to one
// worker, the spec §4.6 response to a job crossing its network-drive error
// budget. It is idempotent and irreversible for the Service's lifetime.
func (s *Service) ClampToSingleWorker() {
	s.clamped.Store(true)
}

// StartBackground launches the retention sweeper and recovers any
// messages parked on the dead-letter endpoint, per spec §4.7's startup
// sequence. It returns immediately; the sweeper runs until ctx is done.
func (s *Service) StartBackground(ctx context.Context, cfg config.Config, drainer queue.Drainer, broker queue.Broker) error {
	sweeper, err := NewRetentionSweeper(s.Manager, cfg.JobRetention(), "")
	if err != nil {
		return err
	}

	go sweeper.Run(ctx)

	if drainer == nil || broker == nil {
		return nil
	}

	summary, err := queue.RecoverDeadLetters(ctx, drainer, broker, 10*time.Second)
	if err != nil {
		log(ctx).Warnw("dead-letter recovery failed", "error", err)
		return nil
	}

	if len(summary) > 0 {
		log(ctx).Infow("startup dead-letter recovery complete", "by_kind", summary)
	}

	return nil
}
