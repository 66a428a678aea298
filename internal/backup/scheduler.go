// Package backup runs the periodic snapshot loop for the cashbook
// store.
package backup

import (
	"context"
	"time"

	"cashense/internal/log"
	"cashense/internal/store"
)

// DefaultInterval is how often the collection is snapshotted when the
// environment does not say otherwise.
const DefaultInterval = 24 * time.Hour

// Scheduler snapshots the store on a fixed interval until its context
// is cancelled. A failed snapshot is logged and retried next tick.
type Scheduler struct {
	store    store.Store
	interval time.Duration
	logger   *log.Logger
}

func NewScheduler(st store.Store, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentBackup)
	}
	return &Scheduler{store: st, interval: interval, logger: logger}
}

// Run takes an initial snapshot, then one per interval. It returns
// ctx.Err() on shutdown so errgroup callers can tell cancellation from
// failure.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Backup scheduler stopping", log.FieldOperation, log.OpShutdown)
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	path, err := s.store.Backup(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Backup failed",
			log.FieldOperation, log.OpBackup,
			log.FieldError, err)
		return
	}
	if path == "" {
		// Backend has nothing durable to snapshot.
		return
	}
	s.logger.InfoContext(ctx, "Backup written",
		log.FieldOperation, log.OpBackup,
		log.FieldBackupPath, path)
}
