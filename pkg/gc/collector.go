package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/mozaichub/internal/logger"
)

// Stats contains the results of one sweeper run.
type Stats struct {
	Sweep   *SweepReport
	Orphans *OrphanStats
}

// Summary returns a human-readable summary of the run.
func (s *Stats) Summary() string {
	summary := "sweep=<none>"
	if s.Sweep != nil {
		summary = "sweep: " + s.Sweep.Summary()
	}
	if s.Orphans != nil {
		summary += " orphans: " + s.Orphans.Summary()
	}
	return summary
}

// Start begins the background worker. Safe to call multiple times
// (subsequent calls are no-ops).
func (s *Sweeper) Start() {
	if !s.config.Enabled {
		logger.Info("Deletion sweeper disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}

	logger.Info("Starting deletion sweeper: interval=%s grace=%s orphans=%v dry_run=%v",
		s.config.Interval, s.config.Grace, s.config.CollectOrphans, s.config.DryRun)

	s.started = true
	go s.worker()
}

// Stop stops the worker and waits for an in-progress run to finish or ctx
// to expire. Safe to call multiple times.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Unlock()

	logger.Info("Stopping deletion sweeper...")

	select {
	case <-s.doneCh:
		logger.Info("Deletion sweeper stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Deletion sweeper shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs a sweep at the current clock time, followed by orphan
// collection when configured or when withOrphans is set. It blocks until
// done.
func (s *Sweeper) RunNow(ctx context.Context, withOrphans bool) (*Stats, error) {
	logger.Info("Running deletion sweep (manual trigger)...")
	return s.run(ctx, withOrphans || s.config.CollectOrphans)
}

func (s *Sweeper) run(ctx context.Context, orphans bool) (*Stats, error) {
	stats := &Stats{}

	report, err := s.RunSweep(ctx, s.clock.Now())
	stats.Sweep = report
	if err != nil {
		return stats, err
	}

	if orphans {
		o, err := s.CollectOrphans(ctx)
		stats.Orphans = o
		if err != nil {
			return stats, fmt.Errorf("orphan collection: %w", err)
		}
	}
	return stats, nil
}

// worker runs the periodic sweep until Stop is called. The ticker comes
// from the sweeper's clock so a fake clock drives the schedule.
func (s *Sweeper) worker() {
	defer close(s.doneCh)

	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := s.run(ctx, s.config.CollectOrphans)
			cancel()

			if err != nil {
				logger.Error("Deletion sweep failed: %v", err)
			} else {
				logger.Debug("Deletion sweep run: %s", stats.Summary())
			}

		case <-s.stopCh:
			return
		}
	}
}
