package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/mozaichub/internal/logger"
)

// OrphanStats contains statistics from an orphan collection run.
type OrphanStats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	ReferencedCount int       // Artifact handles referenced by file records
	ExistingCount   int       // Artifacts present in the content store
	OrphanedCount   int       // Artifacts no file references
	DeletedCount    int       // Orphans successfully deleted
	FailedCount     int       // Orphans that failed to delete
	DryRun          bool
}

// Duration returns the total collection duration.
func (s *OrphanStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *OrphanStats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deleted=%d failed=%d dry_run=%v duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.DryRun, s.Duration())
}

// CollectOrphans deletes artifacts that no file record references. These
// are left behind by failed artifact removals and by uploads interrupted
// between writing the artifact and creating the record.
//
// An upload in progress has its artifact written before its record, so a
// collection racing with it can delete a fresh artifact. Run it while the
// service is idle or rely on the periodic worker, which only collects
// after a sweep.
func (s *Sweeper) CollectOrphans(ctx context.Context) (*OrphanStats, error) {
	stats := &OrphanStats{StartTime: time.Now(), DryRun: s.config.DryRun}

	// Phase 1: referenced handles
	referenced, err := s.metadataStore.ListContentIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to get referenced content: %w", err)
	}
	stats.ReferencedCount = len(referenced)

	referencedSet := make(map[string]struct{}, len(referenced))
	for _, id := range referenced {
		referencedSet[id] = struct{}{}
	}

	// Phase 2: stored artifacts
	existing, err := s.contentStore.ListAllContent(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = len(existing)

	// Phase 3: difference
	var orphaned []string
	for _, id := range existing {
		if _, ok := referencedSet[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	stats.OrphanedCount = len(orphaned)

	if len(orphaned) == 0 {
		stats.EndTime = time.Now()
		logger.Debug("Orphan collection: nothing to delete")
		return stats, nil
	}

	if s.config.DryRun {
		logger.Info("Orphan collection: DRY RUN - would delete %d artifact(s)", len(orphaned))
		for i, id := range orphaned {
			if i == 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - %s", id)
		}
		stats.EndTime = time.Now()
		return stats, nil
	}

	// Phase 4: batch delete
	for i := 0; i < len(orphaned); i += s.config.BatchSize {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		end := min(i+s.config.BatchSize, len(orphaned))
		batch := orphaned[i:end]

		failures, err := s.contentStore.DeleteBatch(ctx, batch)
		if err != nil {
			logger.Warn("Orphan collection: batch delete failed: %v", err)
			stats.FailedCount += len(batch)
			continue
		}

		stats.DeletedCount += len(batch) - len(failures)
		stats.FailedCount += len(failures)
		for id, ferr := range failures {
			logger.Debug("Orphan collection: failed to delete %s: %v", id, ferr)
		}
	}

	stats.EndTime = time.Now()
	s.metrics.RecordOrphans(stats.DeletedCount, stats.FailedCount)
	logger.Info("Orphan collection completed: %s", stats.Summary())
	return stats, nil
}
