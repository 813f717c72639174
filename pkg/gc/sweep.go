// Package gc implements deferred deletion of files.
//
// Deleting a file is a two-step process. The file is first marked for
// deletion with a scheduled time (immediately for owner-initiated deletes,
// after a grace period for banned accounts). Once the scheduled time has
// passed the file is no longer servable, and the next sweep removes its
// artifact from the content store and its record (with comments, grants
// and owner usage) from the metadata store.
//
// Artifact removal is best effort. A failure leaves an orphaned artifact,
// which the orphan collection pass picks up later; it never keeps the
// record alive.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metrics"
)

// Config contains configuration for the deletion sweeper.
type Config struct {
	// Enabled controls whether the background worker runs (default: true
	// when built from configuration)
	Enabled bool

	// Interval is how often the background sweep runs (default: 1h)
	Interval time.Duration

	// Grace is the delay applied to files of banned accounts (default: 72h)
	Grace time.Duration

	// CollectOrphans runs orphan collection after each background sweep
	CollectOrphans bool

	// BatchSize is how many orphaned artifacts to delete per batch
	// (default: 1000, the S3 DeleteObjects limit)
	BatchSize int

	// DryRun logs orphaned artifacts instead of deleting them
	DryRun bool
}

const (
	DefaultInterval  = time.Hour
	DefaultGrace     = 72 * time.Hour
	DefaultBatchSize = 1000
)

// Sweeper schedules and performs deferred deletions.
//
// Thread Safety: Safe for concurrent use. Two overlapping sweeps may both
// select the same file; the second RemoveFile reports not found and the
// item is counted as removed by someone else.
type Sweeper struct {
	metadataStore metadata.Store
	contentStore  content.ContentStore
	clock         clockwork.Clock
	metrics       metrics.DeletionMetrics
	config        Config

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSweeper creates a sweeper. The background worker is not started.
func NewSweeper(
	metadataStore metadata.Store,
	contentStore content.ContentStore,
	c clockwork.Clock,
	config Config,
	m metrics.DeletionMetrics,
) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Grace < 0 {
		config.Grace = 0
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if m == nil {
		m = metrics.NewNoopDeletionMetrics()
	}
	if c == nil {
		c = clockwork.NewRealClock()
	}

	return &Sweeper{
		metadataStore: metadataStore,
		contentStore:  contentStore,
		clock:         c,
		metrics:       m,
		config:        config,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Grace returns the configured grace period for banned accounts.
func (s *Sweeper) Grace() time.Duration {
	return s.config.Grace
}

// ScheduleDeletion marks one file for deletion at now + grace and returns
// the updated record. A zero grace makes the file immediately unservable.
func (s *Sweeper) ScheduleDeletion(ctx context.Context, fileID string, grace time.Duration) (*metadata.File, error) {
	if grace < 0 {
		return nil, metadata.NewValidationError("file", "negative grace period %s", grace)
	}

	f, err := s.metadataStore.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	at := now.Add(grace)
	f.MarkedForDeletion = true
	f.DeletionScheduledAt = &at
	f.UpdatedAt = now

	if err := s.metadataStore.UpdateFile(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to schedule deletion of %s: %w", fileID, err)
	}

	logger.Debug("File %s scheduled for deletion at %s", fileID, at.Format(time.RFC3339))
	return f, nil
}

// ScheduleOwnerDeletion marks every file of ownerID for deletion after the
// configured grace period and returns how many were marked.
func (s *Sweeper) ScheduleOwnerDeletion(ctx context.Context, ownerID string) (int, error) {
	return s.ScheduleOwnerDeletionAfter(ctx, ownerID, s.config.Grace)
}

// ScheduleOwnerDeletionAfter is ScheduleOwnerDeletion with an explicit
// grace period.
func (s *Sweeper) ScheduleOwnerDeletionAfter(ctx context.Context, ownerID string, grace time.Duration) (int, error) {
	if grace < 0 {
		return 0, metadata.NewValidationError("file", "negative grace period %s", grace)
	}

	at := s.clock.Now().Add(grace)
	n, err := s.metadataStore.MarkOwnerFiles(ctx, ownerID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to schedule deletion of files of %s: %w", ownerID, err)
	}

	logger.Info("Scheduled %d file(s) of user %s for deletion at %s", n, ownerID, at.Format(time.RFC3339))
	return n, nil
}

// ItemResult is the outcome of removing one file.
type ItemResult struct {
	FileID string

	// Artifact is the outcome of the best-effort artifact removal
	Artifact content.Removal

	// Err is set when the metadata record could not be removed
	Err error
}

// RecordRemoved reports whether the metadata record is gone.
func (r ItemResult) RecordRemoved() bool {
	return r.Err == nil
}

// Remove deletes one file now: artifact first, then the record
// atomically. Artifact failures are reported in the result, never
// returned.
func (s *Sweeper) Remove(ctx context.Context, f *metadata.File) ItemResult {
	result := ItemResult{FileID: f.ID}

	// Step 1: artifact, best effort
	result.Artifact = content.Remove(ctx, s.contentStore, f.ContentID)
	s.metrics.RecordRemoval(result.Artifact.Outcome.String())
	if result.Artifact.Outcome == content.RemovalFailed {
		logger.Warn("Artifact %s of file %s could not be removed: %v", f.ContentID, f.ID, result.Artifact.Err)
	}

	// Step 2: comments, grants, owner usage and record in one step
	if _, err := s.metadataStore.RemoveFile(ctx, f.ID); err != nil && !metadata.IsNotFound(err) {
		result.Err = fmt.Errorf("failed to remove file record %s: %w", f.ID, err)
		logger.Error("%v", result.Err)
	}

	return result
}

// SweepReport summarises a sweep.
type SweepReport struct {
	Now      time.Time
	Items    []ItemResult
	Duration time.Duration
}

// Count returns how many items had the given artifact outcome.
func (r *SweepReport) Count(outcome content.RemovalOutcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Artifact.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed returns how many records could not be removed.
func (r *SweepReport) Failed() int {
	n := 0
	for _, item := range r.Items {
		if !item.RecordRemoved() {
			n++
		}
	}
	return n
}

// Summary returns a human-readable summary of the sweep.
func (r *SweepReport) Summary() string {
	return fmt.Sprintf("due=%d removed=%d already_absent=%d artifact_failed=%d record_failed=%d duration=%s",
		len(r.Items), r.Count(content.Removed), r.Count(content.AlreadyAbsent),
		r.Count(content.RemovalFailed), r.Failed(), r.Duration)
}

// RunSweep removes every file whose scheduled deletion time is at or
// before now. One item failing never stops the others. The returned error
// is only set when the due files could not be listed or ctx was cancelled.
func (s *Sweeper) RunSweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	start := time.Now()
	report := &SweepReport{Now: now}

	due, err := s.metadataStore.FindFiles(ctx, metadata.FileQuery{DueBy: &now})
	if err != nil {
		return report, fmt.Errorf("failed to list due files: %w", err)
	}

	for _, f := range due {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		report.Items = append(report.Items, s.Remove(ctx, f))
	}

	report.Duration = time.Since(start)
	s.metrics.RecordSweep(report.Duration, len(report.Items), report.Failed())

	if len(report.Items) > 0 {
		logger.Info("Deletion sweep completed: %s", report.Summary())
	} else {
		logger.Debug("Deletion sweep: nothing due")
	}
	return report, nil
}
