package metrics

import "time"

// DeletionMetrics observes the deferred deletion sweep and orphan
// collection.
//
// Example usage:
//
//	sweeper := gc.NewSweeper(store, content, clock, cfg, prometheus.NewDeletionMetrics())
type DeletionMetrics interface {
	// RecordRemoval counts one artifact removal by outcome
	// ("removed", "already-absent", "failed").
	RecordRemoval(outcome string)

	// RecordSweep records a completed sweep: how long it took, how many
	// files were due and how many records could not be removed.
	RecordSweep(duration time.Duration, due, failed int)

	// RecordOrphans records one orphan collection pass.
	RecordOrphans(deleted, failed int)
}

// QuotaMetrics observes storage reservations.
type QuotaMetrics interface {
	// RecordReserve counts a reservation attempt. accepted is false when the
	// quota would have been exceeded.
	RecordReserve(bytes int64, accepted bool)

	// RecordRelease counts reclaimed bytes.
	RecordRelease(bytes int64)
}

// NotificationMetrics observes notification fan-out.
type NotificationMetrics interface {
	// RecordCreated counts notifications persisted for a kind.
	RecordCreated(kind string, count int)

	// RecordPublish counts publisher deliveries by success.
	RecordPublish(ok bool)
}

// HTTPMetrics observes the HTTP adapter.
type HTTPMetrics interface {
	// RecordRequest records a completed request. route is the matched
	// pattern (e.g. "/api/v1/files/:id"), not the raw path.
	RecordRequest(method, route string, status int, duration time.Duration)

	// RecordRequestStart / RecordRequestEnd track in-flight requests.
	RecordRequestStart()
	RecordRequestEnd()
}
