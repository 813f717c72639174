package metrics

import "time"

type noopDeletionMetrics struct{}

// NewNoopDeletionMetrics returns a DeletionMetrics that discards everything.
func NewNoopDeletionMetrics() DeletionMetrics { return noopDeletionMetrics{} }

func (noopDeletionMetrics) RecordRemoval(string)                {}
func (noopDeletionMetrics) RecordSweep(time.Duration, int, int) {}
func (noopDeletionMetrics) RecordOrphans(int, int)              {}

type noopQuotaMetrics struct{}

// NewNoopQuotaMetrics returns a QuotaMetrics that discards everything.
func NewNoopQuotaMetrics() QuotaMetrics { return noopQuotaMetrics{} }

func (noopQuotaMetrics) RecordReserve(int64, bool) {}
func (noopQuotaMetrics) RecordRelease(int64)       {}

type noopNotificationMetrics struct{}

// NewNoopNotificationMetrics returns a NotificationMetrics that discards
// everything.
func NewNoopNotificationMetrics() NotificationMetrics { return noopNotificationMetrics{} }

func (noopNotificationMetrics) RecordCreated(string, int) {}
func (noopNotificationMetrics) RecordPublish(bool)        {}

type noopHTTPMetrics struct{}

// NewNoopHTTPMetrics returns an HTTPMetrics that discards everything.
func NewNoopHTTPMetrics() HTTPMetrics { return noopHTTPMetrics{} }

func (noopHTTPMetrics) RecordRequest(string, string, int, time.Duration) {}
func (noopHTTPMetrics) RecordRequestStart()                              {}
func (noopHTTPMetrics) RecordRequestEnd()                                {}
