package prometheus

import (
	"github.com/marmos91/mozaichub/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type notificationMetrics struct {
	created   *prometheus.CounterVec
	published *prometheus.CounterVec
}

// NewNotificationMetrics creates a Prometheus-backed NotificationMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewNotificationMetrics() metrics.NotificationMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopNotificationMetrics()
	}

	reg := metrics.GetRegistry()

	return &notificationMetrics{
		created: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mozaichub_notifications_created_total",
				Help: "Notifications persisted by kind",
			},
			[]string{"kind"},
		),
		published: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mozaichub_notifications_published_total",
				Help: "Notification events handed to the publisher by status",
			},
			[]string{"status"},
		),
	}
}

func (m *notificationMetrics) RecordCreated(kind string, count int) {
	m.created.WithLabelValues(kind).Add(float64(count))
}

func (m *notificationMetrics) RecordPublish(ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.published.WithLabelValues(status).Inc()
}
