package prometheus

import (
	"github.com/marmos91/mozaichub/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type quotaMetrics struct {
	reservations  *prometheus.CounterVec
	reservedBytes prometheus.Counter
	releasedBytes prometheus.Counter
}

// NewQuotaMetrics creates a Prometheus-backed QuotaMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewQuotaMetrics() metrics.QuotaMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopQuotaMetrics()
	}

	reg := metrics.GetRegistry()

	return &quotaMetrics{
		reservations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mozaichub_quota_reservations_total",
				Help: "Storage reservations by result (accepted, exceeded)",
			},
			[]string{"result"},
		),
		reservedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mozaichub_quota_reserved_bytes_total",
				Help: "Bytes added to user usage counters",
			},
		),
		releasedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mozaichub_quota_released_bytes_total",
				Help: "Bytes reclaimed from user usage counters",
			},
		),
	}
}

func (m *quotaMetrics) RecordReserve(bytes int64, accepted bool) {
	if !accepted {
		m.reservations.WithLabelValues("exceeded").Inc()
		return
	}
	m.reservations.WithLabelValues("accepted").Inc()
	m.reservedBytes.Add(float64(bytes))
}

func (m *quotaMetrics) RecordRelease(bytes int64) {
	m.releasedBytes.Add(float64(bytes))
}
