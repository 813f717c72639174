package config

import (
	"github.com/marmos91/mozaichub/pkg/metrics"
	promMetrics "github.com/marmos91/mozaichub/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Component collectors. Never nil: no-op implementations when disabled.
	DeletionMetrics     metrics.DeletionMetrics
	QuotaMetrics        metrics.QuotaMetrics
	NotificationMetrics metrics.NotificationMetrics
	HTTPMetrics         metrics.HTTPMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return noopMetrics()
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:              server,
		DeletionMetrics:     promMetrics.NewDeletionMetrics(),
		QuotaMetrics:        promMetrics.NewQuotaMetrics(),
		NotificationMetrics: promMetrics.NewNotificationMetrics(),
		HTTPMetrics:         promMetrics.NewHTTPMetrics(),
	}
}

func noopMetrics() *MetricsResult {
	return &MetricsResult{
		DeletionMetrics:     metrics.NewNoopDeletionMetrics(),
		QuotaMetrics:        metrics.NewNoopQuotaMetrics(),
		NotificationMetrics: metrics.NewNoopNotificationMetrics(),
		HTTPMetrics:         metrics.NewNoopHTTPMetrics(),
	}
}
