// Package prometheus provides the Prometheus-backed implementations of the
// metrics sinks consumed by the service.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinkhost/blink/pkg/core"
	"github.com/blinkhost/blink/pkg/metrics"
)

// serviceMetrics is the Prometheus implementation of core.Metrics.
type serviceMetrics struct {
	uploads     *prometheus.CounterVec
	uploadBytes prometheus.Histogram
	accesses    *prometheus.CounterVec
}

// NewServiceMetrics creates a Prometheus-backed core.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called). A nil
// core.Metrics is valid and records nothing.
func NewServiceMetrics() core.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &serviceMetrics{
		uploads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blink_uploads_total",
				Help: "Total number of upload attempts by result",
			},
			[]string{"result"}, // "ok", "invalid", "too_large", "unsupported_type", "blob_error", "mint_error", "index_error"
		),
		uploadBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "blink_upload_bytes",
				Help: "Distribution of accepted upload payload sizes",
				Buckets: []float64{
					4096,    // 4KB - icons
					32768,   // 32KB
					131072,  // 128KB
					524288,  // 512KB - typical photo
					1048576, // 1MB
					2097152, // 2MB
					5242880, // 5MB - default cap
				},
			},
		),
		accesses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "blink_accesses_total",
				Help: "Total number of access decisions by outcome",
			},
			[]string{"outcome"}, // "allowed", "denied_missing", "denied_expired", "denied_invalid", "internal_error"
		),
	}
}

func (m *serviceMetrics) RecordUpload(result string, bytes int) {
	if m == nil {
		return
	}

	m.uploads.WithLabelValues(result).Inc()
	if result == "ok" && bytes > 0 {
		m.uploadBytes.Observe(float64(bytes))
	}
}

func (m *serviceMetrics) RecordAccess(outcome string) {
	if m == nil {
		return
	}

	m.accesses.WithLabelValues(outcome).Inc()
}
