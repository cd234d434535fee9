package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	CertificatesCreated  prometheus.Counter
	CertificatesApproved prometheus.Counter
	BulkApproveSkipped   prometheus.Counter
	RenderDuration       prometheus.Histogram
	DocumentCacheHits    prometheus.Counter
	DocumentCacheMisses  prometheus.Counter
	TemplateCompilations prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CertificatesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gascert_certificates_created_total",
			Help: "Total number of calibration certificates created",
		}),
		CertificatesApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gascert_certificates_approved_total",
			Help: "Total number of calibration certificates approved",
		}),
		BulkApproveSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gascert_bulk_approve_skipped_total",
			Help: "Certificates skipped during bulk approval (missing or not pending)",
		}),
		RenderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gascert_document_render_duration_seconds",
			Help:    "Wall time of certificate PDF exports",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DocumentCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gascert_document_cache_hits_total",
			Help: "Rendered-document cache hits",
		}),
		DocumentCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gascert_document_cache_misses_total",
			Help: "Rendered-document cache misses",
		}),
		TemplateCompilations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gascert_template_compilations_total",
			Help: "Template compilations (misses in the compiled-template cache)",
		}),
	}
}
