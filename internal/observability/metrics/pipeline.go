package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// confidenceBuckets concentrate resolution around the acceptance thresholds;
// anything below 0.5 is already a reject and lands in the first bucket.
var confidenceBuckets = []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.93, 0.95, 0.97, 0.99}

// PipelineMetrics is the worker-side sink for processing observations.
// Recording is fire-and-forget and never propagates errors into the pipeline.
type PipelineMetrics struct {
	registry *prometheus.Registry

	processTotal       *prometheus.CounterVec
	processDuration    *prometheus.HistogramVec
	statusTransitions  *prometheus.CounterVec
	ocrConfidence      *prometheus.HistogramVec
	ensembleConfidence *prometheus.HistogramVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "intake",
			Subsystem:   "pipeline",
			Name:        "document_process_total",
			Help:        "Total processed documents by final status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "intake",
			Subsystem:   "pipeline",
			Name:        "document_process_duration_seconds",
			Help:        "End-to-end document processing duration in seconds by final status.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	statusTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "intake",
			Subsystem:   "pipeline",
			Name:        "status_transitions_total",
			Help:        "Total document lifecycle transitions.",
			ConstLabels: constLabels,
		},
		[]string{"from", "to"},
	)
	ocrConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "intake",
			Subsystem:   "pipeline",
			Name:        "ocr_confidence",
			Help:        "Distribution of OCR confidence for classified documents.",
			Buckets:     confidenceBuckets,
			ConstLabels: constLabels,
		},
		[]string{"doc_type"},
	)
	ensembleConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "intake",
			Subsystem:   "pipeline",
			Name:        "ensemble_confidence",
			Help:        "Distribution of accepted ensemble classification confidence.",
			Buckets:     confidenceBuckets,
			ConstLabels: constLabels,
		},
		[]string{"doc_type"},
	)

	registry.MustRegister(processTotal, processDuration, statusTransitions, ocrConfidence, ensembleConfidence)

	return &PipelineMetrics{
		registry:           registry,
		processTotal:       processTotal,
		processDuration:    processDuration,
		statusTransitions:  statusTransitions,
		ocrConfidence:      ocrConfidence,
		ensembleConfidence: ensembleConfidence,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) ObserveProcessing(status string, elapsed time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.processTotal.WithLabelValues(status).Inc()
	m.processDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ObserveConfidence(docType string, ocrConfidence, ensembleConfidence float64) {
	if docType == "" {
		docType = "unknown"
	}
	m.ocrConfidence.WithLabelValues(docType).Observe(ocrConfidence)
	m.ensembleConfidence.WithLabelValues(docType).Observe(ensembleConfidence)
}

func (m *PipelineMetrics) CountStatusChange(from, to string) {
	m.statusTransitions.WithLabelValues(from, to).Inc()
}
