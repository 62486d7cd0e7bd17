package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal     *prometheus.CounterVec
	processDuration  *prometheus.HistogramVec
	processInFlight  prometheus.Gauge
	documentsIndexed *prometheus.HistogramVec
	reindexTotal     *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "archive_process_total",
			Help:      "Total processed archives by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "archive_process_duration_seconds",
			Help:      "Archive processing duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "archive_process_in_flight",
			Help:        "Number of in-flight archive processing tasks.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	documentsIndexed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "archive_documents",
			Help:      "Documents indexed per successfully processed archive.",
			Buckets:   []float64{1, 10, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"service"},
	)
	reindexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "scheduled_reindex_total",
			Help:      "Scheduled full re-index runs by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, documentsIndexed, reindexTotal)

	return &WorkerMetrics{
		registry:         registry,
		processTotal:     processTotal,
		processDuration:  processDuration,
		processInFlight:  processInFlight,
		documentsIndexed: documentsIndexed,
		reindexTotal:     reindexTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartArchive() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishArchive(service string, duration time.Duration, documents int, err error) {
	m.processInFlight.Dec()

	status := statusLabel(err)
	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil {
		m.documentsIndexed.WithLabelValues(service).Observe(float64(documents))
	}
}

func (m *WorkerMetrics) RecordReindex(service string, err error) {
	m.reindexTotal.WithLabelValues(service, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
