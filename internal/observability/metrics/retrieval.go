package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RetrievalMetrics holds the service registry and every pipeline/HTTP series.
// It implements the pipeline's Observer contract.
type RetrievalMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal      *prometheus.CounterVec
	retrievalDuration   *prometheus.HistogramVec
	retrievedDocuments  *prometheus.HistogramVec
	retrievalConfidence *prometheus.HistogramVec
	stageDegradedTotal  *prometheus.CounterVec
	cacheLookupsTotal   *prometheus.CounterVec
}

func NewRetrievalMetrics(service string) *RetrievalMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "retrieval",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total retrieval pipeline runs by outcome.",
		},
		[]string{"service", "status"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End-to-end retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievedDocuments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Subsystem: "pipeline",
			Name:      "returned_documents",
			Help:      "Distribution of documents per successful retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	retrievalConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Subsystem: "pipeline",
			Name:      "confidence",
			Help:      "Distribution of result confidence per successful retrieval.",
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 0.7, 0.85, 0.95, 1},
		},
		[]string{"service"},
	)
	stageDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Subsystem: "pipeline",
			Name:      "stage_degraded_total",
			Help:      "Total pipeline stages that failed and were degraded to no contribution.",
		},
		[]string{"service", "stage"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalDuration,
		retrievedDocuments,
		retrievalConfidence,
		stageDegradedTotal,
		cacheLookupsTotal,
	)

	return &RetrievalMetrics{
		registry:            registry,
		service:             service,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		retrievalTotal:      retrievalTotal,
		retrievalDuration:   retrievalDuration,
		retrievedDocuments:  retrievedDocuments,
		retrievalConfidence: retrievalConfidence,
		stageDegradedTotal:  stageDegradedTotal,
		cacheLookupsTotal:   cacheLookupsTotal,
	}
}

func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RetrievalCompleted implements the pipeline observer.
func (m *RetrievalMetrics) RetrievalCompleted(status string, took time.Duration, documents int, confidence float64) {
	m.retrievalTotal.WithLabelValues(m.service, status).Inc()
	if status != "ok" {
		return
	}
	m.retrievalDuration.WithLabelValues(m.service).Observe(took.Seconds())
	m.retrievedDocuments.WithLabelValues(m.service).Observe(float64(documents))
	m.retrievalConfidence.WithLabelValues(m.service).Observe(confidence)
}

func (m *RetrievalMetrics) StageDegraded(stage string) {
	m.stageDegradedTotal.WithLabelValues(m.service, stage).Inc()
}

func (m *RetrievalMetrics) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(m.service, outcome).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (m *RetrievalMetrics) ObserveHTTPRequest(method, path string, status int, took time.Duration) {
	m.requestTotal.WithLabelValues(m.service, method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(m.service, method, path).Observe(took.Seconds())
}

func (m *RetrievalMetrics) IncInFlight() { m.requestInFlight.Inc() }
func (m *RetrievalMetrics) DecInFlight() { m.requestInFlight.Dec() }
