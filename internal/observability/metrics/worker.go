package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	retrieval retrievalCollectors
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	messagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "messages_total",
			Help:      "Total handled retrieval requests by status.",
		},
		[]string{"service", "status"},
	)
	messageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "message_duration_seconds",
			Help:      "Retrieval request handling duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "messages_in_flight",
			Help:      "Number of retrieval requests being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrieval := newRetrievalCollectors()

	registry.MustRegister(messagesTotal, messageDuration, inFlight)
	registry.MustRegister(retrieval.collectors()...)

	return &WorkerMetrics{
		registry:        registry,
		messagesTotal:   messagesTotal,
		messageDuration: messageDuration,
		inFlight:        inFlight,
		retrieval:       retrieval,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartMessage() {
	m.inFlight.Inc()
}

func (m *WorkerMetrics) FinishMessage(service string, duration time.Duration, err error) {
	m.inFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.messagesTotal.WithLabelValues(service, status).Inc()
	m.messageDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordRetrieval(service string, report domain.RetrievalReport, duration time.Duration) {
	m.retrieval.observe(service, "nats", report, duration)
}
