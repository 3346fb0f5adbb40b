package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

const namespace = "hr"

// retrievalCollectors describe retrieve calls. They are registered on both the API
// and the worker registries.
type retrievalCollectors struct {
	requestsTotal     *prometheus.CounterVec
	returnedHits      *prometheus.HistogramVec
	directMatches     *prometheus.HistogramVec
	semanticFailures  *prometheus.CounterVec
	rerankTotal       *prometheus.CounterVec
	noContextTotal    *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
}

func newRetrievalCollectors() retrievalCollectors {
	return retrievalCollectors{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "requests_total",
				Help:      "Total retrieve calls.",
			},
			[]string{"service", "endpoint"},
		),
		returnedHits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "returned_hits",
				Help:      "Distribution of hits returned per retrieve call.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"service", "endpoint"},
		),
		directMatches: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "direct_matches",
				Help:      "Distribution of identifier matches per retrieve call.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8},
			},
			[]string{"service", "endpoint"},
		),
		semanticFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "semantic_failures_total",
				Help:      "Total failed semantic searches across expansions.",
			},
			[]string{"service", "endpoint"},
		),
		rerankTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "rerank_total",
				Help:      "Total rerank stage outcomes by status.",
			},
			[]string{"service", "endpoint", "status"},
		),
		noContextTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "no_context_total",
				Help:      "Total retrieve calls that returned no hits.",
			},
			[]string{"service", "endpoint"},
		),
		retrievalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "duration_seconds",
				Help:      "Retrieve call duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "endpoint"},
		),
	}
}

func (c retrievalCollectors) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.requestsTotal,
		c.returnedHits,
		c.directMatches,
		c.semanticFailures,
		c.rerankTotal,
		c.noContextTotal,
		c.retrievalDuration,
	}
}

func (c retrievalCollectors) observe(service, endpoint string, report domain.RetrievalReport, duration time.Duration) {
	c.requestsTotal.WithLabelValues(service, endpoint).Inc()
	c.returnedHits.WithLabelValues(service, endpoint).Observe(float64(report.Returned))
	c.directMatches.WithLabelValues(service, endpoint).Observe(float64(report.DirectMatches))
	c.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if failures := report.SemanticFailures(); failures > 0 {
		c.semanticFailures.WithLabelValues(service, endpoint).Add(float64(failures))
	}
	status := string(report.Rerank.Status)
	if status == "" {
		status = "unknown"
	}
	c.rerankTotal.WithLabelValues(service, endpoint, status).Inc()
	if report.Returned == 0 {
		c.noContextTotal.WithLabelValues(service, endpoint).Inc()
	}
}
