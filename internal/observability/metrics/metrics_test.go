package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

func TestRecordRetrievalCountsOutcomes(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordRetrieval("api", "retrieve", domain.RetrievalReport{
		DirectMatches: 1,
		Searches: []domain.SearchOutcome{
			{Query: "a", Error: "timeout"},
			{Query: "b", Hits: 3},
		},
		Rerank:   domain.RerankOutcome{Status: domain.RerankFailed},
		Returned: 3,
	}, 20*time.Millisecond)
	m.RecordRetrieval("api", "retrieve", domain.RetrievalReport{
		Rerank: domain.RerankOutcome{Status: domain.RerankSkipped},
	}, time.Millisecond)

	if got := testutil.ToFloat64(m.retrieval.requestsTotal.WithLabelValues("api", "retrieve")); got != 2 {
		t.Fatalf("requests_total = %v", got)
	}
	if got := testutil.ToFloat64(m.retrieval.semanticFailures.WithLabelValues("api", "retrieve")); got != 1 {
		t.Fatalf("semantic_failures_total = %v", got)
	}
	if got := testutil.ToFloat64(m.retrieval.rerankTotal.WithLabelValues("api", "retrieve", "failed")); got != 1 {
		t.Fatalf("rerank_total{failed} = %v", got)
	}
	if got := testutil.ToFloat64(m.retrieval.noContextTotal.WithLabelValues("api", "retrieve")); got != 1 {
		t.Fatalf("no_context_total = %v", got)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/healthz", "418")); got != 1 {
		t.Fatalf("requests_total = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "hr_http_requests_total") {
		t.Fatalf("metrics output misses http counter")
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.StartMessage()
	m.FinishMessage("worker", time.Millisecond, errors.New("bad request"))
	m.RecordRetrieval("worker", domain.RetrievalReport{Returned: 2, Rerank: domain.RerankOutcome{Status: domain.RerankApplied}}, time.Millisecond)

	if got := testutil.ToFloat64(m.messagesTotal.WithLabelValues("worker", "error")); got != 1 {
		t.Fatalf("messages_total{error} = %v", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Fatalf("in flight = %v", got)
	}
	if got := testutil.ToFloat64(m.retrieval.rerankTotal.WithLabelValues("worker", "nats", "applied")); got != 1 {
		t.Fatalf("rerank_total{applied} = %v", got)
	}
}
