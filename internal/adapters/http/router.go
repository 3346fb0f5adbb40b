package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-retriever/internal/config"
	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
	"github.com/kirillkom/hybrid-retriever/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 1 << 20
)

type Router struct {
	cfg       config.Config
	retriever ports.Retriever
	queryUC   ports.QueryService
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator
	logger    *slog.Logger
}

func NewRouter(cfg config.Config, retriever ports.Retriever, queryUC ports.QueryService, logger *slog.Logger) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:       cfg,
		retriever: retriever,
		queryUC:   queryUC,
		metrics:   metrics.NewHTTPServerMetrics(serviceName),
		validator: validator,
		logger:    logger,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.metrics.Handler())
	mux.HandleFunc("POST /v1/retrieve", rt.retrieve)
	mux.HandleFunc("POST /v1/rag/query", rt.queryRAG)

	var handler http.Handler = mux
	handler = rt.validator.middleware(handler)
	handler = backpressureMiddlewareWithRecorder(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.metrics)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.metrics)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	var req domain.RetrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	result := rt.retriever.Retrieve(r.Context(), req.Query, req.TopK, req.RerankTopK)
	rt.metrics.RecordRetrieval(serviceName, "/v1/retrieve", result.Report, time.Since(start))
	if result.Hits == nil {
		result.Hits = []domain.Hit{}
	}
	writeJSON(w, http.StatusOK, result)
}

type ragQueryRequest struct {
	Question   string `json:"question"`
	TopK       int    `json:"topk"`
	RerankTopK int    `json:"rerank_topk"`
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req ragQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "rag query", errors.New("question is required")))
		return
	}

	start := time.Now()
	answer, err := rt.queryUC.Answer(r.Context(), req.Question, req.TopK, req.RerankTopK)
	rt.metrics.RecordAnswer(serviceName, err)
	if err != nil {
		rt.logger.Error("rag_query_failed",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, r, err)
		return
	}
	rt.metrics.RecordRetrieval(serviceName, "/v1/rag/query", answer.Report, time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := decoder.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{
		Error:     err.Error(),
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
