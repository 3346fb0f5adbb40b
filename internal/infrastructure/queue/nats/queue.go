package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/resilience"
)

const queueGroup = "retrievers"

// Reply is the JSON envelope sent back for every retrieval request.
type Reply struct {
	Result *domain.RetrievalResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Observer receives per-message outcomes. Worker metrics implement it.
type Observer interface {
	StartMessage()
	FinishMessage(service string, duration time.Duration, err error)
	RecordRetrieval(service string, report domain.RetrievalReport, duration time.Duration)
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("hybrid-retriever"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats_disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Request sends a retrieval request and waits for the worker's reply.
func (q *Queue) Request(ctx context.Context, req domain.RetrieveRequest) (domain.RetrievalResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("marshal retrieve request: %w", err)
	}

	msg, err := resilience.Call(ctx, q.executor, "nats.request", func(callCtx context.Context) (*nats.Msg, error) {
		msg, err := q.conn.RequestWithContext(callCtx, q.subject, payload)
		if err != nil {
			return nil, fmt.Errorf("nats request: %w", err)
		}
		return msg, nil
	}, classifyNATSError)
	if err != nil {
		return domain.RetrievalResult{}, wrapTemporaryIfNeeded(err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("decode retrieve reply: %w", err)
	}
	if reply.Error != "" {
		return domain.RetrievalResult{}, domain.WrapError(domain.ErrInvalidInput, "nats retrieve", errors.New(reply.Error))
	}
	if reply.Result == nil {
		return domain.RetrievalResult{}, fmt.Errorf("empty retrieve reply")
	}
	return *reply.Result, nil
}

// ServeRetrieval answers retrieval requests on the queue group until ctx is done,
// then drains the subscription.
func (q *Queue) ServeRetrieval(
	ctx context.Context,
	retriever ports.Retriever,
	timeout time.Duration,
	observer Observer,
) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		handlerCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		reply := HandleRetrievalMessage(handlerCtx, retriever, msg.Data, observer)
		if err := msg.Respond(reply); err != nil {
			q.logger.Warn("nats_respond_failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// HandleRetrievalMessage decodes one request, retrieves and encodes the reply.
// Malformed requests get an error reply; retrieval itself never fails.
func HandleRetrievalMessage(ctx context.Context, retriever ports.Retriever, data []byte, observer Observer) []byte {
	start := time.Now()
	if observer != nil {
		observer.StartMessage()
	}

	var (
		reply Reply
		err   error
	)
	req, err := decodeRetrieveRequest(data)
	if err == nil {
		result := retriever.Retrieve(ctx, req.Query, req.TopK, req.RerankTopK)
		reply.Result = &result
		if observer != nil {
			observer.RecordRetrieval("worker", result.Report, time.Since(start))
		}
	} else {
		reply.Error = err.Error()
	}
	if observer != nil {
		observer.FinishMessage("worker", time.Since(start), err)
	}

	out, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		out, _ = json.Marshal(Reply{Error: "encode reply: " + marshalErr.Error()})
	}
	return out
}

func decodeRetrieveRequest(data []byte) (domain.RetrieveRequest, error) {
	var req domain.RetrieveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("invalid retrieve request: %w", err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, errors.New("query is required")
	}
	return req, nil
}
