package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/resilience"
)

const service = "reranker"

// Client scores (query, passage) pairs against a cross-encoder inference service.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New probes the service health endpoint and fails when the model is not served.
func New(ctx context.Context, baseURL, model string, timeout time.Duration, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("reranker url is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
	if err := c.probe(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ModelName() string {
	return c.model
}

type rerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Score returns one score per text in input order. The service may return results
// sorted by score; they are mapped back by index.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	var response rerankResponse
	err := c.executor.Execute(ctx, "reranker.score", func(callCtx context.Context) error {
		response = rerankResponse{}
		return c.doJSON(callCtx, http.MethodPost, "/v1/rerank", rerankRequest{
			Query:      query,
			Candidates: texts,
			Model:      c.model,
		}, &response, "score")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("reranker score", err, resilience.ClassifyHTTPError)
	}

	if len(response.Results) != len(texts) {
		return nil, fmt.Errorf("reranker returned %d results for %d candidates", len(response.Results), len(texts))
	}
	scores := make([]float64, len(texts))
	filled := make([]bool, len(texts))
	for _, r := range response.Results {
		if r.Index < 0 || r.Index >= len(texts) || filled[r.Index] {
			return nil, fmt.Errorf("reranker returned invalid result index %d", r.Index)
		}
		scores[r.Index] = r.Score
		filled[r.Index] = true
	}
	return scores, nil
}

func (c *Client) probe(ctx context.Context) error {
	var health struct {
		Status string   `json:"status"`
		Models []string `json:"models"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &health, "health"); err != nil {
		return err
	}
	if len(health.Models) == 0 || c.model == "" {
		return nil
	}
	for _, m := range health.Models {
		if m == c.model {
			return nil
		}
	}
	return fmt.Errorf("reranker model %q is not served (available: %s)", c.model, strings.Join(health.Models, ", "))
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reranker %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError(service, operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
