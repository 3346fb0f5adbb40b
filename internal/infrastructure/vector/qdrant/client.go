package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/resilience"
)

const service = "qdrant"

// Client stores one point per chunk. Point ids are derived from chunk ids, so
// re-indexing the same corpus overwrites instead of duplicating.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type chunkPayload struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Page      int    `json:"page"`
	Type      string `json:"type"`
	FigureTag string `json:"figure_tag,omitempty"`
	Source    string `json:"source,omitempty"`
	Path      string `json:"path,omitempty"`
}

func payloadFromChunk(chunk domain.Chunk) chunkPayload {
	return chunkPayload{
		ID:        chunk.ID,
		Text:      chunk.Text,
		Page:      chunk.Meta.Page,
		Type:      string(chunk.Meta.Type),
		FigureTag: chunk.Meta.FigureTag,
		Source:    chunk.Meta.Source,
		Path:      chunk.Meta.Path,
	}
}

func (p chunkPayload) chunk() (domain.Chunk, bool) {
	chunkType, ok := domain.ParseChunkType(p.Type)
	if !ok || strings.TrimSpace(p.ID) == "" {
		return domain.Chunk{}, false
	}
	return domain.Chunk{
		ID:   p.ID,
		Text: p.Text,
		Meta: domain.ChunkMeta{
			Page:      p.Page,
			Type:      chunkType,
			FigureTag: p.FigureTag,
			Source:    p.Source,
			Path:      p.Path,
		},
	}, true
}

// PointID maps a chunk id to the stable UUID used as the Qdrant point id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func (c *Client) UpsertChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string       `json:"id"`
		Vector  []float32    `json:"vector"`
		Payload chunkPayload `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:      PointID(chunk.ID),
			Vector:  vectors[i],
			Payload: payloadFromChunk(chunk),
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	err := c.executor.Execute(ctx, "qdrant.upsert", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("qdrant upsert", err, resilience.ClassifyHTTPError)
}

// Search returns hits ordered by descending cosine similarity. Points whose payload
// does not describe a valid chunk are skipped.
func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Hit, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return []domain.Hit{}, nil
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64      `json:"score"`
			Payload chunkPayload `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	err := c.executor.Execute(ctx, "qdrant.search", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, url, reqBody, &searchResp, "search")
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("qdrant search", err, resilience.ClassifyHTTPError)
	}

	out := make([]domain.Hit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		chunk, ok := r.Payload.chunk()
		if !ok {
			continue
		}
		out = append(out, domain.NewSemanticHit(chunk, r.Score))
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.executor.Execute(ctx, "qdrant.ensure_collection", func(callCtx context.Context) error {
		err := c.doJSON(callCtx, http.MethodPut, url, reqBody, nil, "ensure collection")
		// 409 when the collection already exists.
		var statusErr *resilience.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return nil
		}
		return err
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return resilience.WrapTemporary("qdrant ensure collection", err, resilience.ClassifyHTTPError)
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError(service, operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
