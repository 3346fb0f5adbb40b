package mcpadapter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

type retrieverFake struct {
	query      string
	topK       int
	rerankTopK int
	result     domain.RetrievalResult
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, topK, rerankTopK int) domain.RetrievalResult {
	f.query, f.topK, f.rerankTopK = query, topK, rerankTopK
	return f.result
}

func callTool(t *testing.T, s *Server, args any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = "retrieve_passages"
	req.Params.Arguments = args

	result, err := s.handleRetrievePassages(context.Background(), req)
	if err != nil {
		t.Fatalf("handleRetrievePassages() error = %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestRetrievePassagesReturnsResult(t *testing.T) {
	retriever := &retrieverFake{result: domain.RetrievalResult{
		Hits: []domain.Hit{domain.NewDirectHit(domain.Chunk{ID: "c1", Text: "Figure III.5", Meta: domain.ChunkMeta{Page: 4}})},
	}}
	s := NewServer(retriever, nil)

	result := callTool(t, s, map[string]any{"query": "Figure III.5", "topk": float64(8), "rerank_topk": float64(3)})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if retriever.query != "Figure III.5" || retriever.topK != 8 || retriever.rerankTopK != 3 {
		t.Fatalf("unexpected retrieve call: %q %d %d", retriever.query, retriever.topK, retriever.rerankTopK)
	}

	var decoded domain.RetrievalResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &decoded); err != nil {
		t.Fatalf("decode tool output: %v", err)
	}
	if len(decoded.Hits) != 1 || decoded.Hits[0].Meta.Page != 4 {
		t.Fatalf("unexpected hits: %+v", decoded.Hits)
	}
}

func TestRetrievePassagesDefaultsLimits(t *testing.T) {
	retriever := &retrieverFake{}
	s := NewServer(retriever, nil)

	result := callTool(t, s, map[string]any{"query": "revenue"})
	if result.IsError {
		t.Fatalf("unexpected tool error")
	}
	if retriever.topK != 0 || retriever.rerankTopK != 0 {
		t.Fatalf("expected zero limits to be forwarded for defaults, got %d/%d", retriever.topK, retriever.rerankTopK)
	}
}

func TestRetrievePassagesRejectsBadArguments(t *testing.T) {
	cases := map[string]any{
		"not an object": "revenue",
		"missing query": map[string]any{"topk": float64(3)},
		"blank query":   map[string]any{"query": "  "},
		"negative topk": map[string]any{"query": "revenue", "topk": float64(-1)},
	}
	for name, args := range cases {
		retriever := &retrieverFake{}
		result := callTool(t, NewServer(retriever, nil), args)
		if !result.IsError {
			t.Fatalf("%s: expected tool error", name)
		}
		if retriever.query != "" {
			t.Fatalf("%s: retriever must not be called", name)
		}
	}
}
