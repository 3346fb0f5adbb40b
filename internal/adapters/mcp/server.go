package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

const (
	ServerName    = "hybrid-retriever"
	ServerVersion = "1.0.0"

	maxTopK = 200
)

// Server exposes retrieval as MCP tools over stdio.
type Server struct {
	mcp       *server.MCPServer
	retriever ports.Retriever
	logger    *slog.Logger
}

func NewServer(retriever ports.Retriever, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		retriever: retriever,
		logger:    logger,
	}
	s.mcp.AddTool(retrievePassagesTool(), s.handleRetrievePassages)
	return s
}

// Serve blocks on stdio until the client disconnects.
func (s *Server) Serve(_ context.Context) error {
	return server.ServeStdio(s.mcp)
}

func retrievePassagesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_passages",
		Description: "Retrieve document passages relevant to a question. Figure and table references such as 'Figure III.5' are matched exactly.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural language question",
				},
				"topk": map[string]any{
					"type":        "integer",
					"description": "Candidates fetched per query expansion",
					"minimum":     0,
					"maximum":     maxTopK,
				},
				"rerank_topk": map[string]any{
					"type":        "integer",
					"description": "Maximum number of passages returned",
					"minimum":     0,
					"maximum":     maxTopK,
				},
			},
			Required: []string{"query"},
		},
	}
}

func (s *Server) handleRetrievePassages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	topK := getIntDefault(args, "topk", 0)
	rerankTopK := getIntDefault(args, "rerank_topk", 0)
	if topK < 0 || topK > maxTopK || rerankTopK < 0 || rerankTopK > maxTopK {
		return mcp.NewToolResultError(fmt.Sprintf("topk and rerank_topk must be between 0 and %d", maxTopK)), nil
	}

	start := time.Now()
	result := s.retriever.Retrieve(ctx, query, topK, rerankTopK)
	if result.Hits == nil {
		result.Hits = []domain.Hit{}
	}
	s.logger.Info("mcp_retrieve",
		slog.Int("returned", len(result.Hits)),
		slog.String("rerank", string(result.Report.Rerank.Status)),
		slog.Duration("duration", time.Since(start)))

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode retrieval result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func getIntDefault(args map[string]any, key string, defaultValue int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	default:
		return defaultValue
	}
}
