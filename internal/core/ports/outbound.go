package ports

import (
	"context"
	"io"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// ObjectStorage stores corpus files, evaluation sets and reports.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CorpusLoader supplies the chunk collection once at startup.
type CorpusLoader interface {
	LoadChunks(ctx context.Context) ([]domain.Chunk, error)
}

// ChunkRepository mirrors the corpus into a relational store.
type ChunkRepository interface {
	CorpusLoader
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes chunk vectors and performs similarity search.
type VectorStore interface {
	UpsertChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Hit, error)
}

// SemanticSearcher returns hits ranked by descending similarity for one query string.
type SemanticSearcher interface {
	Search(ctx context.Context, text string, k int) ([]domain.Hit, error)
}

// Reranker scores (query, text) pairs; the result has one score per text, same order.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	ModelName() string
}

// RerankerProvider hands out the process-wide reranker. A construction failure is
// reported as domain.ErrUnavailable on every call.
type RerankerProvider interface {
	Reranker(ctx context.Context) (Reranker, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, hits []domain.Hit) (string, error)
}

// EvaluationReportWriter persists an evaluation report under a storage key.
type EvaluationReportWriter interface {
	WriteEvaluation(ctx context.Context, key string, report domain.EvaluationReport) error
}
