package ports

import (
	"context"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// Retriever is the inbound contract of the hybrid retrieval engine. It never fails:
// degraded collaborators shorten the result and are reported in RetrievalReport.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK, rerankTopK int) domain.RetrievalResult
}

// QueryService retrieves context and hands it to answer generation.
type QueryService interface {
	Answer(ctx context.Context, question string, topK, rerankTopK int) (*domain.Answer, error)
}

// CorpusIndexer builds the vector index for a corpus.
type CorpusIndexer interface {
	Index(ctx context.Context, chunks []domain.Chunk) (domain.IndexStats, error)
}

// RetrievalEvaluator scores retrieval against an evaluation set.
type RetrievalEvaluator interface {
	Evaluate(ctx context.Context, cases []domain.EvaluationCase) domain.EvaluationReport
}
