package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// rerankCandidates orders hits by a learned relevance score. On any failure the
// input order is returned untouched and no hit carries a rerank score.
func (uc *RetrieveUseCase) rerankCandidates(ctx context.Context, query string, hits []domain.Hit) ([]domain.Hit, domain.RerankOutcome) {
	if uc.rerankers == nil {
		return hits, domain.RerankOutcome{Status: domain.RerankDisabled}
	}
	if len(hits) <= 1 {
		return hits, domain.RerankOutcome{Status: domain.RerankSkipped}
	}

	reranker, err := uc.rerankers.Reranker(ctx)
	if err != nil {
		return hits, domain.RerankOutcome{Status: domain.RerankUnavailable, Error: err.Error()}
	}

	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Text
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.RerankTimeout)
	scores, err := guardScore(callCtx, reranker.Score, query, texts)
	cancel()
	if err == nil && len(scores) != len(hits) {
		err = fmt.Errorf("reranker returned %d scores for %d candidates", len(scores), len(hits))
	}
	if err != nil {
		uc.logger.Warn("rerank_failed_using_merge_order",
			slog.String("model", reranker.ModelName()),
			slog.Int("candidates", len(hits)),
			slog.String("error", err.Error()))
		return hits, domain.RerankOutcome{Status: domain.RerankFailed, Model: reranker.ModelName(), Error: err.Error()}
	}

	out := make([]domain.Hit, len(hits))
	copy(out, hits)
	for i := range out {
		score := scores[i]
		out[i].RerankScore = &score
	}
	// Stable: equal scores keep merge order.
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].RerankScore > *out[j].RerankScore
	})
	return out, domain.RerankOutcome{Status: domain.RerankApplied, Model: reranker.ModelName()}
}

func guardScore(
	ctx context.Context,
	score func(context.Context, string, []string) ([]float64, error),
	query string,
	texts []string,
) (scores []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			scores, err = nil, fmt.Errorf("reranker panic: %v", r)
		}
	}()
	return score(ctx, query, texts)
}
