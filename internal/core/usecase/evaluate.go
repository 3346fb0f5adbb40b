package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

const (
	evaluationTopK       = 10
	evaluationRerankTopK = 5
)

type EvaluateUseCase struct {
	retriever ports.Retriever
	logger    *slog.Logger
}

func NewEvaluateUseCase(retriever ports.Retriever, logger *slog.Logger) *EvaluateUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluateUseCase{retriever: retriever, logger: logger}
}

// Evaluate checks, per case, whether retrieval surfaces the expected page.
func (uc *EvaluateUseCase) Evaluate(ctx context.Context, cases []domain.EvaluationCase) domain.EvaluationReport {
	report := domain.EvaluationReport{
		Cases: make([]domain.EvaluationCaseResult, 0, len(cases)),
		Total: len(cases),
	}
	for _, c := range cases {
		result := uc.retriever.Retrieve(ctx, c.Question, evaluationTopK, evaluationRerankTopK)
		pages := retrievedPages(result.Hits)
		passed := pageHit(c.ExpectedPage, result.Hits)
		if passed {
			report.Passed++
		}
		report.Cases = append(report.Cases, domain.EvaluationCaseResult{
			EvaluationCase: c,
			RetrievedPages: pages,
			Passed:         passed,
		})
		uc.logger.Debug("evaluation_case",
			slog.String("id", c.ID),
			slog.Bool("passed", passed),
			slog.Any("retrieved_pages", pages))
	}
	return report
}

// pageHit passes a case with no expected page only when every hit has a known page.
func pageHit(expected *int, hits []domain.Hit) bool {
	for _, hit := range hits {
		if expected == nil && hit.Meta.Page == 0 {
			return false
		}
		if expected != nil && hit.Meta.Page == *expected {
			return true
		}
	}
	return expected == nil
}

func retrievedPages(hits []domain.Hit) []int {
	seen := make(map[int]struct{}, len(hits))
	pages := make([]int, 0, len(hits))
	for _, hit := range hits {
		if _, ok := seen[hit.Meta.Page]; ok {
			continue
		}
		seen[hit.Meta.Page] = struct{}{}
		pages = append(pages, hit.Meta.Page)
	}
	sort.Ints(pages)
	return pages
}
