package usecase

import (
	"context"
	"reflect"
	"testing"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

func pageRef(p int) *int { return &p }

func hitOnPage(id string, page int) domain.Hit {
	return domain.NewDirectHit(textChunk(id, "", page))
}

func TestEvaluateUseCase(t *testing.T) {
	retriever := &retrieverFake{byQuestion: map[string]domain.RetrievalResult{
		"revenue?": {Hits: []domain.Hit{hitOnPage("a", 12), hitOnPage("b", 3), hitOnPage("c", 12)}},
		"board?":   {Hits: []domain.Hit{hitOnPage("d", 9)}},
		"unknown?": {Hits: []domain.Hit{hitOnPage("e", 4)}},
		"orphan?":  {Hits: []domain.Hit{hitOnPage("f", 0)}},
	}}
	cases := []domain.EvaluationCase{
		{ID: "q1", Question: "revenue?", ExpectedPage: pageRef(12)},
		{ID: "q2", Question: "board?", ExpectedPage: pageRef(10)},
		{ID: "q3", Question: "unknown?"},
		{ID: "q4", Question: "orphan?"},
	}

	report := NewEvaluateUseCase(retriever, discardLogger()).Evaluate(context.Background(), cases)

	if report.Total != 4 || report.Passed != 2 {
		t.Fatalf("unexpected totals: passed=%d total=%d", report.Passed, report.Total)
	}
	wantPassed := []bool{true, false, true, false}
	for i, result := range report.Cases {
		if result.Passed != wantPassed[i] {
			t.Fatalf("case %s passed=%v, want %v", result.ID, result.Passed, wantPassed[i])
		}
	}
	if !reflect.DeepEqual(report.Cases[0].RetrievedPages, []int{3, 12}) {
		t.Fatalf("unexpected pages: %v", report.Cases[0].RetrievedPages)
	}
	for i := range retriever.calls {
		if retriever.calls[i].k != 10 || retriever.rerankTopK[i] != 5 {
			t.Fatalf("evaluation must retrieve with topk=10 rerank_topk=5")
		}
	}
}

func TestEvaluateUseCaseNoCases(t *testing.T) {
	report := NewEvaluateUseCase(&retrieverFake{}, nil).Evaluate(context.Background(), nil)
	if report.Total != 0 || report.Passed != 0 || report.Cases == nil {
		t.Fatalf("unexpected report: %+v", report)
	}
}
