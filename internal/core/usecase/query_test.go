package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

type retrieverFake struct {
	result     domain.RetrievalResult
	byQuestion map[string]domain.RetrievalResult
	calls      []searchCall
	rerankTopK []int
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, topK, rerankTopK int) domain.RetrievalResult {
	f.calls = append(f.calls, searchCall{text: query, k: topK})
	f.rerankTopK = append(f.rerankTopK, rerankTopK)
	if r, ok := f.byQuestion[query]; ok {
		return r
	}
	return f.result
}

type generatorFake struct {
	answer   string
	err      error
	gotHits  []domain.Hit
	question string
}

func (f *generatorFake) GenerateAnswer(_ context.Context, question string, hits []domain.Hit) (string, error) {
	f.question = question
	f.gotHits = hits
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestQueryUseCaseAnswer(t *testing.T) {
	hits := []domain.Hit{semanticHit("5-txt-2", 0.7)}
	retriever := &retrieverFake{result: domain.RetrievalResult{Hits: hits, Report: domain.RetrievalReport{Returned: 1}}}
	generator := &generatorFake{answer: "Orders grew 40%."}

	answer, err := NewQueryUseCase(retriever, generator).Answer(context.Background(), "How did orders grow?", 15, 5)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "Orders grew 40%." {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].ID != "5-txt-2" {
		t.Fatalf("unexpected sources: %+v", answer.Sources)
	}
	if answer.Report.Returned != 1 {
		t.Fatalf("report was not propagated")
	}
	if generator.question != "How did orders grow?" || len(generator.gotHits) != 1 {
		t.Fatalf("generator received %q with %d hits", generator.question, len(generator.gotHits))
	}
	if retriever.calls[0].k != 15 || retriever.rerankTopK[0] != 5 {
		t.Fatalf("limits were not forwarded: %+v %v", retriever.calls, retriever.rerankTopK)
	}
}

func TestQueryUseCaseGeneratorError(t *testing.T) {
	retriever := &retrieverFake{}
	generator := &generatorFake{err: errors.New("ollama timeout")}

	_, err := NewQueryUseCase(retriever, generator).Answer(context.Background(), "q", 0, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
}
