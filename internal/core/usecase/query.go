package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/core/ports"
)

type QueryUseCase struct {
	retriever ports.Retriever
	generator ports.AnswerGenerator
}

func NewQueryUseCase(retriever ports.Retriever, generator ports.AnswerGenerator) *QueryUseCase {
	return &QueryUseCase{
		retriever: retriever,
		generator: generator,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, question string, topK, rerankTopK int) (*domain.Answer, error) {
	result := uc.retriever.Retrieve(ctx, question, topK, rerankTopK)

	answerText, err := uc.generator.GenerateAnswer(ctx, question, result.Hits)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    answerText,
		Sources: result.Hits,
		Report:  result.Report,
	}, nil
}
