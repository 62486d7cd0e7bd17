package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

const NoAnswerText = "Fant ingen relevante rettskilder for spørsmålet."

type QueryUseCase struct {
	search    ports.SearchService
	generator ports.AnswerGenerator
}

func NewQueryUseCase(search ports.SearchService, generator ports.AnswerGenerator) *QueryUseCase {
	return &QueryUseCase{
		search:    search,
		generator: generator,
	}
}

// Answer runs one hybrid search and one generation call over its hits. A failed
// generation degrades to a citation list; only search errors are returned.
func (uc *QueryUseCase) Answer(
	ctx context.Context,
	question string,
	limit int,
	filter domain.SearchFilter,
) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", fmt.Errorf("question is required"))
	}
	if limit <= 0 {
		limit = 5
	}

	result, err := uc.search.Search(ctx, domain.SearchRequest{
		Query:    question,
		Page:     1,
		PageSize: limit,
		Filter:   filter,
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	sources := hitsToEvidence(result.Hits)
	if len(sources) == 0 {
		return &domain.Answer{Text: NoAnswerText, Sources: []domain.Evidence{}}, nil
	}

	text, err := uc.Synthesize(ctx, question, sources)
	if err != nil {
		slog.Warn("answer_generation_degraded", "sources", len(sources), "error", err)
		text = citationListAnswer(sources)
	}
	return &domain.Answer{
		Text:    text,
		Sources: sources,
	}, nil
}

// Synthesize writes an answer from a fixed evidence set.
func (uc *QueryUseCase) Synthesize(ctx context.Context, question string, evidence []domain.Evidence) (string, error) {
	if uc.generator == nil {
		return citationListAnswer(evidence), nil
	}
	text, err := uc.generator.GenerateAnswer(ctx, question, evidence)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return citationListAnswer(evidence), nil
	}
	return text, nil
}
