package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

func TestQueryUseCaseAnswerDefaultLimit(t *testing.T) {
	search := &searchFake{byQuery: map[string][]domain.SearchHit{
		"ferie": {legalHit("a", "ferieloven.xml", 0, "25 virkedager")},
	}}
	generator := &generatorFake{answer: "answer"}
	uc := NewQueryUseCase(search, generator)

	answer, err := uc.Answer(context.Background(), "ferie", 0, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "answer" {
		t.Fatalf("expected answer text, got %s", answer.Text)
	}
	if search.requests[0].PageSize != 5 || search.requests[0].Page != 1 {
		t.Fatalf("expected default page size 5 on page 1, got %+v", search.requests[0])
	}
	if len(generator.evidence) != 1 || generator.evidence[0].Source != domain.EvidenceSourceLegalArchive {
		t.Fatalf("expected legal evidence passed to generator")
	}
}

func TestQueryUseCaseNoHitsSkipsGeneration(t *testing.T) {
	generator := &generatorFake{answer: "answer"}
	uc := NewQueryUseCase(&searchFake{}, generator)

	answer, err := uc.Answer(context.Background(), "ukjent", 3, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != NoAnswerText || len(answer.Sources) != 0 {
		t.Fatalf("expected no-answer result, got %+v", answer)
	}
	if generator.evidence != nil {
		t.Fatalf("expected generator not called")
	}
}

func TestQueryUseCaseSearchError(t *testing.T) {
	uc := NewQueryUseCase(&searchFake{err: errors.New("search fail")}, &generatorFake{})
	_, err := uc.Answer(context.Background(), "q", 3, domain.SearchFilter{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestQueryUseCaseEmptyGenerationFallsBackToCitations(t *testing.T) {
	search := &searchFake{byQuery: map[string][]domain.SearchHit{
		"ferie": {legalHit("a", "ferieloven.xml", 0, "25 virkedager")},
	}}
	uc := NewQueryUseCase(search, &generatorFake{answer: "  "})

	answer, err := uc.Answer(context.Background(), "ferie", 3, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != citationListAnswer(answer.Sources) {
		t.Fatalf("expected citation list, got %q", answer.Text)
	}
}

func TestQueryUseCaseGenerationErrorFallsBackToCitations(t *testing.T) {
	search := &searchFake{byQuery: map[string][]domain.SearchHit{
		"ferie": {legalHit("a", "ferieloven.xml", 0, "25 virkedager")},
	}}
	generator := &generatorFake{err: domain.WrapError(domain.ErrTemporary, "ollama generate", errors.New("status 503"))}
	uc := NewQueryUseCase(search, generator)

	answer, err := uc.Answer(context.Background(), "ferie", 3, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected one source, got %d", len(answer.Sources))
	}
	if answer.Text != citationListAnswer(answer.Sources) {
		t.Fatalf("expected citation list, got %q", answer.Text)
	}
}
