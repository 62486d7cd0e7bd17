package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

func candidates(members ...string) []domain.SearchCandidate {
	out := make([]domain.SearchCandidate, 0, len(members))
	for _, m := range members {
		out = append(out, domain.SearchCandidate{Hit: docHit(m)})
	}
	return out
}

func members(cs []domain.SearchCandidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Hit.Member)
	}
	return out
}

func assertOrder(t *testing.T, got []domain.SearchCandidate, want ...string) {
	t.Helper()
	names := members(got)
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestRerankerIdentityOnProviderError(t *testing.T) {
	provider := &rerankProviderFake{err: errors.New("quota exceeded")}
	r := NewReranker(provider, time.Second)

	out, applied := r.Rerank(context.Background(), "oppsigelse", candidates("a", "b", "c"), 3)
	if applied {
		t.Fatalf("expected rerank not applied")
	}
	assertOrder(t, out, "a", "b", "c")
}

func TestRerankerIdentityOnShortResponse(t *testing.T) {
	provider := &rerankProviderFake{scores: []*float64{floatPtr(0.9)}}
	r := NewReranker(provider, time.Second)

	out, applied := r.Rerank(context.Background(), "oppsigelse", candidates("a", "b", "c"), 3)
	if applied {
		t.Fatalf("expected rerank not applied")
	}
	assertOrder(t, out, "a", "b", "c")
}

func TestRerankerIdentityOnEmptyInput(t *testing.T) {
	provider := &rerankProviderFake{}
	r := NewReranker(provider, time.Second)

	out, applied := r.Rerank(context.Background(), "oppsigelse", nil, 10)
	if applied || len(out) != 0 {
		t.Fatalf("expected empty identity output")
	}
	if provider.calls != 0 {
		t.Fatalf("expected provider not called for empty input")
	}
}

func TestRerankerReordersHeadAndKeepsTail(t *testing.T) {
	provider := &rerankProviderFake{scores: []*float64{floatPtr(0.1), floatPtr(0.9)}}
	r := NewReranker(provider, time.Second)

	out, applied := r.Rerank(context.Background(), "oppsigelse", candidates("a", "b", "c", "d"), 2)
	if !applied {
		t.Fatalf("expected rerank applied")
	}
	assertOrder(t, out, "b", "a", "c", "d")
	if out[0].Hit.Score != 0.9 {
		t.Fatalf("expected provider score on hit, got %f", out[0].Hit.Score)
	}
}

func TestRerankerSinksUnscoredInFusedOrder(t *testing.T) {
	provider := &rerankProviderFake{scores: []*float64{nil, floatPtr(0.2), nil, floatPtr(0.8)}}
	r := NewReranker(provider, time.Second)

	out, applied := r.Rerank(context.Background(), "oppsigelse", candidates("a", "b", "c", "d"), 4)
	if !applied {
		t.Fatalf("expected rerank applied")
	}
	assertOrder(t, out, "d", "b", "a", "c")
}

func TestRerankerNilProviderIsIdentity(t *testing.T) {
	var r *Reranker
	out, applied := r.Rerank(context.Background(), "q", candidates("a", "b"), 2)
	if applied {
		t.Fatalf("expected no rerank")
	}
	assertOrder(t, out, "a", "b")
}

func TestLexicalRerankProviderPrefersOverlap(t *testing.T) {
	p := NewLexicalRerankProvider()
	scores, err := p.Score(context.Background(), "oppsigelse arbeidsgiver", []string{
		"Ferie\nbestemmelser om ferie",
		"Arbeidstid\nalminnelig arbeidstid",
		"Oppsigelse\nvern mot oppsigelse fra arbeidsgiver",
		"Permisjon\nrett til permisjon",
		"Lønn\nutbetaling av lønn",
	}, 5)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("expected five scores, got %d", len(scores))
	}
	best := 0
	for i, s := range scores {
		if s == nil {
			t.Fatalf("score %d missing", i)
		}
		if *s > *scores[best] {
			best = i
		}
	}
	if best != 2 {
		t.Fatalf("expected overlapping passage to score highest, got index %d", best)
	}
}

func TestLexicalRerankProviderRejectsEmptyQuery(t *testing.T) {
	_, err := NewLexicalRerankProvider().Score(context.Background(), "  ", []string{"x"}, 1)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
