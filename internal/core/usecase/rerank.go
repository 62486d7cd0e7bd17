package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

const rerankTextMaxRunes = 2000

type Reranker struct {
	provider ports.RerankProvider
	timeout  time.Duration
}

func NewReranker(provider ports.RerankProvider, timeout time.Duration) *Reranker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reranker{provider: provider, timeout: timeout}
}

// Rerank reorders the first topN candidates by provider score. It never fails: on provider
// error or a malformed response the input order is returned and the second result is false.
// Candidates the provider did not score are placed after scored ones in their fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.SearchCandidate, topN int) ([]domain.SearchCandidate, bool) {
	if r == nil || r.provider == nil || len(candidates) == 0 || strings.TrimSpace(query) == "" {
		return candidates, false
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	head := candidates[:topN]
	texts := make([]string, len(head))
	for i, c := range head {
		texts[i] = rerankText(c.Hit)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	scores, err := r.provider.Score(scoreCtx, query, texts, topN)
	if err != nil {
		slog.Warn("rerank_fallback", "reason", "provider_error", "candidates", len(head), "error", err)
		return candidates, false
	}
	if len(scores) != len(head) {
		slog.Warn("rerank_fallback", "reason", "malformed_response", "candidates", len(head), "scores", len(scores))
		return candidates, false
	}

	type scored struct {
		candidate domain.SearchCandidate
		score     float64
	}
	ranked := make([]scored, 0, len(head))
	unscored := make([]domain.SearchCandidate, 0)
	for i, c := range head {
		if scores[i] == nil {
			unscored = append(unscored, c)
			continue
		}
		ranked = append(ranked, scored{candidate: c, score: *scores[i]})
	}
	if len(ranked) == 0 {
		slog.Warn("rerank_fallback", "reason", "no_scores", "candidates", len(head))
		return candidates, false
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]domain.SearchCandidate, 0, len(candidates))
	for _, s := range ranked {
		c := s.candidate
		c.Hit.Score = s.score
		out = append(out, c)
	}
	out = append(out, unscored...)
	out = append(out, candidates[topN:]...)
	return out, true
}

func rerankText(hit domain.SearchHit) string {
	parts := make([]string, 0, 3)
	if hit.Title != "" {
		parts = append(parts, hit.Title)
	}
	if hit.SectionNumber != "" || hit.SectionTitle != "" {
		parts = append(parts, strings.TrimSpace(hit.SectionNumber+" "+hit.SectionTitle))
	}
	parts = append(parts, hit.Content)
	return truncateRunes(strings.Join(parts, "\n"), rerankTextMaxRunes)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// LexicalRerankProvider scores texts offline by token overlap with the query,
// blended with a prior from the input position.
type LexicalRerankProvider struct{}

func NewLexicalRerankProvider() *LexicalRerankProvider {
	return &LexicalRerankProvider{}
}

func (p *LexicalRerankProvider) Score(_ context.Context, query string, texts []string, _ int) ([]*float64, error) {
	queryTokens := toTokenSet(query)
	if len(queryTokens) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lexical rerank", fmt.Errorf("query has no tokens"))
	}

	out := make([]*float64, len(texts))
	for i, text := range texts {
		prior := 1.0
		if len(texts) > 1 {
			prior = 1 - float64(i)/float64(len(texts)-1)
		}
		overlap := tokenOverlap(queryTokens, toTokenSet(text))
		titleBoost := firstLineTokenHit(queryTokens, text)
		score := 0.60*prior + 0.30*overlap + 0.10*titleBoost
		out[i] = &score
	}
	return out, nil
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func firstLineTokenHit(query map[string]struct{}, text string) float64 {
	line, _, _ := strings.Cut(text, "\n")
	if len(query) == 0 || line == "" {
		return 0
	}
	line = strings.ToLower(line)
	for token := range query {
		if len([]rune(token)) >= minQueryTokenRunes && strings.Contains(line, token) {
			return 1
		}
	}
	return 0
}
