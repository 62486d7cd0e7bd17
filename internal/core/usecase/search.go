package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

const (
	searchBranchLexical = "lexical"
	searchBranchVector  = "vector"
)

type SearchOptions struct {
	CandidateLimit  int
	RRFK            int
	BranchTimeout   time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = 50
	}
	if o.RRFK <= 0 {
		o.RRFK = defaultRRFK
	}
	if o.BranchTimeout <= 0 {
		o.BranchTimeout = 20 * time.Second
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 10
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 50
	}
	if o.DefaultPageSize > o.MaxPageSize {
		o.DefaultPageSize = o.MaxPageSize
	}
	return o
}

type HybridSearchUseCase struct {
	store    ports.DocumentStore
	vectors  ports.VectorStore
	embedder ports.Embedder
	expander *QueryExpander
	reranker *Reranker
	observer ports.SearchObserver
	opts     SearchOptions
}

func NewHybridSearchUseCase(
	store ports.DocumentStore,
	vectors ports.VectorStore,
	embedder ports.Embedder,
	expander *QueryExpander,
	reranker *Reranker,
	observer ports.SearchObserver,
	opts SearchOptions,
) *HybridSearchUseCase {
	return &HybridSearchUseCase{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		expander: expander,
		reranker: reranker,
		observer: observer,
		opts:     opts.withDefaults(),
	}
}

// Search runs the lexical and vector branches concurrently, fuses them with RRF and pages the
// result. A failed or timed-out branch contributes no hits. Only page 1 is re-ranked.
func (uc *HybridSearchUseCase) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	page, pageSize := uc.normalizePage(req.Page, req.PageSize)
	result := &domain.SearchResult{
		Hits:          []domain.SearchHit{},
		Page:          page,
		PageSize:      pageSize,
		SearchedScope: domain.SearchScopeLegalArchive,
	}

	if req.Filter.LawType != "" {
		lawType, ok := domain.ParseLawType(string(req.Filter.LawType))
		if !ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "hybrid search", fmt.Errorf("unknown law type %q", req.Filter.LawType))
		}
		req.Filter.LawType = lawType
	}
	req.Filter.Ministry = strings.TrimSpace(req.Filter.Ministry)

	expanded := uc.expander.Expand(req.Query)
	if len(expanded.Tokens) == 0 {
		return result, nil
	}

	lexical, vector := uc.retrieve(ctx, expanded, req.Filter)
	fused := trimCandidates(fuseCandidatesRRF(lexical, vector, uc.opts.RRFK), uc.opts.CandidateLimit)

	if page == 1 && len(fused) > 0 {
		var applied bool
		fused, applied = uc.reranker.Rerank(ctx, req.Query, fused, pageSize)
		result.Reranked = applied
		if uc.observer != nil && uc.reranker != nil {
			uc.observer.ObserveRerank(applied)
		}
	}

	result.TotalHits = len(fused)
	result.TotalPages = (len(fused) + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start >= len(fused) {
		return result, nil
	}
	end := start + pageSize
	if end > len(fused) {
		end = len(fused)
	}
	for _, c := range fused[start:end] {
		result.Hits = append(result.Hits, c.Hit)
	}
	return result, nil
}

func (uc *HybridSearchUseCase) normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = uc.opts.DefaultPageSize
	}
	if pageSize > uc.opts.MaxPageSize {
		pageSize = uc.opts.MaxPageSize
	}
	return page, pageSize
}

func (uc *HybridSearchUseCase) retrieve(ctx context.Context, expanded ExpandedQuery, filter domain.SearchFilter) ([]domain.SearchHit, []domain.SearchHit) {
	var (
		lexical []domain.SearchHit
		vector  []domain.SearchHit
		g       errgroup.Group
	)

	g.Go(func() error {
		lexical = uc.runBranch(ctx, searchBranchLexical, func(branchCtx context.Context) ([]domain.SearchHit, error) {
			hits, _, err := uc.store.LexicalSearch(branchCtx, expanded.TSQuery, filter, uc.opts.CandidateLimit, 0)
			return hits, err
		})
		return nil
	})
	g.Go(func() error {
		vector = uc.runBranch(ctx, searchBranchVector, func(branchCtx context.Context) ([]domain.SearchHit, error) {
			queryVector, err := uc.embedder.EmbedQuery(branchCtx, expanded.VectorText)
			if err != nil {
				return nil, fmt.Errorf("embed query: %w", err)
			}
			return uc.vectors.Search(branchCtx, queryVector, filter, uc.opts.CandidateLimit)
		})
		return nil
	})
	_ = g.Wait()

	return lexical, vector
}

func (uc *HybridSearchUseCase) runBranch(
	ctx context.Context,
	branch string,
	fn func(context.Context) ([]domain.SearchHit, error),
) []domain.SearchHit {
	branchCtx, cancel := context.WithTimeout(ctx, uc.opts.BranchTimeout)
	defer cancel()

	started := time.Now()
	hits, err := fn(branchCtx)
	elapsed := time.Since(started)
	if err != nil {
		slog.Warn("search_branch_failed", "branch", branch, "duration_ms", elapsed.Milliseconds(), "error", err)
		if uc.observer != nil {
			uc.observer.ObserveSearchBranch(branch, 0, true, elapsed)
		}
		return nil
	}
	if uc.observer != nil {
		uc.observer.ObserveSearchBranch(branch, len(hits), false, elapsed)
	}
	return hits
}
