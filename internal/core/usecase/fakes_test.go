package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

type storageFake struct {
	objects map[string][]byte
	err     error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) List(context.Context) ([]string, error) {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishArchiveUploaded(_ context.Context, archiveFilename string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, archiveFilename)
	return nil
}

func (f *queueFake) SubscribeArchiveUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type readerFake struct {
	members map[string][]domain.ArchiveMember
	err     error
}

func (f *readerFake) ReadMembers(_ context.Context, archiveFilename string, _ io.Reader) ([]domain.ArchiveMember, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.members[archiveFilename], nil
}

type extractorFake struct {
	docs map[string]domain.ExtractedDocument
	errs map[string]error
}

func (f *extractorFake) Extract(_ context.Context, member domain.ArchiveMember) (domain.ExtractedDocument, error) {
	if err := f.errs[member.Name]; err != nil {
		return domain.ExtractedDocument{}, err
	}
	if doc, ok := f.docs[member.Name]; ok {
		return doc, nil
	}
	return domain.ExtractedDocument{Text: string(member.Data)}, nil
}

// chunkerFake emits one chunk per 10 runes.
type chunkerFake struct{}

func (chunkerFake) Chunk(text string) []domain.Chunk {
	runes := []rune(text)
	var out []domain.Chunk
	for start := 0; start < len(runes); start += 10 {
		end := min(start+10, len(runes))
		out = append(out, domain.Chunk{Index: len(out), StartChar: start, EndChar: end, Content: string(runes[start:end])})
	}
	return out
}

type embedderFake struct {
	mu         sync.Mutex
	texts      []string
	queries    []string
	err        error
	queryErr   error
	dropVector bool
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, texts...)
	out := make([][]float32, 0, len(texts))
	for i := range texts {
		out = append(out, []float32{float32(i), 1})
	}
	if f.dropVector && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []float32{0.1, 0.2}, nil
}

type documentStoreFake struct {
	mu         sync.Mutex
	hits       []domain.SearchHit
	err        error
	block      bool
	tsQueries  []string
	replaced   map[string][]domain.IndexedDocument
	archives   map[string]int
	replaceErr error
	calls      []string
}

func (f *documentStoreFake) UpsertArchive(_ context.Context, filename string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.archives == nil {
		f.archives = make(map[string]int)
	}
	f.archives[filename] = count
	f.calls = append(f.calls, "upsert_archive")
	return nil
}

func (f *documentStoreFake) ReplaceDocuments(_ context.Context, filename string, docs []domain.IndexedDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if f.replaced == nil {
		f.replaced = make(map[string][]domain.IndexedDocument)
	}
	f.replaced[filename] = docs
	f.calls = append(f.calls, "replace_documents")
	return nil
}

func (f *documentStoreFake) LexicalSearch(ctx context.Context, tsQuery string, _ domain.SearchFilter, limit, _ int) ([]domain.SearchHit, int, error) {
	f.mu.Lock()
	f.tsQueries = append(f.tsQueries, tsQuery)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	if f.err != nil {
		return nil, 0, f.err
	}
	hits := f.hits
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, len(f.hits), nil
}

func (f *documentStoreFake) GetByKey(context.Context, string, string) (*domain.Document, error) {
	return nil, domain.ErrDocumentNotFound
}

func (f *documentStoreFake) ListArchives(context.Context) ([]domain.Archive, error) {
	return nil, nil
}

type vectorStoreFake struct {
	mu       sync.Mutex
	hits     []domain.SearchHit
	err      error
	replaced map[string][]domain.Chunk
	searches int
}

func (f *vectorStoreFake) ReplaceArchive(_ context.Context, archiveFilename string, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.replaced == nil {
		f.replaced = make(map[string][]domain.Chunk)
	}
	f.replaced[archiveFilename] = chunks
	return nil
}

func (f *vectorStoreFake) Search(_ context.Context, _ []float32, _ domain.SearchFilter, limit int) ([]domain.SearchHit, error) {
	f.mu.Lock()
	f.searches++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	hits := f.hits
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

type rerankProviderFake struct {
	scores []*float64
	err    error
	calls  int
}

func (f *rerankProviderFake) Score(context.Context, string, []string, int) ([]*float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type generatorFake struct {
	answer   string
	err      error
	evidence []domain.Evidence
}

func (f *generatorFake) GenerateAnswer(_ context.Context, _ string, evidence []domain.Evidence) (string, error) {
	f.evidence = evidence
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// searchFake returns hits keyed by query; unknown queries return no hits.
// With paginate set it slices hits by page, otherwise every page carries all hits.
type searchFake struct {
	mu       sync.Mutex
	byQuery  map[string][]domain.SearchHit
	delays   map[string]time.Duration
	paginate bool
	err      error
	requests []domain.SearchRequest
}

func (f *searchFake) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.err
	hits := f.byQuery[req.Query]
	delay := f.delays[req.Query]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	total, pages := len(hits), 1
	if f.paginate && req.PageSize > 0 {
		pages = (total + req.PageSize - 1) / req.PageSize
		start := min(max(req.Page-1, 0)*req.PageSize, total)
		hits = hits[start:min(start+req.PageSize, total)]
	}
	return &domain.SearchResult{
		Hits:          hits,
		TotalHits:     total,
		TotalPages:    pages,
		Page:          req.Page,
		PageSize:      req.PageSize,
		SearchedScope: domain.SearchScopeLegalArchive,
	}, nil
}

type webSearchFake struct {
	mu      sync.Mutex
	results map[string][]domain.WebResult
	err     error
	queries []domain.WebSearchQuery
}

func (f *webSearchFake) Search(_ context.Context, q domain.WebSearchQuery) ([]domain.WebResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[q.Query], nil
}

// reasonerFake replays scripted responses; after the script it repeats the last entry.
type reasonerFake struct {
	mu        sync.Mutex
	responses []domain.ReasonerResponse
	err       error
	requests  []domain.ReasonerRequest
}

func (f *reasonerFake) Reason(_ context.Context, req domain.ReasonerRequest) (domain.ReasonerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.ReasonerResponse{}, f.err
	}
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func legalHit(archive, member string, chunk int, content string) domain.SearchHit {
	return domain.SearchHit{
		ArchiveFilename: archive,
		Member:          member,
		ChunkIndex:      chunk,
		Title:           member,
		Content:         content,
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
