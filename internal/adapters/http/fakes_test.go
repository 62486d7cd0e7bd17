package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/config"
	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

type fakeArchives struct {
	err      error
	filename string
	body     []byte
}

func (f *fakeArchives) Upload(_ context.Context, filename string, body io.Reader) (*domain.Archive, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.filename = filename
	f.body = raw
	return &domain.Archive{Filename: filename, UpdatedAt: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)}, nil
}

type fakeDocuments struct {
	err      error
	archives []domain.Archive
}

func (f fakeDocuments) GetByKey(_ context.Context, archive, member string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ArchiveFilename: archive, Member: member, Title: "Lov om arbeidsmiljø", Content: "§ 1"}, nil
}

func (f fakeDocuments) ListArchives(context.Context) ([]domain.Archive, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.archives, nil
}

type fakeSearch struct {
	err      error
	captured domain.SearchRequest
}

func (f *fakeSearch) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	f.captured = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SearchResult{
		Hits:          []domain.SearchHit{{ArchiveFilename: "lover.tar.bz2", Member: "aml.xml", Score: 0.03}},
		TotalHits:     1,
		TotalPages:    1,
		Page:          1,
		PageSize:      10,
		SearchedScope: domain.SearchScopeLegalArchive,
	}, nil
}

type fakeQuery struct {
	err   error
	limit int
}

func (f *fakeQuery) Answer(_ context.Context, _ string, limit int, _ domain.SearchFilter) (*domain.Answer, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{Text: "Se arbeidsmiljøloven § 15-7 [1]."}, nil
}

type fakeAssistant struct {
	err      error
	captured domain.AgentRunRequest
}

func (f *fakeAssistant) Run(_ context.Context, req domain.AgentRunRequest) (*domain.AgentRunResult, error) {
	f.captured = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AgentRunResult{
		Answer:     "Oppsigelse krever saklig grunn.",
		Mode:       domain.AgentModeAgent,
		FinalState: domain.AgentStateDone,
		Iterations: 2,
	}, nil
}

func newTestServices() Services {
	return Services{
		Archives:  &fakeArchives{},
		Documents: fakeDocuments{archives: []domain.Archive{{Filename: "lover.tar.bz2", DocumentCount: 2}}},
		Search:    &fakeSearch{},
		Query:     &fakeQuery{},
		Assistant: &fakeAssistant{},
	}
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, newTestServices()).Handler()
}
