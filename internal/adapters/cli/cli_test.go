package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

type fakeStorage struct {
	saved map[string][]byte
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = body
	return nil
}

func (f *fakeStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not used")
}

func (f *fakeStorage) List(context.Context) ([]string, error) { return nil, nil }

type fakeProcessor struct {
	processed []string
	stored    int
}

func (f *fakeProcessor) ProcessArchive(_ context.Context, name string) (*domain.Archive, error) {
	f.processed = append(f.processed, name)
	return &domain.Archive{Filename: name, DocumentCount: 42}, nil
}

func (f *fakeProcessor) ProcessStored(context.Context) (int, error) { return f.stored, nil }

type fakeSearch struct {
	last domain.SearchRequest
}

func (f *fakeSearch) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	f.last = req
	return &domain.SearchResult{
		Hits: []domain.SearchHit{{
			ArchiveFilename: "gjeldende-lover.tar.bz2",
			Member:          "nl/nl-2005-06-17-62.xml",
			Title:           "Arbeidsmiljøloven",
			SectionNumber:   "§ 15-3",
			SectionTitle:    "Oppsigelsesfrister",
			Content:         "Dersom ikke annet er skriftlig avtalt, gjelder en gjensidig oppsigelsesfrist på én måned.",
			Score:           0.0325,
		}},
		TotalHits:  1,
		TotalPages: 1,
		Page:       1,
		PageSize:   10,
	}, nil
}

type fakeDocuments struct{}

func (fakeDocuments) GetByKey(_ context.Context, archive, member string) (*domain.Document, error) {
	return &domain.Document{ArchiveFilename: archive, Member: member, Title: "Husleieloven", Content: "Lovens formål"}, nil
}

func (fakeDocuments) ListArchives(context.Context) ([]domain.Archive, error) {
	return []domain.Archive{{Filename: "gjeldende-lover.tar.bz2", DocumentCount: 3, UpdatedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)}}, nil
}

type fakeAssistant struct {
	last domain.AgentRunRequest
}

func (f *fakeAssistant) Run(_ context.Context, req domain.AgentRunRequest) (*domain.AgentRunResult, error) {
	f.last = req
	return &domain.AgentRunResult{
		Answer:     "Oppsigelsesfristen er én måned [1].",
		Mode:       "tool_loop",
		FinalState: domain.AgentStateDone,
		Iterations: 2,
		Evidence:   []domain.Evidence{{ID: "1", Title: "Arbeidsmiljøloven § 15-3"}},
	}, nil
}

type harness struct {
	storage   *fakeStorage
	processor *fakeProcessor
	search    *fakeSearch
	assistant *fakeAssistant
	opened    int
}

func newHarness() *harness {
	return &harness{
		storage:   &fakeStorage{},
		processor: &fakeProcessor{stored: 3},
		search:    &fakeSearch{},
		assistant: &fakeAssistant{},
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	open := func(context.Context) (Services, error) {
		h.opened++
		return Services{
			Storage:   h.storage,
			Processor: h.processor,
			Reindexer: h.processor,
			Search:    h.search,
			Documents: fakeDocuments{},
			Assistant: h.assistant,
		}, nil
	}
	root := NewRootCommand(open, "test")
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSearchPassesPagingAndFilters(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "search", "oppsigelse", "--page", "2", "-n", "5", "--law-type", "Forskrift", "--year", "2005")
	require.NoError(t, err)

	assert.Equal(t, "oppsigelse", h.search.last.Query)
	assert.Equal(t, 2, h.search.last.Page)
	assert.Equal(t, 5, h.search.last.PageSize)
	assert.Equal(t, domain.LawTypeForskrift, h.search.last.Filter.LawType)
	assert.Equal(t, 2005, h.search.last.Filter.Year)
	assert.Contains(t, out, "Arbeidsmiljøloven")
	assert.Contains(t, out, "§ 15-3 Oppsigelsesfrister")
}

func TestSearchRejectsUnknownLawTypeBeforeOpening(t *testing.T) {
	h := newHarness()
	_, err := h.run(t, "search", "q", "--law-type", "dom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown law type")
	assert.Zero(t, h.opened)
}

func TestSearchRequiresQuery(t *testing.T) {
	_, err := newHarness().run(t, "search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestIngestStoresAndProcessesArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gjeldende-lover.tar.bz2")
	require.NoError(t, os.WriteFile(path, []byte("archive bytes"), 0o644))

	h := newHarness()
	out, err := h.run(t, "ingest", path)
	require.NoError(t, err)

	assert.Equal(t, []byte("archive bytes"), h.storage.saved["gjeldende-lover.tar.bz2"])
	assert.Equal(t, []string{"gjeldende-lover.tar.bz2"}, h.processor.processed)
	assert.Contains(t, out, "42 documents")
}

func TestIngestRejectsOtherExtensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lover.zip")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	h := newHarness()
	_, err := h.run(t, "ingest", path)
	require.Error(t, err)
	assert.Empty(t, h.storage.saved)
}

func TestReindexReportsProcessedCount(t *testing.T) {
	out, err := newHarness().run(t, "reindex")
	require.NoError(t, err)
	assert.Contains(t, out, "Reindexed 3 archives")
}

func TestArchivesJSON(t *testing.T) {
	out, err := newHarness().run(t, "archives", "--json")
	require.NoError(t, err)

	var archives []domain.Archive
	require.NoError(t, json.Unmarshal([]byte(out), &archives))
	require.Len(t, archives, 1)
	assert.Equal(t, 3, archives[0].DocumentCount)
}

func TestAskPrintsAnswerAndSources(t *testing.T) {
	h := newHarness()
	out, err := h.run(t, "ask", "Hva er oppsigelsesfristen?", "--ministry", "Arbeids")
	require.NoError(t, err)

	assert.Equal(t, "Arbeids", h.assistant.last.Filter.Ministry)
	assert.Contains(t, out, "én måned [1]")
	assert.Contains(t, out, "[1] Arbeidsmiljøloven § 15-3")
	assert.Contains(t, out, "iterations=2")
}

func TestOpenerFailureIsReported(t *testing.T) {
	root := NewRootCommand(func(context.Context) (Services, error) {
		return Services{}, errors.New("postgres unreachable")
	}, "test")
	root.SetOut(io.Discard)
	root.SetArgs([]string{"archives"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres unreachable")
}

func TestShortenCollapsesWhitespaceAndCutsRunes(t *testing.T) {
	assert.Equal(t, "a b", shorten("a \n\t b", 10))
	assert.Equal(t, "æøå...", shorten("æøåæøå", 3))
}
