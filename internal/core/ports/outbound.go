package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

// DocumentStore persists archives, documents and chunks and serves lexical queries.
type DocumentStore interface {
	UpsertArchive(ctx context.Context, filename string, documentCount int) error
	ReplaceDocuments(ctx context.Context, filename string, docs []domain.IndexedDocument) error
	LexicalSearch(ctx context.Context, tsQuery string, filter domain.SearchFilter, limit, offset int) ([]domain.SearchHit, int, error)
	GetByKey(ctx context.Context, archiveFilename, member string) (*domain.Document, error)
	ListArchives(ctx context.Context) ([]domain.Archive, error)
}

// VectorStore indexes chunk embeddings and performs nearest-neighbor search.
type VectorStore interface {
	ReplaceArchive(ctx context.Context, archiveFilename string, chunks []domain.Chunk) error
	Search(ctx context.Context, queryVector []float32, filter domain.SearchFilter, limit int) ([]domain.SearchHit, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits document text into overlapping chunks.
type Chunker interface {
	Chunk(text string) []domain.Chunk
}

// Reasoner is the external tool-calling reasoning model.
type Reasoner interface {
	Reason(ctx context.Context, req domain.ReasonerRequest) (domain.ReasonerResponse, error)
}

// AnswerGenerator writes a cited answer from a fixed evidence set.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, evidence []domain.Evidence) (string, error)
}

// WebSearcher queries the third-party web search provider.
type WebSearcher interface {
	Search(ctx context.Context, query domain.WebSearchQuery) ([]domain.WebResult, error)
}

// RerankProvider scores candidate texts against a query. The returned slice has the
// same length as texts; a nil entry means the provider did not score that item.
type RerankProvider interface {
	Score(ctx context.Context, query string, texts []string, topN int) ([]*float64, error)
}

// ObjectStorage stores uploaded archives.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context) ([]string, error)
}

// MessageQueue publishes/consumes archive upload events.
type MessageQueue interface {
	PublishArchiveUploaded(ctx context.Context, archiveFilename string) error
	SubscribeArchiveUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// ArchiveReader lists the members of an archive file.
type ArchiveReader interface {
	ReadMembers(ctx context.Context, archiveFilename string, r io.Reader) ([]domain.ArchiveMember, error)
}

// DocumentExtractor turns a raw archive member into text and basic metadata.
type DocumentExtractor interface {
	Extract(ctx context.Context, member domain.ArchiveMember) (domain.ExtractedDocument, error)
}

// SearchObserver receives search telemetry. Implementations must be safe for concurrent use.
type SearchObserver interface {
	ObserveSearchBranch(branch string, hits int, degraded bool, duration time.Duration)
	ObserveRerank(applied bool)
}

// AgentObserver receives agent loop telemetry.
type AgentObserver interface {
	ObserveAgentRun(finalState domain.AgentState, mode string, iterations int, duration time.Duration)
	ObserveToolCall(tool, status string)
}
