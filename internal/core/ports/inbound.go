package ports

import (
	"context"
	"io"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

// ArchiveUploader is the inbound contract for archive upload orchestration.
type ArchiveUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*domain.Archive, error)
}

// ArchiveProcessor replaces the indexed content of one archive.
type ArchiveProcessor interface {
	ProcessArchive(ctx context.Context, archiveFilename string) (*domain.Archive, error)
}

// SearchService is the hybrid search engine.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error)
}

// DocumentReader is the read model for single documents and archives.
type DocumentReader interface {
	GetByKey(ctx context.Context, archiveFilename, member string) (*domain.Document, error)
	ListArchives(ctx context.Context) ([]domain.Archive, error)
}

// QueryService answers a question directly from hybrid search results.
type QueryService interface {
	Answer(ctx context.Context, question string, limit int, filter domain.SearchFilter) (*domain.Answer, error)
}

// AssistantService runs the agent orchestration loop.
type AssistantService interface {
	Run(ctx context.Context, req domain.AgentRunRequest) (*domain.AgentRunResult, error)
}
