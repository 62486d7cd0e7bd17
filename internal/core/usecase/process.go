package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

const embedTruncationMarker = "\n[…]\n"

type ProcessOptions struct {
	EmbedMaxChars  int
	EmbedBatchSize int
}

type ProcessArchiveUseCase struct {
	storage   ports.ObjectStorage
	reader    ports.ArchiveReader
	extractor ports.DocumentExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.DocumentStore
	vectorDB  ports.VectorStore
	opts      ProcessOptions
}

func NewProcessArchiveUseCase(
	storage ports.ObjectStorage,
	reader ports.ArchiveReader,
	extractor ports.DocumentExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.DocumentStore,
	vectorDB ports.VectorStore,
	opts ProcessOptions,
) *ProcessArchiveUseCase {
	if opts.EmbedMaxChars <= 0 {
		opts.EmbedMaxChars = 8000
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 16
	}
	return &ProcessArchiveUseCase{
		storage:   storage,
		reader:    reader,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		vectorDB:  vectorDB,
		opts:      opts,
	}
}

// ProcessArchive replaces everything indexed for the archive with its current contents.
// Postgres is replaced in one transaction before Qdrant; both writes are awaited.
func (uc *ProcessArchiveUseCase) ProcessArchive(ctx context.Context, archiveFilename string) (*domain.Archive, error) {
	members, err := uc.readMembers(ctx, archiveFilename)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.IndexedDocument, 0, len(members))
	for _, member := range members {
		doc, ok, err := uc.buildDocument(ctx, archiveFilename, member)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process archive", fmt.Errorf("archive %s has no indexable documents", archiveFilename))
	}

	if err := uc.embedDocuments(ctx, docs); err != nil {
		return nil, err
	}

	if err := uc.store.ReplaceDocuments(ctx, archiveFilename, docs); err != nil {
		return nil, fmt.Errorf("replace documents: %w", err)
	}
	if err := uc.store.UpsertArchive(ctx, archiveFilename, len(docs)); err != nil {
		return nil, fmt.Errorf("upsert archive: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(docs))
	for _, doc := range docs {
		chunks = append(chunks, doc.Chunks...)
	}
	if err := uc.vectorDB.ReplaceArchive(ctx, archiveFilename, chunks); err != nil {
		return nil, fmt.Errorf("replace archive vectors: %w", err)
	}

	return &domain.Archive{
		Filename:      archiveFilename,
		DocumentCount: len(docs),
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

// ProcessStored re-indexes every archive in object storage and returns the first error after
// attempting all of them.
func (uc *ProcessArchiveUseCase) ProcessStored(ctx context.Context) (int, error) {
	keys, err := uc.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored archives: %w", err)
	}

	processed := 0
	var errs []error
	for _, key := range keys {
		if !IsSupportedArchive(key) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := uc.ProcessArchive(ctx, key); err != nil {
			slog.Error("archive_reindex_failed", "archive", key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		processed++
	}
	return processed, errors.Join(errs...)
}

func (uc *ProcessArchiveUseCase) readMembers(ctx context.Context, archiveFilename string) ([]domain.ArchiveMember, error) {
	rc, err := uc.storage.Open(ctx, archiveFilename)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer rc.Close()

	members, err := uc.reader.ReadMembers(ctx, archiveFilename, rc)
	if err != nil {
		return nil, fmt.Errorf("read archive members: %w", err)
	}
	return members, nil
}

func (uc *ProcessArchiveUseCase) buildDocument(ctx context.Context, archiveFilename string, member domain.ArchiveMember) (domain.IndexedDocument, bool, error) {
	extracted, err := uc.extractor.Extract(ctx, member)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			slog.Warn("archive_member_skipped", "archive", archiveFilename, "member", member.Name, "error", err)
			return domain.IndexedDocument{}, false, nil
		}
		return domain.IndexedDocument{}, false, fmt.Errorf("extract member %s: %w", member.Name, err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		slog.Warn("archive_member_skipped", "archive", archiveFilename, "member", member.Name, "reason", "empty_text")
		return domain.IndexedDocument{}, false, nil
	}

	lawType, year, ministry := deriveDocumentMetadata(member.Name, extracted)
	doc := domain.Document{
		ArchiveFilename: archiveFilename,
		Member:          member.Name,
		Title:           strings.TrimSpace(extracted.Title),
		PublishedAt:     extracted.PublishedAt,
		Content:         extracted.Text,
		LawType:         lawType,
		Year:            year,
		Ministry:        ministry,
	}

	chunks := uc.chunker.Chunk(doc.Content)
	for i := range chunks {
		chunks[i].ArchiveFilename = archiveFilename
		chunks[i].Member = member.Name
		chunks[i].Title = doc.Title
		chunks[i].LawType = lawType
		chunks[i].Year = year
		chunks[i].Ministry = ministry
	}
	return domain.IndexedDocument{Document: doc, Chunks: chunks}, true, nil
}

func (uc *ProcessArchiveUseCase) embedDocuments(ctx context.Context, docs []domain.IndexedDocument) error {
	refs := make([]*domain.Chunk, 0, len(docs))
	for i := range docs {
		for j := range docs[i].Chunks {
			refs = append(refs, &docs[i].Chunks[j])
		}
	}

	for start := 0; start < len(refs); start += uc.opts.EmbedBatchSize {
		end := start + uc.opts.EmbedBatchSize
		if end > len(refs) {
			end = len(refs)
		}
		batch := refs[start:end]
		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = truncateForEmbedding(embeddingText(*chunk), uc.opts.EmbedMaxChars)
		}

		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(batch)),
			)
		}
		for i, chunk := range batch {
			chunk.Embedding = vectors[i]
		}
	}
	return nil
}

func embeddingText(chunk domain.Chunk) string {
	if chunk.SectionTitle == "" {
		return chunk.Content
	}
	return chunk.SectionTitle + "\n" + chunk.Content
}

// truncateForEmbedding keeps about 90% of the budget from the head and 10% from the tail,
// joined by a marker. Lengths are in runes.
func truncateForEmbedding(text string, maxChars int) string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}
	marker := []rune(embedTruncationMarker)
	budget := maxChars - len(marker)
	if budget <= 0 {
		return string(runes[:maxChars])
	}
	head := budget * 9 / 10
	tail := budget - head
	return string(runes[:head]) + embedTruncationMarker + string(runes[len(runes)-tail:])
}
