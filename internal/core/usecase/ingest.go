package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

var supportedArchiveSuffixes = []string{".tar.bz2", ".tbz2", ".tar.gz", ".tgz", ".tar", ".zip"}

type IngestArchiveUseCase struct {
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestArchiveUseCase(storage ports.ObjectStorage, queue ports.MessageQueue) *IngestArchiveUseCase {
	return &IngestArchiveUseCase{
		storage: storage,
		queue:   queue,
	}
}

// Upload stores the archive under its sanitized filename and publishes an upload event.
// Re-uploading a filename replaces the stored archive; the worker then replaces its index.
func (uc *IngestArchiveUseCase) Upload(ctx context.Context, filename string, body io.Reader) (*domain.Archive, error) {
	key := sanitizeFilename(filename)
	if !IsSupportedArchive(key) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload archive", fmt.Errorf("unsupported archive type: %q", filename))
	}

	if err := uc.storage.Save(ctx, key, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	if err := uc.queue.PublishArchiveUploaded(ctx, key); err != nil {
		return nil, fmt.Errorf("publish archive uploaded event: %w", err)
	}

	return &domain.Archive{
		Filename:  key,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func IsSupportedArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range supportedArchiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "archive.bin"
	}
	return base
}
