package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const (
	defaultMaxMemberBytes  = 32 << 20
	defaultMaxArchiveBytes = 1 << 30
)

type Options struct {
	MaxMemberBytes  int64
	MaxArchiveBytes int64
}

// Reader unpacks tar (plain, gzip, bzip2) and zip archives into memory.
type Reader struct {
	maxMemberBytes  int64
	maxArchiveBytes int64
}

func NewReader(opts Options) *Reader {
	r := &Reader{maxMemberBytes: opts.MaxMemberBytes, maxArchiveBytes: opts.MaxArchiveBytes}
	if r.maxMemberBytes <= 0 {
		r.maxMemberBytes = defaultMaxMemberBytes
	}
	if r.maxArchiveBytes <= 0 {
		r.maxArchiveBytes = defaultMaxArchiveBytes
	}
	return r
}

func (r *Reader) ReadMembers(ctx context.Context, archiveFilename string, src io.Reader) ([]domain.ArchiveMember, error) {
	name := strings.ToLower(archiveFilename)
	switch {
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		return r.readTar(ctx, bzip2.NewReader(src))
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "open gzip archive", err)
		}
		defer gz.Close()
		return r.readTar(ctx, gz)
	case strings.HasSuffix(name, ".tar"):
		return r.readTar(ctx, src)
	case strings.HasSuffix(name, ".zip"):
		return r.readZip(ctx, src)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "read archive", fmt.Errorf("unsupported archive format: %s", archiveFilename))
	}
}

func (r *Reader) readTar(ctx context.Context, src io.Reader) ([]domain.ArchiveMember, error) {
	tr := tar.NewReader(src)
	var (
		members []domain.ArchiveMember
		total   int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return members, nil
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read tar header", err)
		}
		if header.Typeflag != tar.TypeReg || skipMember(header.Name) {
			continue
		}
		data, err := r.readMember(header.Name, tr)
		if err != nil {
			return nil, err
		}
		total += int64(len(data))
		if total > r.maxArchiveBytes {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read tar archive", fmt.Errorf("archive exceeds %d bytes", r.maxArchiveBytes))
		}
		members = append(members, domain.ArchiveMember{Name: header.Name, Data: data})
	}
}

func (r *Reader) readZip(ctx context.Context, src io.Reader) ([]domain.ArchiveMember, error) {
	raw, err := io.ReadAll(io.LimitReader(src, r.maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("buffer zip archive: %w", err)
	}
	if int64(len(raw)) > r.maxArchiveBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read zip archive", fmt.Errorf("archive exceeds %d bytes", r.maxArchiveBytes))
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open zip archive", err)
	}

	members := make([]domain.ArchiveMember, 0, len(zr.File))
	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.FileInfo().IsDir() || skipMember(file.Name) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "open zip member", err)
		}
		data, err := r.readMember(file.Name, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		members = append(members, domain.ArchiveMember{Name: file.Name, Data: data})
	}
	return members, nil
}

func (r *Reader) readMember(name string, src io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(src, r.maxMemberBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read archive member "+name, err)
	}
	if int64(len(data)) > r.maxMemberBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read archive member "+name, fmt.Errorf("member exceeds %d bytes", r.maxMemberBytes))
	}
	return data, nil
}

// skipMember drops OS metadata entries such as __MACOSX and dotfiles.
func skipMember(name string) bool {
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if strings.HasPrefix(clean, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(clean), ".")
}
