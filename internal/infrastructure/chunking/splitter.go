package chunking

import (
	"fmt"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const (
	DefaultChunkSize = 12800
	metadataWindow   = 2000
)

type Options struct {
	ChunkSize          int
	OverlapSize        int
	PreserveParagraphs bool
	ExtractMetadata    bool
}

// DefaultOptions returns the chunking defaults: 12800 characters with a 20% overlap.
func DefaultOptions() Options {
	return Options{
		ChunkSize:          DefaultChunkSize,
		OverlapSize:        DefaultChunkSize / 5,
		PreserveParagraphs: true,
		ExtractMetadata:    true,
	}
}

type Splitter struct {
	opts Options
}

func NewSplitter(opts Options) (*Splitter, error) {
	if opts.ChunkSize <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new splitter", fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize))
	}
	if opts.OverlapSize < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new splitter", fmt.Errorf("overlap must not be negative, got %d", opts.OverlapSize))
	}
	if opts.OverlapSize >= opts.ChunkSize {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new splitter", fmt.Errorf("overlap %d must be smaller than chunk size %d", opts.OverlapSize, opts.ChunkSize))
	}
	return &Splitter{opts: opts}, nil
}

func (s *Splitter) Options() Options {
	return s.opts
}

// Chunk splits text into ordered, overlapping chunks. Offsets are rune offsets.
func (s *Splitter) Chunk(text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	if len(runes) <= s.opts.ChunkSize {
		return []domain.Chunk{s.newChunk(runes, 0, 0, len(runes))}
	}

	out := make([]domain.Chunk, 0, len(runes)/(s.opts.ChunkSize-s.opts.OverlapSize)+1)
	start := 0
	for {
		end := start + s.opts.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if s.opts.PreserveParagraphs {
			end = s.adjustEnd(runes, start, end)
		}

		out = append(out, s.newChunk(runes, len(out), start, end))
		if end >= len(runes) {
			break
		}

		next := end - s.opts.OverlapSize
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func (s *Splitter) newChunk(runes []rune, index, start, end int) domain.Chunk {
	chunk := domain.Chunk{
		Index:     index,
		StartChar: start,
		EndChar:   end,
		Content:   string(runes[start:end]),
	}
	if s.opts.ExtractMetadata {
		windowEnd := end
		if windowEnd-start > metadataWindow {
			windowEnd = start + metadataWindow
		}
		head := string(runes[start:windowEnd])
		chunk.SectionNumber = extractSectionNumber(head)
		chunk.SectionTitle = extractSectionTitle(head)
	}
	return chunk
}

// adjustEnd moves a naive cut to the nearest paragraph or line boundary within the search window.
// The result is always greater than start.
func (s *Splitter) adjustEnd(runes []rune, start, naiveEnd int) int {
	window := s.opts.ChunkSize / 10
	if window <= 0 {
		return naiveEnd
	}

	lower := naiveEnd - window
	if lower <= start {
		lower = start + 1
	}
	upper := naiveEnd + window
	if upper > len(runes) {
		upper = len(runes)
	}

	for _, sep := range [][]rune{{'\n', '\n'}, {'\n'}} {
		if pos, ok := scanForward(runes, sep, naiveEnd, upper); ok {
			return pos
		}
		if pos, ok := scanBackward(runes, sep, lower, naiveEnd); ok {
			return pos
		}
	}
	return naiveEnd
}

// scanForward returns the offset just past the first separator that ends in [from, to].
func scanForward(runes, sep []rune, from, to int) (int, bool) {
	for pos := from; pos <= to; pos++ {
		if endsWith(runes, pos, sep) {
			return pos, true
		}
	}
	return 0, false
}

// scanBackward returns the offset just past the last separator that ends in [from, to).
func scanBackward(runes, sep []rune, from, to int) (int, bool) {
	for pos := to - 1; pos >= from; pos-- {
		if endsWith(runes, pos, sep) {
			return pos, true
		}
	}
	return 0, false
}

func endsWith(runes []rune, pos int, sep []rune) bool {
	if pos < len(sep) || pos > len(runes) {
		return false
	}
	for i := range sep {
		if runes[pos-len(sep)+i] != sep[i] {
			return false
		}
	}
	return true
}
