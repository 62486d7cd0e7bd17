package domain

import (
	"strings"
	"time"
)

// LawType is the closed set of statute kinds recognized in archive documents.
type LawType string

const (
	LawTypeLov            LawType = "lov"
	LawTypeForskrift      LawType = "forskrift"
	LawTypeVedtak         LawType = "vedtak"
	LawTypeInstruks       LawType = "instruks"
	LawTypeReglement      LawType = "reglement"
	LawTypeDelegering     LawType = "delegering"
	LawTypeIkrafttredelse LawType = "ikrafttredelse"
	LawTypeEndring        LawType = "endring"
)

var knownLawTypes = map[LawType]struct{}{
	LawTypeLov:            {},
	LawTypeForskrift:      {},
	LawTypeVedtak:         {},
	LawTypeInstruks:       {},
	LawTypeReglement:      {},
	LawTypeDelegering:     {},
	LawTypeIkrafttredelse: {},
	LawTypeEndring:        {},
}

// ParseLawType normalizes raw input into a known law type.
func ParseLawType(raw string) (LawType, bool) {
	lt := LawType(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := knownLawTypes[lt]
	return lt, ok
}

type Archive struct {
	Filename      string    `json:"filename"`
	DocumentCount int       `json:"document_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Document is keyed by (ArchiveFilename, Member).
type Document struct {
	ArchiveFilename string     `json:"archive_filename"`
	Member          string     `json:"member"`
	Title           string     `json:"title,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	Content         string     `json:"content"`
	LawType         LawType    `json:"law_type,omitempty"`
	Year            int        `json:"year,omitempty"`
	Ministry        string     `json:"ministry,omitempty"`
}

// Chunk offsets are rune offsets into the parent document content, half-open.
type Chunk struct {
	ArchiveFilename string    `json:"archive_filename"`
	Member          string    `json:"member"`
	Index           int       `json:"index"`
	StartChar       int       `json:"start_char"`
	EndChar         int       `json:"end_char"`
	Title           string    `json:"title,omitempty"`
	Content         string    `json:"content"`
	SectionTitle    string    `json:"section_title,omitempty"`
	SectionNumber   string    `json:"section_number,omitempty"`
	LawType         LawType   `json:"law_type,omitempty"`
	Year            int       `json:"year,omitempty"`
	Ministry        string    `json:"ministry,omitempty"`
	Embedding       []float32 `json:"-"`
}

// IndexedDocument is a document together with its chunks, ready for persistence.
type IndexedDocument struct {
	Document Document
	Chunks   []Chunk
}

// ArchiveMember is a raw file read from an uploaded archive.
type ArchiveMember struct {
	Name string
	Data []byte
}

// ExtractedDocument is the text view of an archive member before metadata derivation.
type ExtractedDocument struct {
	Title       string
	Text        string
	PublishedAt *time.Time
	Ministry    string
}
