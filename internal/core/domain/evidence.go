package domain

type EvidenceSource string

const (
	EvidenceSourceLegalArchive EvidenceSource = "legal_archive"
	EvidenceSourceWebFallback  EvidenceSource = "web_fallback"
)

const (
	MetaArchiveFilename = "archive_filename"
	MetaMember          = "member"
	MetaChunkIndex      = "chunk_index"
	MetaLawType         = "law_type"
	MetaYear            = "year"
	MetaMinistry        = "ministry"
	MetaSectionNumber   = "section_number"
	MetaLink            = "link"
)

// Evidence is a retrieved fragment with enough provenance to be cited.
type Evidence struct {
	ID       string            `json:"id"`
	Source   EvidenceSource    `json:"source"`
	Title    string            `json:"title"`
	Snippet  string            `json:"snippet"`
	Content  string            `json:"content,omitempty"`
	Link     string            `json:"link,omitempty"`
	Date     string            `json:"date,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type WebSearchQuery struct {
	Query string
	Num   int
	Site  string
}

type WebResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
}
