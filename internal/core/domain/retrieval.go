package domain

type SearchFilter struct {
	LawType  LawType `json:"law_type,omitempty"`
	Year     int     `json:"year,omitempty"`
	Ministry string  `json:"ministry,omitempty"`
}

func (f SearchFilter) IsZero() bool {
	return f.LawType == "" && f.Year == 0 && f.Ministry == ""
}

type SearchRequest struct {
	Query    string       `json:"query"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Filter   SearchFilter `json:"filter"`
}

// SearchHit is one ranked chunk returned by a store query or the fused list.
type SearchHit struct {
	ArchiveFilename string  `json:"archive_filename"`
	Member          string  `json:"member"`
	ChunkIndex      int     `json:"chunk_index"`
	Title           string  `json:"title,omitempty"`
	Content         string  `json:"content"`
	SectionTitle    string  `json:"section_title,omitempty"`
	SectionNumber   string  `json:"section_number,omitempty"`
	LawType         LawType `json:"law_type,omitempty"`
	Year            int     `json:"year,omitempty"`
	Ministry        string  `json:"ministry,omitempty"`
	PublishedAt     string  `json:"published_at,omitempty"`
	Score           float64 `json:"score"`
}

// SearchCandidate carries the 1-based rank of a hit in each signal; zero means absent.
type SearchCandidate struct {
	Hit         SearchHit
	LexicalRank int
	VectorRank  int
	Score       float64
}

const SearchScopeLegalArchive = "legal_archive"

type SearchResult struct {
	Hits          []SearchHit `json:"hits"`
	TotalHits     int         `json:"total_hits"`
	TotalPages    int         `json:"total_pages"`
	Page          int         `json:"page"`
	PageSize      int         `json:"page_size"`
	SearchedScope string      `json:"searched_scope"`
	Reranked      bool        `json:"reranked"`
}

type Answer struct {
	Text    string     `json:"text"`
	Sources []Evidence `json:"sources"`
}
