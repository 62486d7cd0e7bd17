package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const evidenceSnippetRunes = 320

// evidenceAccumulator is the per-request evidence set. Legal items are keyed by
// archive and member, web items by link. Items without a key are always kept.
type evidenceAccumulator struct {
	items     []domain.Evidence
	keys      map[string]struct{}
	anonymous int
}

func newEvidenceAccumulator() *evidenceAccumulator {
	return &evidenceAccumulator{keys: make(map[string]struct{})}
}

// Add appends the items not already present and returns how many were added.
func (a *evidenceAccumulator) Add(items ...domain.Evidence) int {
	added := 0
	for _, item := range items {
		key, ok := evidenceKey(item)
		if ok {
			if _, seen := a.keys[key]; seen {
				continue
			}
			a.keys[key] = struct{}{}
		}
		if item.ID == "" {
			a.anonymous++
			item.ID = "evidence-" + strconv.Itoa(a.anonymous)
		}
		a.items = append(a.items, item)
		added++
	}
	return added
}

func (a *evidenceAccumulator) Len() int {
	return len(a.items)
}

func (a *evidenceAccumulator) Items() []domain.Evidence {
	out := make([]domain.Evidence, len(a.items))
	copy(out, a.items)
	return out
}

func evidenceKey(item domain.Evidence) (string, bool) {
	switch item.Source {
	case domain.EvidenceSourceLegalArchive:
		archive := item.Metadata[domain.MetaArchiveFilename]
		member := item.Metadata[domain.MetaMember]
		if archive == "" && member == "" {
			return "", false
		}
		return "legal|" + archive + "|" + member, true
	default:
		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = strings.TrimSpace(item.Metadata[domain.MetaLink])
		}
		if link == "" {
			return "", false
		}
		return "web|" + link, true
	}
}

func hitToEvidence(hit domain.SearchHit) domain.Evidence {
	title := strings.TrimSpace(hit.Title)
	if title == "" {
		title = hit.Member
	}
	meta := map[string]string{
		domain.MetaArchiveFilename: hit.ArchiveFilename,
		domain.MetaMember:          hit.Member,
		domain.MetaChunkIndex:      strconv.Itoa(hit.ChunkIndex),
	}
	if hit.LawType != "" {
		meta[domain.MetaLawType] = string(hit.LawType)
	}
	if hit.Year != 0 {
		meta[domain.MetaYear] = strconv.Itoa(hit.Year)
	}
	if hit.Ministry != "" {
		meta[domain.MetaMinistry] = hit.Ministry
	}
	if hit.SectionNumber != "" {
		meta[domain.MetaSectionNumber] = hit.SectionNumber
	}
	return domain.Evidence{
		ID:       fmt.Sprintf("%s/%s#%d", hit.ArchiveFilename, hit.Member, hit.ChunkIndex),
		Source:   domain.EvidenceSourceLegalArchive,
		Title:    title,
		Snippet:  snippet(hit.Content),
		Content:  hit.Content,
		Date:     hit.PublishedAt,
		Metadata: meta,
	}
}

func hitsToEvidence(hits []domain.SearchHit) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hitToEvidence(hit))
	}
	return out
}

func webResultToEvidence(r domain.WebResult) domain.Evidence {
	item := domain.Evidence{
		Source:  domain.EvidenceSourceWebFallback,
		Title:   strings.TrimSpace(r.Title),
		Snippet: snippet(r.Snippet),
		Link:    strings.TrimSpace(r.Link),
		Date:    r.Date,
	}
	if item.Link != "" {
		item.ID = item.Link
		item.Metadata = map[string]string{domain.MetaLink: item.Link}
	}
	return item
}

func webResultsToEvidence(results []domain.WebResult) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(results))
	for _, r := range results {
		out = append(out, webResultToEvidence(r))
	}
	return out
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= evidenceSnippetRunes {
		return text
	}
	return string(runes[:evidenceSnippetRunes]) + "…"
}

// citationListAnswer is the deterministic answer used when generation is unavailable.
func citationListAnswer(evidence []domain.Evidence) string {
	var b strings.Builder
	b.WriteString("Fant ikke et fullstendig svar, men følgende kilder er relevante:\n")
	for i, item := range evidence {
		fmt.Fprintf(&b, "[%d] %s", i+1, item.Title)
		if section := item.Metadata[domain.MetaSectionNumber]; section != "" {
			fmt.Fprintf(&b, " (%s)", section)
		}
		if item.Link != "" {
			fmt.Fprintf(&b, " <%s>", item.Link)
		}
		if item.Snippet != "" {
			fmt.Fprintf(&b, ": %s", item.Snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
