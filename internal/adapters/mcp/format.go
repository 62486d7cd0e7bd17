package mcpadapter

import (
	"fmt"
	"strings"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

func formatSearchResult(query string, result *domain.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Søk: %s\n\n", query)
	if result == nil || len(result.Hits) == 0 {
		b.WriteString("Ingen treff.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Side %d av %d (%d treff totalt", result.Page, result.TotalPages, result.TotalHits)
	if result.Reranked {
		b.WriteString(", omrangert")
	}
	b.WriteString(")\n\n")

	for i, hit := range result.Hits {
		title := hit.Title
		if title == "" {
			title = hit.Member
		}
		fmt.Fprintf(&b, "## %d. %s\n", i+1, title)
		if hit.SectionNumber != "" || hit.SectionTitle != "" {
			fmt.Fprintf(&b, "%s\n", strings.TrimSpace(hit.SectionNumber+" "+hit.SectionTitle))
		}
		fmt.Fprintf(&b, "- archive: `%s`\n- member: `%s`\n", hit.ArchiveFilename, hit.Member)
		if hit.LawType != "" {
			fmt.Fprintf(&b, "- type: %s\n", hit.LawType)
		}
		if hit.Year > 0 {
			fmt.Fprintf(&b, "- year: %d\n", hit.Year)
		}
		if hit.Ministry != "" {
			fmt.Fprintf(&b, "- ministry: %s\n", hit.Ministry)
		}
		fmt.Fprintf(&b, "\n%s\n\n", snippet(hit.Content, 600))
	}
	return b.String()
}

func formatDocument(doc *domain.Document, maxChars int) string {
	var b strings.Builder
	title := doc.Title
	if title == "" {
		title = doc.Member
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- archive: `%s`\n- member: `%s`\n", doc.ArchiveFilename, doc.Member)
	if doc.LawType != "" {
		fmt.Fprintf(&b, "- type: %s\n", doc.LawType)
	}
	if doc.PublishedAt != nil {
		fmt.Fprintf(&b, "- published: %s\n", doc.PublishedAt.Format("2006-01-02"))
	}
	if doc.Ministry != "" {
		fmt.Fprintf(&b, "- ministry: %s\n", doc.Ministry)
	}
	b.WriteString("\n")
	b.WriteString(snippet(doc.Content, maxChars))
	b.WriteString("\n")
	return b.String()
}

func formatArchives(archives []domain.Archive) string {
	if len(archives) == 0 {
		return "Ingen arkiver er indeksert.\n"
	}
	var b strings.Builder
	b.WriteString("| archive | documents | updated |\n|---|---|---|\n")
	for _, a := range archives {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", a.Filename, a.DocumentCount, a.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func formatAgentResult(result *domain.AgentRunResult) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(result.Answer))
	b.WriteString("\n")
	if len(result.Evidence) > 0 {
		b.WriteString("\n## Kilder\n")
		for i, ev := range result.Evidence {
			ref := ev.Link
			if ref == "" {
				ref = ev.Metadata[domain.MetaArchiveFilename] + " / " + ev.Metadata[domain.MetaMember]
			}
			fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, ev.Title, ref)
		}
	}
	if result.FallbackReason != "" {
		fmt.Fprintf(&b, "\n_%s, %s_\n", result.FinalState, result.FallbackReason)
	}
	return b.String()
}

// snippet truncates on a rune boundary.
func snippet(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars]) + " […]"
}
