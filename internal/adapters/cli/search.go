package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const snippetRunes = 240

func newSearchCommand(rt *runtime) *cobra.Command {
	var (
		page     int
		pageSize int
		asJSON   bool
		filters  filterFlags
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed legal documents",
		Long: `Runs hybrid search over the indexed corpus.
Lexical and semantic rankings are fused and the first page is re-ranked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filters.toDomain()
			if err != nil {
				return err
			}
			services, err := rt.load(cmd.Context())
			if err != nil {
				return err
			}
			if services.Search == nil {
				return errors.New("search is not configured")
			}
			result, err := services.Search.Search(cmd.Context(), domain.SearchRequest{
				Query:    args[0],
				Page:     page,
				PageSize: pageSize,
				Filter:   filter,
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if asJSON {
				return printJSON(cmd, result)
			}
			printSearchResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "result page")
	cmd.Flags().IntVarP(&pageSize, "page-size", "n", 0, "results per page (0 uses the server default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	filters.register(cmd)
	return cmd
}

func printSearchResult(cmd *cobra.Command, result *domain.SearchResult) {
	if len(result.Hits) == 0 {
		cmd.Println("No results found.")
		return
	}
	cmd.Printf("Page %d of %d (%d hits)\n\n", result.Page, result.TotalPages, result.TotalHits)
	for i, hit := range result.Hits {
		title := hit.Title
		if title == "" {
			title = hit.Member
		}
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, title, hit.Score)
		if hit.SectionNumber != "" || hit.SectionTitle != "" {
			cmd.Printf("      %s\n", strings.TrimSpace(hit.SectionNumber+" "+hit.SectionTitle))
		}
		cmd.Printf("      %s/%s\n", hit.ArchiveFilename, hit.Member)
		cmd.Printf("      %s\n\n", shorten(hit.Content, snippetRunes))
	}
}

func newDocumentCommand(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "document [archive] [member]",
		Short: "Show one indexed document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := rt.load(cmd.Context())
			if err != nil {
				return err
			}
			if services.Documents == nil {
				return errors.New("document store is not configured")
			}
			doc, err := services.Documents.GetByKey(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("get document: %w", err)
			}
			if asJSON {
				return printJSON(cmd, doc)
			}
			cmd.Println(doc.Title)
			cmd.Println()
			cmd.Println(doc.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func shorten(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
