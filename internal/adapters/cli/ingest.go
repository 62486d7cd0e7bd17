package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newIngestCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [archive]",
		Short: "Store and index a local Lovdata archive",
		Long: `Copies a .tar.bz2 archive into object storage and indexes it synchronously.
Existing documents from an archive with the same name are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := rt.load(cmd.Context())
			if err != nil {
				return err
			}
			if services.Storage == nil || services.Processor == nil {
				return errors.New("archive processing is not configured")
			}

			path := args[0]
			name := filepath.Base(path)
			if !strings.HasSuffix(strings.ToLower(name), ".tar.bz2") {
				return fmt.Errorf("%s: expected a .tar.bz2 archive", name)
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer file.Close()

			if err := services.Storage.Save(cmd.Context(), name, file); err != nil {
				return fmt.Errorf("store archive: %w", err)
			}
			archive, err := services.Processor.ProcessArchive(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("process archive: %w", err)
			}
			cmd.Printf("Indexed %s: %d documents\n", archive.Filename, archive.DocumentCount)
			return nil
		},
	}
}

func newReindexCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the index from every stored archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := rt.load(cmd.Context())
			if err != nil {
				return err
			}
			if services.Reindexer == nil {
				return errors.New("archive processing is not configured")
			}
			processed, err := services.Reindexer.ProcessStored(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex after %d archives: %w", processed, err)
			}
			cmd.Printf("Reindexed %d archives\n", processed)
			return nil
		},
	}
}

func newArchivesCommand(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "List indexed archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := rt.load(cmd.Context())
			if err != nil {
				return err
			}
			if services.Documents == nil {
				return errors.New("document store is not configured")
			}
			archives, err := services.Documents.ListArchives(cmd.Context())
			if err != nil {
				return fmt.Errorf("list archives: %w", err)
			}
			if asJSON {
				return printJSON(cmd, archives)
			}
			if len(archives) == 0 {
				cmd.Println("No archives indexed.")
				return nil
			}
			for _, a := range archives {
				cmd.Printf("  %s  %d documents  updated %s\n", a.Filename, a.DocumentCount, a.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
