// Package cli is the operator command line for the legal assistant.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

// Reindexer rebuilds the index from every stored archive.
type Reindexer interface {
	ProcessStored(ctx context.Context) (int, error)
}

type Services struct {
	Storage   ports.ObjectStorage
	Processor ports.ArchiveProcessor
	Reindexer Reindexer
	Search    ports.SearchService
	Documents ports.DocumentReader
	Assistant ports.AssistantService
}

// Opener builds services on first use so that --help never dials a backend.
// The caller owns whatever the opener allocates.
type Opener func(ctx context.Context) (Services, error)

type runtime struct {
	open     Opener
	services Services
	loaded   bool
}

func (rt *runtime) load(ctx context.Context) (Services, error) {
	if rt.loaded {
		return rt.services, nil
	}
	services, err := rt.open(ctx)
	if err != nil {
		return Services{}, fmt.Errorf("initialize services: %w", err)
	}
	rt.services, rt.loaded = services, true
	return services, nil
}

func NewRootCommand(open Opener, version string) *cobra.Command {
	rt := &runtime{open: open}
	root := &cobra.Command{
		Use:           "lovctl",
		Short:         "Operate the Norwegian legal document assistant",
		Long:          `Ingest Lovdata archives, run hybrid search and ask questions against the indexed corpus.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newIngestCommand(rt),
		newReindexCommand(rt),
		newArchivesCommand(rt),
		newSearchCommand(rt),
		newDocumentCommand(rt),
		newAskCommand(rt),
	)
	return root
}

type filterFlags struct {
	lawType  string
	year     int
	ministry string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.lawType, "law-type", "", "restrict to a document type (lov, forskrift, ...)")
	cmd.Flags().IntVar(&f.year, "year", 0, "restrict to documents from this year")
	cmd.Flags().StringVar(&f.ministry, "ministry", "", "restrict to a ministry (substring match)")
}

func (f *filterFlags) toDomain() (domain.SearchFilter, error) {
	filter := domain.SearchFilter{Year: f.year, Ministry: strings.TrimSpace(f.ministry)}
	if strings.TrimSpace(f.lawType) != "" {
		lawType, ok := domain.ParseLawType(f.lawType)
		if !ok {
			return domain.SearchFilter{}, fmt.Errorf("unknown law type %q", f.lawType)
		}
		filter.LawType = lawType
	}
	if filter.Year < 0 {
		return domain.SearchFilter{}, errors.New("year must not be negative")
	}
	return filter, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
