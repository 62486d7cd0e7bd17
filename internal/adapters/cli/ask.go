package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

func newAskCommand(rt *runtime) *cobra.Command {
	var (
		asJSON  bool
		filters filterFlags
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant a legal question",
		Long: `Runs the assistant loop: the reasoner searches the corpus with tools
and answers with citations to the evidence it found.`,
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
			if services.Assistant == nil {
				return errors.New("assistant is not configured")
			}
			result, err := services.Assistant.Run(cmd.Context(), domain.AgentRunRequest{
				Question: args[0],
				Filter:   filter,
			})
			if err != nil {
				return fmt.Errorf("assistant: %w", err)
			}
			if asJSON {
				return printJSON(cmd, result)
			}
			cmd.Println(result.Answer)
			if len(result.Evidence) > 0 {
				cmd.Println()
				cmd.Println("Kilder:")
				for _, ev := range result.Evidence {
					cmd.Printf("  [%s] %s\n", ev.ID, ev.Title)
				}
			}
			cmd.Printf("\n(mode=%s state=%s iterations=%d)\n", result.Mode, result.FinalState, result.Iterations)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	filters.register(cmd)
	return cmd
}
