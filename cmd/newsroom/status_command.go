package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsroom/internal/articles"
	"newsroom/internal/config"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show article counts per workflow state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *articles.Store) error {
				counts, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, counts)
				}

				rows := [][]string{
					{"DRAFT", fmt.Sprint(counts.Draft)},
					{"IN_REVIEW", fmt.Sprint(counts.InReview)},
					{"SCHEDULED", fmt.Sprint(counts.Scheduled)},
					{"PUBLISHED", fmt.Sprint(counts.Published)},
					{"ARCHIVED", fmt.Sprint(counts.Archived)},
					{"total", fmt.Sprint(counts.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Articles"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
