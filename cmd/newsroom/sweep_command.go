package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/logging"
	"newsroom/internal/sweeper"
	"newsroom/internal/workflow"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Publish all due scheduled articles now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(cfg *config.Config, store *articles.Store, engine *workflow.Engine) error {
				sw := sweeper.New(cfg, store, engine, logging.NewNop())
				published, err := sw.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published %d article(s)\n", published)
				return nil
			})
		},
	}
}
