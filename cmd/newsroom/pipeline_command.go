package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsroom/internal/api"
	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/logging"
	"newsroom/internal/pipeline"
)

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	var actor actorFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Show the editorial pipeline for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := actor.actor()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *articles.Store) error {
				aggregator := pipeline.New(store, logging.NewNop(), cfg.Workflow.RecentlyPublishedDays)
				view := aggregator.Build(cmd.Context(), who)

				if asJSON {
					return writeJSON(cmd, api.FromPipelineView(view))
				}

				out := cmd.OutOrStdout()
				buckets := []struct {
					name     string
					articles []*articles.Article
				}{
					{"My drafts", view.MyDrafts},
					{"Awaiting review", view.AwaitingReview},
					{"Approved", view.Approved},
					{"Scheduled", view.Scheduled},
					{"Recently published", view.RecentlyPublished},
				}
				for _, bucket := range buckets {
					fmt.Fprintf(out, "%s (%d)\n", bucket.name, len(bucket.articles))
					if len(bucket.articles) == 0 {
						continue
					}
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "Title", "Slug", "Updated"},
						articleRows(bucket.articles),
					))
				}
				return nil
			})
		},
	}

	actor.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of tables")
	return cmd
}
