package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"newsroom/internal/api"
	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/roles"
	"newsroom/internal/workflow"
)

// actorFlags carry the acting user's identity and role. Authentication is the
// front proxy's job; the CLI is an operator tool and takes both as input.
type actorFlags struct {
	id   int64
	role string
}

func (f *actorFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.id, "actor", 0, "Acting user id")
	cmd.Flags().StringVar(&f.role, "role", "", "Acting user role (reader, writer, editor, publisher, admin)")
}

func (f *actorFlags) actor() (articles.Actor, error) {
	if f.id <= 0 {
		return articles.Actor{}, fmt.Errorf("--actor is required")
	}
	role, ok := roles.ParseRole(f.role)
	if !ok {
		return articles.Actor{}, fmt.Errorf("--role must be one of reader, writer, editor, publisher, admin")
	}
	return articles.Actor{ID: f.id, Role: role}, nil
}

func parseArticleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid article id %q", arg)
	}
	return id, nil
}

func articleRows(records []*articles.Article) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			fmt.Sprint(record.ID),
			record.Title,
			record.Slug,
			record.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func newArticleCommand(ctx *commandContext) *cobra.Command {
	articleCmd := &cobra.Command{
		Use:   "article",
		Short: "Inspect and transition articles",
	}

	articleCmd.AddCommand(newArticleCreateCommand(ctx))
	articleCmd.AddCommand(newArticleListCommand(ctx))
	articleCmd.AddCommand(newArticleShowCommand(ctx))
	articleCmd.AddCommand(newArticleVersionsCommand(ctx))
	articleCmd.AddCommand(newArticlePreviewCommand(ctx))

	for _, transition := range roles.AllTransitions() {
		articleCmd.AddCommand(newTransitionCommand(ctx, transition))
	}

	return articleCmd
}

func newArticleCreateCommand(ctx *commandContext) *cobra.Command {
	var actor actorFlags
	var title, slug, dek, body, hero string
	var authors []int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := actor.actor()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *articles.Store) error {
				authorIDs := authors
				if len(authorIDs) == 0 {
					authorIDs = []int64{who.ID}
				}
				article, err := store.CreateDraft(cmd.Context(), articles.DraftInput{
					Title:     title,
					Slug:      slug,
					Dek:       dek,
					BodyMD:    body,
					HeroImage: hero,
					Authors:   authorIDs,
					CreatedBy: who.ID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created draft %d (%s)\n", article.ID, article.Slug)
				return nil
			})
		},
	}

	actor.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "Article title (required)")
	cmd.Flags().StringVar(&slug, "slug", "", "Explicit slug (derived from title when empty)")
	cmd.Flags().StringVar(&dek, "dek", "", "Subtitle")
	cmd.Flags().StringVar(&body, "body", "", "Body markdown")
	cmd.Flags().StringVar(&hero, "hero", "", "Hero image reference")
	cmd.Flags().Int64SliceVar(&authors, "author", nil, "Author user id (repeatable; defaults to the actor)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newArticleListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *articles.Store) error {
				var filter articles.Filter
				for _, value := range statusFilters {
					status, ok := articles.ParseStatus(value)
					if !ok {
						return fmt.Errorf("unknown status %q", value)
					}
					filter.Statuses = append(filter.Statuses, status)
				}
				filter.OrderByUpdated = true

				records, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ArticleListResponse{Articles: api.FromArticles(records)})
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						fmt.Sprint(record.ID),
						string(record.Status),
						record.Title,
						record.Slug,
						record.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Title", "Slug", "Updated"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newArticleShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArticleID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *articles.Store) error {
				article, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if article == nil {
					return fmt.Errorf("article %d not found", id)
				}
				if asJSON {
					return writeJSON(cmd, api.ArticleResponse{Article: api.FromArticle(article)})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Article %d: %s\n", article.ID, article.Title)
				fmt.Fprintf(out, "  Slug:    %s\n", article.Slug)
				fmt.Fprintf(out, "  Status:  %s\n", article.Status)
				if article.Dek != "" {
					fmt.Fprintf(out, "  Dek:     %s\n", article.Dek)
				}
				if article.PublishAt != nil {
					fmt.Fprintf(out, "  Publish at:   %s\n", article.PublishAt.Local().Format(time.RFC3339))
				}
				if article.PublishedAt != nil {
					fmt.Fprintf(out, "  Published at: %s\n", article.PublishedAt.Local().Format(time.RFC3339))
				}
				fmt.Fprintf(out, "  Authors: %v (created by %d)\n", article.Authors, article.CreatedBy)
				fmt.Fprintf(out, "  Updated: %s\n", article.UpdatedAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func newArticleVersionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "versions <id>",
		Short: "Show an article's revision history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArticleID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *articles.Store) error {
				versions, err := store.Versions(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.VersionListResponse{Versions: api.FromVersions(versions)})
				}

				rows := make([][]string, 0, len(versions))
				for _, version := range versions {
					rows = append(rows, []string{
						fmt.Sprint(version.ID),
						string(version.Kind),
						version.Title,
						fmt.Sprint(version.ActorID),
						version.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Version", "Kind", "Title", "Actor", "Created"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newArticlePreviewCommand(ctx *commandContext) *cobra.Command {
	var actor actorFlags

	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Mint a share token for an unpublished article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := actor.actor()
			if err != nil {
				return err
			}
			id, err := parseArticleID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *articles.Store) error {
				ttl := time.Duration(cfg.Workflow.PreviewTokenTTLHours) * time.Hour
				token, err := store.MintPreviewToken(cmd.Context(), id, who.ID, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Preview token: %s (expires %s)\n",
					token.Token, token.ExpiresAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}

	actor.register(cmd)
	return cmd
}

var transitionShortHelp = map[roles.Transition]string{
	roles.TransitionSubmit:     "Submit a draft for review",
	roles.TransitionApprove:    "Approve an article (publishes now, or schedules with --publish-at)",
	roles.TransitionSchedule:   "Set or change an article's publish instant",
	roles.TransitionPublishNow: "Publish an article immediately",
	roles.TransitionArchive:    "Archive a published article",
	roles.TransitionRevert:     "Send an in-review article back to draft",
	roles.TransitionUnarchive:  "Re-enter an archived article as a draft",
}

func newTransitionCommand(ctx *commandContext, transition roles.Transition) *cobra.Command {
	var actor actorFlags
	var publishAtFlag string

	takesPublishAt := transition == roles.TransitionApprove || transition == roles.TransitionSchedule

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <id>", transition),
		Short: transitionShortHelp[transition],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := actor.actor()
			if err != nil {
				return err
			}
			id, err := parseArticleID(args[0])
			if err != nil {
				return err
			}

			var request workflow.Request
			if takesPublishAt && publishAtFlag != "" {
				at, err := time.Parse(time.RFC3339, publishAtFlag)
				if err != nil {
					return fmt.Errorf("--publish-at must be RFC 3339: %w", err)
				}
				request.PublishAt = &at
			}

			return ctx.withEngine(func(cfg *config.Config, store *articles.Store, engine *workflow.Engine) error {
				article, err := engine.Apply(cmd.Context(), who, transition, id, request)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Article %d is now %s\n", article.ID, article.Status)
				return nil
			})
		},
	}

	actor.register(cmd)
	if takesPublishAt {
		cmd.Flags().StringVar(&publishAtFlag, "publish-at", "", "Publish instant, RFC 3339")
	}
	return cmd
}
