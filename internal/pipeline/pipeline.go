// Package pipeline builds the role-scoped editorial dashboard view.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"newsroom/internal/articles"
	"newsroom/internal/logging"
	"newsroom/internal/roles"
)

// View is the per-request dashboard read model: five buckets of articles,
// each sorted by updated_at descending. Buckets the viewer's role cannot see
// are present but empty.
type View struct {
	MyDrafts          []*articles.Article
	AwaitingReview    []*articles.Article
	Approved          []*articles.Article
	Scheduled         []*articles.Article
	RecentlyPublished []*articles.Article
}

// Aggregator queries the article store with role-scoped filters. It performs
// no mutation and never raises a workflow error; a failed bucket query is
// logged and the bucket left empty.
type Aggregator struct {
	store        *articles.Store
	logger       *slog.Logger
	recentWindow time.Duration
}

// New creates an aggregator. recentDays bounds the recently-published bucket.
func New(store *articles.Store, logger *slog.Logger, recentDays int) *Aggregator {
	if recentDays <= 0 {
		recentDays = 7
	}
	return &Aggregator{
		store:        store,
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		recentWindow: time.Duration(recentDays) * 24 * time.Hour,
	}
}

// Build assembles the pipeline view for the given actor.
func (a *Aggregator) Build(ctx context.Context, actor articles.Actor) *View {
	now := time.Now().UTC()
	view := &View{
		MyDrafts:          []*articles.Article{},
		AwaitingReview:    []*articles.Article{},
		Approved:          []*articles.Article{},
		Scheduled:         []*articles.Article{},
		RecentlyPublished: []*articles.Article{},
	}

	drafts := a.query(ctx, "my_drafts", articles.Filter{
		Statuses:       []articles.Status{articles.StatusDraft},
		OrderByUpdated: true,
	})
	for _, article := range drafts {
		if article.OwnedBy(actor.ID) {
			view.MyDrafts = append(view.MyDrafts, article)
		}
	}

	if actor.Role.AtLeast(roles.RoleEditor) {
		view.AwaitingReview = a.query(ctx, "awaiting_review", articles.Filter{
			Statuses:       []articles.Status{articles.StatusInReview},
			OrderByUpdated: true,
		})
	}

	if actor.Role.AtLeast(roles.RolePublisher) {
		view.Approved = a.query(ctx, "approved", articles.Filter{
			Statuses:       []articles.Status{articles.StatusScheduled},
			PublishAtDueBy: &now,
			OrderByUpdated: true,
		})
		view.Scheduled = a.query(ctx, "scheduled", articles.Filter{
			Statuses:       []articles.Status{articles.StatusScheduled},
			PublishAtAfter: &now,
			OrderByUpdated: true,
		})
	}

	since := now.Add(-a.recentWindow)
	view.RecentlyPublished = a.query(ctx, "recently_published", articles.Filter{
		Statuses:       []articles.Status{articles.StatusPublished},
		PublishedSince: &since,
		OrderByUpdated: true,
	})

	return view
}

func (a *Aggregator) query(ctx context.Context, bucket string, filter articles.Filter) []*articles.Article {
	result, err := a.store.List(ctx, filter)
	if err != nil {
		a.logger.Warn("pipeline bucket query failed",
			logging.String("bucket", bucket),
			logging.Error(err),
		)
		return []*articles.Article{}
	}
	if result == nil {
		return []*articles.Article{}
	}
	return result
}
