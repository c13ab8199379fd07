package workflow

import (
	"context"
	"log/slog"
	"time"

	"newsroom/internal/articles"
	"newsroom/internal/logging"
	"newsroom/internal/roles"
)

// Engine drives article status transitions. Every transition runs the same
// precondition sequence: the article must exist, its current status must be a
// valid source for the transition, the actor's role must authorize it, and any
// transition-specific guards must pass. The status write and its revision
// snapshot commit atomically in the store.
type Engine struct {
	store  *articles.Store
	logger *slog.Logger
}

// New creates a workflow engine over the given store.
func New(store *articles.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
}

// Request carries the optional parameters of a transition.
type Request struct {
	// PublishAt is the target instant for approve-with-schedule and schedule.
	PublishAt *time.Time
}

// Apply dispatches a named transition.
func (e *Engine) Apply(ctx context.Context, actor articles.Actor, transition roles.Transition, articleID int64, req Request) (*articles.Article, error) {
	switch transition {
	case roles.TransitionSubmit:
		return e.Submit(ctx, actor, articleID)
	case roles.TransitionApprove:
		return e.Approve(ctx, actor, articleID, req.PublishAt)
	case roles.TransitionSchedule:
		if req.PublishAt == nil {
			return nil, articles.NewValidation("schedule requires a publish_at instant")
		}
		return e.Schedule(ctx, actor, articleID, *req.PublishAt)
	case roles.TransitionPublishNow:
		return e.PublishNow(ctx, actor, articleID)
	case roles.TransitionArchive:
		return e.Archive(ctx, actor, articleID)
	case roles.TransitionRevert:
		return e.RevertToDraft(ctx, actor, articleID)
	case roles.TransitionUnarchive:
		return e.Unarchive(ctx, actor, articleID)
	default:
		return nil, articles.NewValidation("unknown transition %q", transition)
	}
}

// Submit moves a draft into review. Writers may submit only drafts they own,
// as creator or author; editors and above may submit any draft.
func (e *Engine) Submit(ctx context.Context, actor articles.Actor, articleID int64) (*articles.Article, error) {
	article, err := e.load(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(article, roles.TransitionSubmit, articles.StatusDraft); err != nil {
		return nil, err
	}
	if !roles.Authorize(actor.Role, roles.TransitionSubmit) {
		return nil, forbidden(actor, roles.TransitionSubmit)
	}
	if !actor.Role.AtLeast(roles.RoleEditor) && !article.OwnedBy(actor.ID) {
		return nil, articles.NewForbidden("writers may only submit their own articles")
	}
	if len(article.Authors) == 0 {
		return nil, articles.NewValidation("article %d has no authors", articleID)
	}

	return e.commit(ctx, actor, roles.TransitionSubmit, articles.TransitionUpdate{
		ArticleID:      articleID,
		ExpectedStatus: articles.StatusDraft,
		NewStatus:      articles.StatusInReview,
		Kind:           articles.VersionSubmit,
		ActorID:        actor.ID,
	})
}

// Approve moves an article out of review. With a future publishAt it lands in
// SCHEDULED; with none it publishes immediately.
func (e *Engine) Approve(ctx context.Context, actor articles.Actor, articleID int64, publishAt *time.Time) (*articles.Article, error) {
	article, err := e.load(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(article, roles.TransitionApprove, articles.StatusInReview); err != nil {
		return nil, err
	}
	if !roles.Authorize(actor.Role, roles.TransitionApprove) {
		return nil, forbidden(actor, roles.TransitionApprove)
	}
	if len(article.Authors) == 0 {
		return nil, articles.NewValidation("article %d has no authors", articleID)
	}

	if publishAt != nil {
		if !publishAt.After(time.Now()) {
			return nil, articles.NewValidation("publish_at must be strictly in the future")
		}
		return e.commit(ctx, actor, roles.TransitionApprove, articles.TransitionUpdate{
			ArticleID:      articleID,
			ExpectedStatus: articles.StatusInReview,
			NewStatus:      articles.StatusScheduled,
			PublishAt:      publishAt,
			Kind:           articles.VersionApprove,
			ActorID:        actor.ID,
		})
	}

	now := time.Now().UTC()
	return e.commit(ctx, actor, roles.TransitionApprove, articles.TransitionUpdate{
		ArticleID:      articleID,
		ExpectedStatus: articles.StatusInReview,
		NewStatus:      articles.StatusPublished,
		SetPublishedAt: &now,
		Kind:           articles.VersionApprove,
		ActorID:        actor.ID,
	})
}

// Schedule sets or replaces the publish instant of an article heading for
// automatic release. From IN_REVIEW it acts like approve-with-schedule; on an
// already SCHEDULED article it re-times the release.
func (e *Engine) Schedule(ctx context.Context, actor articles.Actor, articleID int64, publishAt time.Time) (*articles.Article, error) {
	article, err := e.load(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(article, roles.TransitionSchedule, articles.StatusInReview, articles.StatusScheduled); err != nil {
		return nil, err
	}
	if !roles.Authorize(actor.Role, roles.TransitionSchedule) {
		return nil, forbidden(actor, roles.TransitionSchedule)
	}
	if !publishAt.After(time.Now()) {
		return nil, articles.NewValidation("publish_at must be strictly in the future")
	}

	return e.commit(ctx, actor, roles.TransitionSchedule, articles.TransitionUpdate{
		ArticleID:      articleID,
		ExpectedStatus: article.Status,
		NewStatus:      articles.StatusScheduled,
		PublishAt:      &publishAt,
		Kind:           articles.VersionSchedule,
		ActorID:        actor.ID,
	})
}

// PublishNow releases an article immediately. It is the only transition that
// can fire from DRAFT (publisher override bypassing review) and is also the
// path the scheduled publish sweeper takes for due articles.
func (e *Engine) PublishNow(ctx context.Context, actor articles.Actor, articleID int64) (*articles.Article, error) {
	article, err := e.load(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(article, roles.TransitionPublishNow,
		articles.StatusDraft, articles.StatusInReview, articles.StatusScheduled); err != nil {
		return nil, err
	}
	if !roles.Authorize(actor.Role, roles.TransitionPublishNow) {
		return nil, forbidden(actor, roles.TransitionPublishNow)
	}

	now := time.Now().UTC()
	return e.commit(ctx, actor, roles.TransitionPublishNow, articles.TransitionUpdate{
		ArticleID:      articleID,
		ExpectedStatus: article.Status,
		NewStatus:      articles.StatusPublished,
		SetPublishedAt: &now,
		Kind:           articles.VersionPublish,
		ActorID:        actor.ID,
	})
}

// Archive retires a published article. published_at is preserved.
func (e *Engine) Archive(ctx context.Context, actor articles.Actor, articleID int64) (*articles.Article, error) {
	article, err := e.load(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(article, roles.TransitionArchive, articles.StatusPublished); err != nil {
		return nil, err
	}
	if !roles.Authorize(actor.Role, roles.TransitionArchive) {
		return nil, forbidden(actor, roles.TransitionArchive)
	}

	return e.commit(ctx, actor, roles.TransitionArchive, articles.TransitionUpdate{
		ArticleID:      articleID,
		ExpectedStatus: articles.StatusPublished,
		NewStatus:      articles.StatusArchived,
		Kind:           articles.VersionArchive,
		ActorID:        actor.ID,
	})
}

// RevertToDraft sends an in-review article back to its author. Editors may
// revert anything; the original writer may revert their own submission.
func (e *Engine) RevertToDraft(ctx context.Context, actor articles.Actor, articleID int64) (*articles.Article, error) {
	article, err := e.load(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(article, roles.TransitionRevert, articles.StatusInReview); err != nil {
		return nil, err
	}
	ownWriter := actor.Role.AtLeast(roles.RoleWriter) && article.OwnedBy(actor.ID)
	if !roles.Authorize(actor.Role, roles.TransitionRevert) && !ownWriter {
		return nil, forbidden(actor, roles.TransitionRevert)
	}

	return e.commit(ctx, actor, roles.TransitionRevert, articles.TransitionUpdate{
		ArticleID:      articleID,
		ExpectedStatus: articles.StatusInReview,
		NewStatus:      articles.StatusDraft,
		Kind:           articles.VersionRevert,
		ActorID:        actor.ID,
	})
}

// Unarchive re-enters an archived article into the workflow as a draft.
// published_at is preserved so the article still counts as ever published.
func (e *Engine) Unarchive(ctx context.Context, actor articles.Actor, articleID int64) (*articles.Article, error) {
	article, err := e.load(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(article, roles.TransitionUnarchive, articles.StatusArchived); err != nil {
		return nil, err
	}
	if !roles.Authorize(actor.Role, roles.TransitionUnarchive) {
		return nil, forbidden(actor, roles.TransitionUnarchive)
	}

	return e.commit(ctx, actor, roles.TransitionUnarchive, articles.TransitionUpdate{
		ArticleID:      articleID,
		ExpectedStatus: articles.StatusArchived,
		NewStatus:      articles.StatusDraft,
		Kind:           articles.VersionUnarchive,
		ActorID:        actor.ID,
	})
}

func (e *Engine) load(ctx context.Context, articleID int64) (*articles.Article, error) {
	article, err := e.store.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, articles.NewNotFound("article %d not found", articleID)
	}
	return article, nil
}

func (e *Engine) commit(ctx context.Context, actor articles.Actor, transition roles.Transition, update articles.TransitionUpdate) (*articles.Article, error) {
	updated, err := e.store.ApplyTransition(ctx, update)
	if err != nil {
		return nil, err
	}
	e.logger.Info("transition applied",
		logging.Int64(logging.FieldArticleID, updated.ID),
		logging.String(logging.FieldTransition, string(transition)),
		logging.Int64(logging.FieldActorID, actor.ID),
		logging.String(logging.FieldActorRole, string(actor.Role)),
		logging.String("status", string(updated.Status)),
	)
	return updated, nil
}

func requireStatus(article *articles.Article, transition roles.Transition, sources ...articles.Status) error {
	for _, source := range sources {
		if article.Status == source {
			return nil
		}
	}
	return articles.NewInvalidTransition("cannot %s article %d while %s",
		transition, article.ID, article.Status)
}

func forbidden(actor articles.Actor, transition roles.Transition) error {
	return articles.NewForbidden("role %s may not %s", actor.Role, transition)
}
