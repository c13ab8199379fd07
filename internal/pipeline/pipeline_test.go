package pipeline_test

import (
	"context"
	"testing"
	"time"

	"newsroom/internal/articles"
	"newsroom/internal/logging"
	"newsroom/internal/pipeline"
	"newsroom/internal/roles"
	"newsroom/internal/testsupport"
	"newsroom/internal/workflow"
)

// seedNewsroom populates one article per pipeline bucket. Author 1 is the
// writer whose drafts should appear in my_drafts.
func seedNewsroom(t *testing.T, store *articles.Store, engine *workflow.Engine) {
	t.Helper()
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	editor := articles.Actor{ID: 2, Role: roles.RoleEditor}
	publisher := articles.Actor{ID: 4, Role: roles.RolePublisher}

	create := func(title string, author int64) *articles.Article {
		article, err := store.CreateDraft(ctx, articles.DraftInput{
			Title:     title,
			Authors:   []int64{author},
			CreatedBy: author,
		})
		if err != nil {
			t.Fatalf("CreateDraft %q: %v", title, err)
		}
		return article
	}

	// my_drafts: stays in DRAFT, authored by 1.
	create("My Draft", 1)

	// Someone else's draft, must not appear for author 1.
	create("Other Draft", 9)

	// awaiting_review.
	inReview := create("In Review", 1)
	if _, err := engine.Submit(ctx, writer, inReview.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// scheduled: future publish_at.
	scheduled := create("Scheduled", 1)
	if _, err := engine.Submit(ctx, writer, scheduled.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	future := time.Now().Add(3 * time.Hour)
	if _, err := engine.Approve(ctx, editor, scheduled.ID, &future); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// approved: SCHEDULED whose publish_at has already passed. Scheduled
	// through the engine with a near-future instant, then waited out.
	approved := create("Approved", 1)
	if _, err := engine.Submit(ctx, writer, approved.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	soon := time.Now().Add(50 * time.Millisecond)
	if _, err := engine.Approve(ctx, editor, approved.ID, &soon); err != nil {
		t.Fatalf("approve: %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	// recently_published.
	published := create("Published", 1)
	if _, err := engine.PublishNow(ctx, publisher, published.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func titles(bucket []*articles.Article) []string {
	out := make([]string, 0, len(bucket))
	for _, article := range bucket {
		out = append(out, article.Title)
	}
	return out
}

func TestPublisherSeesAllBuckets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := workflow.New(store, logging.NewNop())
	seedNewsroom(t, store, engine)

	aggregator := pipeline.New(store, logging.NewNop(), 7)
	view := aggregator.Build(context.Background(), articles.Actor{ID: 1, Role: roles.RolePublisher})

	if got := titles(view.MyDrafts); len(got) != 1 || got[0] != "My Draft" {
		t.Fatalf("my_drafts = %v", got)
	}
	if got := titles(view.AwaitingReview); len(got) != 1 || got[0] != "In Review" {
		t.Fatalf("awaiting_review = %v", got)
	}
	if got := titles(view.Approved); len(got) != 1 || got[0] != "Approved" {
		t.Fatalf("approved = %v", got)
	}
	if got := titles(view.Scheduled); len(got) != 1 || got[0] != "Scheduled" {
		t.Fatalf("scheduled = %v", got)
	}
	if got := titles(view.RecentlyPublished); len(got) != 1 || got[0] != "Published" {
		t.Fatalf("recently_published = %v", got)
	}
}

func TestWriterBucketsAreRoleScoped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := workflow.New(store, logging.NewNop())
	seedNewsroom(t, store, engine)

	aggregator := pipeline.New(store, logging.NewNop(), 7)
	view := aggregator.Build(context.Background(), articles.Actor{ID: 1, Role: roles.RoleWriter})

	if len(view.AwaitingReview) != 0 {
		t.Fatalf("writer must not see awaiting_review: %v", titles(view.AwaitingReview))
	}
	if len(view.Approved) != 0 || len(view.Scheduled) != 0 {
		t.Fatalf("writer must not see scheduled buckets")
	}
	if got := titles(view.MyDrafts); len(got) != 1 || got[0] != "My Draft" {
		t.Fatalf("my_drafts = %v", got)
	}
	if len(view.RecentlyPublished) != 1 {
		t.Fatalf("recently_published visible to all roles, got %v", titles(view.RecentlyPublished))
	}
}

func TestEditorSeesReviewQueueOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := workflow.New(store, logging.NewNop())
	seedNewsroom(t, store, engine)

	aggregator := pipeline.New(store, logging.NewNop(), 7)
	view := aggregator.Build(context.Background(), articles.Actor{ID: 2, Role: roles.RoleEditor})

	if len(view.AwaitingReview) != 1 {
		t.Fatalf("editor must see awaiting_review")
	}
	if len(view.Approved) != 0 || len(view.Scheduled) != 0 {
		t.Fatalf("editor must not see publisher buckets")
	}
}

func TestRecentWindowExcludesOldPublishes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	article, err := store.CreateDraft(ctx, articles.DraftInput{
		Title:     "Old News",
		Authors:   []int64{1},
		CreatedBy: 1,
	})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if _, err := store.ApplyTransition(ctx, articles.TransitionUpdate{
		ArticleID:      article.ID,
		ExpectedStatus: articles.StatusDraft,
		NewStatus:      articles.StatusPublished,
		SetPublishedAt: &old,
		Kind:           articles.VersionPublish,
		ActorID:        1,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	aggregator := pipeline.New(store, logging.NewNop(), 7)
	view := aggregator.Build(ctx, articles.Actor{ID: 1, Role: roles.RolePublisher})
	if len(view.RecentlyPublished) != 0 {
		t.Fatalf("article published 30 days ago must not be recent")
	}
}
