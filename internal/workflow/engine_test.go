package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"newsroom/internal/articles"
	"newsroom/internal/logging"
	"newsroom/internal/roles"
	"newsroom/internal/testsupport"
	"newsroom/internal/workflow"
)

func newEngine(t *testing.T) (*workflow.Engine, *articles.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return workflow.New(store, logging.NewNop()), store
}

func draft(t *testing.T, store *articles.Store, title string, authors ...int64) *articles.Article {
	t.Helper()
	createdBy := int64(0)
	if len(authors) > 0 {
		createdBy = authors[0]
	}
	article, err := store.CreateDraft(context.Background(), articles.DraftInput{
		Title:     title,
		BodyMD:    "body",
		Authors:   authors,
		CreatedBy: createdBy,
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	return article
}

func checkInvariants(t *testing.T, article *articles.Article) {
	t.Helper()
	scheduled := article.Status == articles.StatusScheduled
	if scheduled != (article.PublishAt != nil) {
		t.Fatalf("publish_at invariant violated: status=%s publish_at=%v", article.Status, article.PublishAt)
	}
	if article.Status == articles.StatusPublished && article.PublishedAt == nil {
		t.Fatalf("published article without published_at")
	}
}

func TestSubmitThenApprovePublishesImmediately(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	editor := articles.Actor{ID: 2, Role: roles.RoleEditor}

	article := draft(t, store, "City Hall Shakeup", 1)

	inReview, err := engine.Submit(ctx, writer, article.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if inReview.Status != articles.StatusInReview {
		t.Fatalf("expected IN_REVIEW, got %s", inReview.Status)
	}
	checkInvariants(t, inReview)

	published, err := engine.Approve(ctx, editor, article.ID, nil)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if published.Status != articles.StatusPublished {
		t.Fatalf("expected PUBLISHED, got %s", published.Status)
	}
	if published.PublishedAt == nil {
		t.Fatalf("expected published_at to be set")
	}
	checkInvariants(t, published)

	versions, err := store.Versions(ctx, article.ID)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	// MANUAL at creation, SUBMIT, APPROVE.
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	if versions[0].Kind != articles.VersionApprove || versions[1].Kind != articles.VersionSubmit {
		t.Fatalf("unexpected version kinds: %s, %s", versions[0].Kind, versions[1].Kind)
	}
}

func TestApproveWithFuturePublishAtSchedules(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	editor := articles.Actor{ID: 2, Role: roles.RoleEditor}

	article := draft(t, store, "Weekend Feature", 1)
	if _, err := engine.Submit(ctx, writer, article.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	future := time.Now().Add(2 * time.Hour)
	scheduled, err := engine.Approve(ctx, editor, article.ID, &future)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if scheduled.Status != articles.StatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", scheduled.Status)
	}
	if scheduled.PublishAt == nil {
		t.Fatalf("expected publish_at to be set")
	}
	if scheduled.PublishedAt != nil {
		t.Fatalf("scheduling must not set published_at")
	}
	checkInvariants(t, scheduled)
}

func TestApproveRejectsPastPublishAt(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	editor := articles.Actor{ID: 2, Role: roles.RoleEditor}

	article := draft(t, store, "Stale Schedule", 1)
	if _, err := engine.Submit(ctx, writer, article.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	_, err := engine.Approve(ctx, editor, article.ID, &past)
	if !articles.IsKind(err, articles.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWriterCannotApprove(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}

	article := draft(t, store, "Ambitious Writer", 1)
	if _, err := engine.Submit(ctx, writer, article.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	_, err := engine.Approve(ctx, writer, article.ID, nil)
	if !articles.IsKind(err, articles.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestWriterCannotSubmitOthersDraft(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	article := draft(t, store, "Not Yours", 1)

	other := articles.Actor{ID: 99, Role: roles.RoleWriter}
	_, err := engine.Submit(ctx, other, article.ID)
	if !articles.IsKind(err, articles.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	editor := articles.Actor{ID: 2, Role: roles.RoleEditor}
	if _, err := engine.Submit(ctx, editor, article.ID); err != nil {
		t.Fatalf("editor submit failed: %v", err)
	}
}

func TestSubmitRequiresAuthors(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	article := draft(t, store, "Orphan Draft")

	editor := articles.Actor{ID: 2, Role: roles.RoleEditor}
	_, err := engine.Submit(ctx, editor, article.ID)
	if !articles.IsKind(err, articles.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	reloaded, err := store.GetByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Status != articles.StatusDraft {
		t.Fatalf("rejected submit must leave status DRAFT, got %s", reloaded.Status)
	}
}

func TestCreatorSubmitHitsAuthorsGuardNotOwnership(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	// The creating writer owns the draft even before any authors are set, so
	// their submit reaches the authors guard instead of being rejected as
	// someone else's article.
	article, err := store.CreateDraft(ctx, articles.DraftInput{
		Title:     "Unbylined Draft",
		BodyMD:    "body",
		CreatedBy: 7,
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}

	creator := articles.Actor{ID: 7, Role: roles.RoleWriter}
	if _, err := engine.Submit(ctx, creator, article.ID); !articles.IsKind(err, articles.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatorSubmitsGhostwrittenDraft(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	// created_by and the author list name different users; the creator still
	// owns the draft for submit and revert.
	article, err := store.CreateDraft(ctx, articles.DraftInput{
		Title:     "Ghostwritten Piece",
		BodyMD:    "body",
		Authors:   []int64{42},
		CreatedBy: 7,
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}

	creator := articles.Actor{ID: 7, Role: roles.RoleWriter}
	inReview, err := engine.Submit(ctx, creator, article.ID)
	if err != nil {
		t.Fatalf("creator submit failed: %v", err)
	}
	if inReview.Status != articles.StatusInReview {
		t.Fatalf("expected IN_REVIEW, got %s", inReview.Status)
	}

	reverted, err := engine.RevertToDraft(ctx, creator, article.ID)
	if err != nil {
		t.Fatalf("creator revert failed: %v", err)
	}
	if reverted.Status != articles.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", reverted.Status)
	}
}

func TestPreconditionOrderStatusBeforeRole(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	// A reader approving a DRAFT article hits the status check first, so the
	// error is InvalidTransition rather than Forbidden.
	article := draft(t, store, "Ordering", 1)

	reader := articles.Actor{ID: 3, Role: roles.RoleReader}
	_, err := engine.Approve(ctx, reader, article.ID, nil)
	if !articles.IsKind(err, articles.KindInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestTransitionOnMissingArticle(t *testing.T) {
	engine, _ := newEngine(t)

	publisher := articles.Actor{ID: 4, Role: roles.RolePublisher}
	_, err := engine.PublishNow(context.Background(), publisher, 12345)
	if !articles.IsKind(err, articles.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPublishNowFromDraftIsPublisherOverride(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	article := draft(t, store, "Breaking News", 1)

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	if _, err := engine.PublishNow(ctx, writer, article.ID); !articles.IsKind(err, articles.KindForbidden) {
		t.Fatalf("writer publish_now should be forbidden, got %v", err)
	}

	publisher := articles.Actor{ID: 4, Role: roles.RolePublisher}
	published, err := engine.PublishNow(ctx, publisher, article.ID)
	if err != nil {
		t.Fatalf("PublishNow failed: %v", err)
	}
	if published.Status != articles.StatusPublished || published.PublishedAt == nil {
		t.Fatalf("unexpected article state: %+v", published)
	}
	checkInvariants(t, published)
}

func TestArchivePreservesPublishedAt(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	article := draft(t, store, "Yesterday's News", 1)
	publisher := articles.Actor{ID: 4, Role: roles.RolePublisher}

	published, err := engine.PublishNow(ctx, publisher, article.ID)
	if err != nil {
		t.Fatalf("PublishNow failed: %v", err)
	}

	archived, err := engine.Archive(ctx, publisher, article.ID)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if archived.Status != articles.StatusArchived {
		t.Fatalf("expected ARCHIVED, got %s", archived.Status)
	}
	if archived.PublishedAt == nil || !archived.PublishedAt.Equal(*published.PublishedAt) {
		t.Fatalf("archive must not clear published_at: %v", archived.PublishedAt)
	}
	checkInvariants(t, archived)
}

func TestRevertAllowsOriginalWriter(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	article := draft(t, store, "Second Thoughts", 1)
	if _, err := engine.Submit(ctx, writer, article.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	other := articles.Actor{ID: 99, Role: roles.RoleWriter}
	if _, err := engine.RevertToDraft(ctx, other, article.ID); !articles.IsKind(err, articles.KindForbidden) {
		t.Fatalf("unrelated writer revert should be forbidden, got %v", err)
	}

	reverted, err := engine.RevertToDraft(ctx, writer, article.ID)
	if err != nil {
		t.Fatalf("RevertToDraft failed: %v", err)
	}
	if reverted.Status != articles.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", reverted.Status)
	}
	checkInvariants(t, reverted)
}

func TestScheduleRetimesRelease(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	editor := articles.Actor{ID: 2, Role: roles.RoleEditor}
	publisher := articles.Actor{ID: 4, Role: roles.RolePublisher}

	article := draft(t, store, "Holiday Special", 1)
	if _, err := engine.Submit(ctx, writer, article.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	first := time.Now().Add(time.Hour)
	if _, err := engine.Approve(ctx, editor, article.ID, &first); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	second := time.Now().Add(48 * time.Hour)
	rescheduled, err := engine.Schedule(ctx, publisher, article.ID, second)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if rescheduled.PublishAt == nil || rescheduled.PublishAt.Sub(second.UTC()).Abs() > time.Second {
		t.Fatalf("publish_at not retimed: %v", rescheduled.PublishAt)
	}
	checkInvariants(t, rescheduled)

	if _, err := engine.Schedule(ctx, editor, article.ID, second); !articles.IsKind(err, articles.KindForbidden) {
		t.Fatalf("editor schedule should be forbidden, got %v", err)
	}
}

func TestUnarchiveReentersDraft(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	publisher := articles.Actor{ID: 4, Role: roles.RolePublisher}
	article := draft(t, store, "Back From the Dead", 1)

	if _, err := engine.PublishNow(ctx, publisher, article.ID); err != nil {
		t.Fatalf("PublishNow failed: %v", err)
	}
	if _, err := engine.Archive(ctx, publisher, article.ID); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	restored, err := engine.Unarchive(ctx, publisher, article.ID)
	if err != nil {
		t.Fatalf("Unarchive failed: %v", err)
	}
	if restored.Status != articles.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", restored.Status)
	}
	if restored.PublishedAt == nil {
		t.Fatalf("unarchive must keep published_at")
	}
}

func TestRepeatedTransitionRejectedOnce(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	article := draft(t, store, "Twice Submitted", 1)

	if _, err := engine.Submit(ctx, writer, article.ID); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	_, err := engine.Submit(ctx, writer, article.ID)
	if !articles.IsKind(err, articles.KindInvalidTransition) {
		t.Fatalf("second submit must be InvalidTransition, got %v", err)
	}
}

func TestConcurrentPublishNowHasOneWinner(t *testing.T) {
	engine, store := newEngine(t)
	ctx := context.Background()

	writer := articles.Actor{ID: 1, Role: roles.RoleWriter}
	editor := articles.Actor{ID: 2, Role: roles.RoleEditor}
	article := draft(t, store, "Contested Scoop", 1)

	if _, err := engine.Submit(ctx, writer, article.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if _, err := engine.Approve(ctx, editor, article.ID, &future); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	actors := []articles.Actor{
		{ID: 4, Role: roles.RolePublisher},
		articles.SystemActor(),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(actors))
	for i, actor := range actors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = engine.PublishNow(ctx, actor, article.ID)
		}()
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case articles.IsKind(err, articles.KindInvalidTransition):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected one winner and one conflict, got %d/%d", successes, conflicts)
	}

	versions, err := store.Versions(ctx, article.ID)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	var publishSnapshots int
	for _, version := range versions {
		if version.Kind == articles.VersionPublish {
			publishSnapshots++
		}
	}
	if publishSnapshots != 1 {
		t.Fatalf("expected exactly one publish snapshot, got %d", publishSnapshots)
	}
}
