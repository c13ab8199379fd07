package api_test

import (
	"testing"
	"time"

	"newsroom/internal/api"
	"newsroom/internal/articles"
	"newsroom/internal/pipeline"
)

func TestFromArticleFormatsTimestamps(t *testing.T) {
	publishAt := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
	record := &articles.Article{
		ID:        42,
		Slug:      "city-budget",
		Title:     "City Budget",
		Status:    articles.StatusScheduled,
		PublishAt: &publishAt,
		Authors:   []int64{7, 8},
		CreatedBy: 7,
		CreatedAt: time.Date(2026, time.February, 20, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, time.February, 21, 12, 0, 0, 0, time.UTC),
	}

	dto := api.FromArticle(record)
	if dto.Status != "SCHEDULED" {
		t.Fatalf("unexpected status %q", dto.Status)
	}
	if dto.PublishAt != "2026-03-01T09:30:00.000Z" {
		t.Fatalf("unexpected publishAt %q", dto.PublishAt)
	}
	if dto.PublishedAt != "" {
		t.Fatalf("publishedAt should be empty, got %q", dto.PublishedAt)
	}
	if len(dto.Authors) != 2 {
		t.Fatalf("authors not carried over")
	}
}

func TestFromArticleNil(t *testing.T) {
	dto := api.FromArticle(nil)
	if dto.ID != 0 || dto.Status != "" {
		t.Fatalf("nil article should convert to zero DTO: %+v", dto)
	}
}

func TestFromArticlesNeverNil(t *testing.T) {
	if out := api.FromArticles(nil); out == nil {
		t.Fatalf("FromArticles must return an empty slice, not nil")
	}
}

func TestFromPipelineViewNil(t *testing.T) {
	dto := api.FromPipelineView(nil)
	if dto.MyDrafts == nil || dto.RecentlyPublished == nil {
		t.Fatalf("nil view must convert to empty buckets")
	}
}

func TestFromPipelineViewCarriesBuckets(t *testing.T) {
	view := &pipeline.View{
		MyDrafts: []*articles.Article{{ID: 1, Title: "Draft", Status: articles.StatusDraft}},
	}
	dto := api.FromPipelineView(view)
	if len(dto.MyDrafts) != 1 || dto.MyDrafts[0].ID != 1 {
		t.Fatalf("my_drafts bucket not converted: %+v", dto.MyDrafts)
	}
	if dto.AwaitingReview == nil {
		t.Fatalf("empty buckets must encode as [], not null")
	}
}
