package api

import (
	"newsroom/internal/articles"
	"newsroom/internal/pipeline"
)

// FromArticle converts an article record to its API representation.
func FromArticle(article *articles.Article) Article {
	if article == nil {
		return Article{}
	}

	dto := Article{
		ID:        article.ID,
		Slug:      article.Slug,
		Title:     article.Title,
		Dek:       article.Dek,
		BodyMD:    article.BodyMD,
		HeroImage: article.HeroImage,
		Status:    string(article.Status),
		Authors:   article.Authors,
		CreatedBy: article.CreatedBy,
	}
	if article.PublishAt != nil {
		dto.PublishAt = article.PublishAt.UTC().Format(dateTimeFormat)
	}
	if article.PublishedAt != nil {
		dto.PublishedAt = article.PublishedAt.UTC().Format(dateTimeFormat)
	}
	if !article.CreatedAt.IsZero() {
		dto.CreatedAt = article.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !article.UpdatedAt.IsZero() {
		dto.UpdatedAt = article.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromArticles converts a slice of article records into API DTOs. The result
// is never nil so list payloads encode as [] rather than null.
func FromArticles(records []*articles.Article) []Article {
	out := make([]Article, 0, len(records))
	for _, record := range records {
		out = append(out, FromArticle(record))
	}
	return out
}

// FromVersion converts a revision snapshot to its API representation.
func FromVersion(version *articles.Version) Version {
	if version == nil {
		return Version{}
	}

	dto := Version{
		ID:        version.ID,
		ArticleID: version.ArticleID,
		Kind:      string(version.Kind),
		Title:     version.Title,
		Slug:      version.Slug,
		Dek:       version.Dek,
		BodyMD:    version.BodyMD,
		HeroImage: version.HeroImage,
		Authors:   version.Authors,
		ActorID:   version.ActorID,
	}
	if !version.CreatedAt.IsZero() {
		dto.CreatedAt = version.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromVersions converts a slice of revision snapshots into API DTOs.
func FromVersions(records []*articles.Version) []Version {
	out := make([]Version, 0, len(records))
	for _, record := range records {
		out = append(out, FromVersion(record))
	}
	return out
}

// FromPipelineView converts the aggregator's view into its API payload.
func FromPipelineView(view *pipeline.View) Pipeline {
	if view == nil {
		return Pipeline{
			MyDrafts:          []Article{},
			AwaitingReview:    []Article{},
			Approved:          []Article{},
			Scheduled:         []Article{},
			RecentlyPublished: []Article{},
		}
	}
	return Pipeline{
		MyDrafts:          FromArticles(view.MyDrafts),
		AwaitingReview:    FromArticles(view.AwaitingReview),
		Approved:          FromArticles(view.Approved),
		Scheduled:         FromArticles(view.Scheduled),
		RecentlyPublished: FromArticles(view.RecentlyPublished),
	}
}

// FromStatusCounts converts store health counts into the API payload.
func FromStatusCounts(counts articles.StatusCounts) StatusCounts {
	return StatusCounts{
		Total:     counts.Total,
		Draft:     counts.Draft,
		InReview:  counts.InReview,
		Scheduled: counts.Scheduled,
		Published: counts.Published,
		Archived:  counts.Archived,
	}
}
