package articles

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TransitionUpdate describes an atomic status change. The update only applies
// while the row still carries ExpectedStatus; the revision snapshot is written
// in the same transaction, so both land or neither does.
type TransitionUpdate struct {
	ArticleID      int64
	ExpectedStatus Status
	NewStatus      Status

	// PublishAt replaces the stored publish_at (nil clears it).
	PublishAt *time.Time
	// SetPublishedAt records the first-publish instant. It is applied with
	// COALESCE so an earlier published_at is never overwritten.
	SetPublishedAt *time.Time

	Kind    VersionKind
	ActorID int64
}

// ApplyTransition performs the compare-and-swap status update and records the
// revision snapshot. Returns the updated article on success.
//
// A transaction that loses a lock race is retried whole, so the re-read sees
// the winner's status and the caller gets InvalidTransition rather than a
// busy error.
func (s *Store) ApplyTransition(ctx context.Context, update TransitionUpdate) (*Article, error) {
	var updated *Article
	if err := retryOnBusy(ctx, func() error {
		var err error
		updated, err = s.applyTransitionTx(ctx, update)
		return err
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) applyTransitionTx(ctx context.Context, update TransitionUpdate) (*Article, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, WrapStorage("begin transition tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, update.ArticleID)
	current, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("article %d not found", update.ArticleID)
	}
	if err != nil {
		return nil, WrapStorage("load article for transition", err)
	}
	if current.Status != update.ExpectedStatus {
		return nil, NewInvalidTransition("article %d is %s, expected %s",
			update.ArticleID, current.Status, update.ExpectedStatus)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var publishAt any
	if update.PublishAt != nil {
		publishAt = update.PublishAt.UTC().Format(time.RFC3339Nano)
	}
	var publishedAt any
	if update.SetPublishedAt != nil {
		publishedAt = update.SetPublishedAt.UTC().Format(time.RFC3339Nano)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE articles
         SET status = ?, publish_at = ?, published_at = COALESCE(published_at, ?), updated_at = ?
         WHERE id = ? AND status = ?`,
		update.NewStatus,
		publishAt,
		publishedAt,
		timestamp,
		update.ArticleID,
		update.ExpectedStatus,
	)
	if err != nil {
		return nil, WrapStorage("apply transition", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, WrapStorage("transition rows affected", err)
	}
	if affected != 1 {
		// Lost the race to a concurrent transition.
		return nil, NewInvalidTransition("article %d no longer in %s", update.ArticleID, update.ExpectedStatus)
	}

	authorsJSON, err := encodeAuthors(current.Authors)
	if err != nil {
		return nil, WrapStorage("encode authors", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO article_versions (
            article_id, kind, title, slug, dek, body_md, hero_image,
            authors_json, actor_id, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		update.ArticleID,
		update.Kind,
		current.Title,
		current.Slug,
		nullableString(current.Dek),
		nullableString(current.BodyMD),
		nullableString(current.HeroImage),
		nullableString(authorsJSON),
		update.ActorID,
		timestamp,
	); err != nil {
		return nil, WrapStorage("record revision snapshot", err)
	}

	row = tx.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, update.ArticleID)
	updated, err := scanArticle(row)
	if err != nil {
		return nil, WrapStorage("reload article after transition", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, WrapStorage("commit transition", err)
	}
	return updated, nil
}

const versionColumns = "id, article_id, kind, title, slug, dek, body_md, hero_image, authors_json, actor_id, created_at"

// Versions returns an article's revision history, newest first.
func (s *Store) Versions(ctx context.Context, articleID int64) ([]*Version, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+versionColumns+` FROM article_versions
         WHERE article_id = ? ORDER BY created_at DESC, id DESC`,
		articleID,
	)
	if err != nil {
		return nil, WrapStorage("list versions", err)
	}
	defer rows.Close()

	var versions []*Version
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, WrapStorage("scan version", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapStorage("iterate versions", err)
	}
	return versions, nil
}

// LatestVersion returns the most recent revision of an article, or nil when
// none exists.
func (s *Store) LatestVersion(ctx context.Context, articleID int64) (*Version, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+versionColumns+` FROM article_versions
         WHERE article_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		articleID,
	)
	version, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapStorage("latest version", err)
	}
	return version, nil
}

func scanVersion(scanner interface{ Scan(dest ...any) error }) (*Version, error) {
	var (
		id         int64
		articleID  int64
		kind       string
		title      string
		slug       string
		dek        sql.NullString
		bodyMD     sql.NullString
		heroImage  sql.NullString
		authorsRaw sql.NullString
		actorID    sql.NullInt64
		createdRaw string
	)

	if err := scanner.Scan(
		&id,
		&articleID,
		&kind,
		&title,
		&slug,
		&dek,
		&bodyMD,
		&heroImage,
		&authorsRaw,
		&actorID,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	version := &Version{
		ID:        id,
		ArticleID: articleID,
		Kind:      VersionKind(kind),
		Title:     title,
		Slug:      slug,
		Dek:       dek.String,
		BodyMD:    bodyMD.String,
		HeroImage: heroImage.String,
		Authors:   decodeAuthors(authorsRaw.String),
		ActorID:   actorID.Int64,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		version.CreatedAt = created
	}
	return version, nil
}
