package articles

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PreviewToken grants time-limited read access to an unpublished article
// without authentication.
type PreviewToken struct {
	ID        int64
	Token     string
	ArticleID int64
	VersionID *int64
	CreatedBy int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (p *PreviewToken) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// MintPreviewToken creates a share token for an article, pinned to its latest
// revision when one exists.
func (s *Store) MintPreviewToken(ctx context.Context, articleID, createdBy int64, ttl time.Duration) (*PreviewToken, error) {
	article, err := s.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, NewNotFound("article %d not found", articleID)
	}

	latest, err := s.LatestVersion(ctx, articleID)
	if err != nil {
		return nil, err
	}
	var versionID any
	if latest != nil {
		versionID = latest.ID
	}

	now := time.Now().UTC()
	token := &PreviewToken{
		Token:     uuid.NewString(),
		ArticleID: articleID,
		CreatedBy: createdBy,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if latest != nil {
		token.VersionID = &latest.ID
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO preview_tokens (token, article_id, version_id, created_by, created_at, expires_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		token.Token,
		articleID,
		versionID,
		createdBy,
		now.Format(time.RFC3339Nano),
		token.ExpiresAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, WrapStorage("insert preview token", err)
	}
	if token.ID, err = res.LastInsertId(); err != nil {
		return nil, WrapStorage("preview token id", err)
	}
	return token, nil
}

// ResolvePreviewToken returns the article a live token points at. Unknown and
// expired tokens both resolve to NotFound so callers cannot distinguish them.
func (s *Store) ResolvePreviewToken(ctx context.Context, token string, now time.Time) (*Article, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, token, article_id, version_id, created_by, created_at, expires_at
         FROM preview_tokens WHERE token = ?`,
		token,
	)

	var (
		preview    PreviewToken
		versionID  sql.NullInt64
		createdBy  sql.NullInt64
		createdRaw string
		expiresRaw string
	)
	err := row.Scan(&preview.ID, &preview.Token, &preview.ArticleID, &versionID, &createdBy, &createdRaw, &expiresRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFound("preview token not found")
	}
	if err != nil {
		return nil, WrapStorage("resolve preview token", err)
	}
	preview.CreatedBy = createdBy.Int64
	if versionID.Valid {
		preview.VersionID = &versionID.Int64
	}
	if expires, parseErr := parseTimeString(expiresRaw); parseErr == nil {
		preview.ExpiresAt = expires
	}

	if preview.Expired(now) {
		return nil, NewNotFound("preview token not found")
	}

	article, err := s.GetByID(ctx, preview.ArticleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, NewNotFound("preview token not found")
	}
	return article, nil
}

// PurgeExpiredPreviewTokens deletes tokens past their expiry and returns the
// number removed.
func (s *Store) PurgeExpiredPreviewTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM preview_tokens WHERE expires_at <= ?`,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, WrapStorage("purge preview tokens", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, WrapStorage("purge rows affected", err)
	}
	return removed, nil
}
