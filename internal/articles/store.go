package articles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"newsroom/internal/config"
)

// Store manages article persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	maxSlugAttempts = 50
)

// Open initializes or connects to the article database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "newsroom.db")

	// Pragmas ride the DSN so every pooled connection gets them, not just the
	// one a plain Exec would land on. _txlock=immediate makes transactions
	// take the write lock at BEGIN, so lock contention waits out busy_timeout
	// instead of failing on a mid-transaction lock upgrade.
	dsn := "file:" + dbPath + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// DraftInput carries the fields for creating a new draft article.
type DraftInput struct {
	Title     string
	Slug      string
	Dek       string
	BodyMD    string
	HeroImage string
	Authors   []int64
	CreatedBy int64
}

// CreateDraft inserts a new DRAFT article with a unique slug and records the
// initial MANUAL revision in the same transaction.
func (s *Store) CreateDraft(ctx context.Context, input DraftInput) (*Article, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, NewValidation("title is required")
	}

	base := strings.TrimSpace(input.Slug)
	if base == "" {
		base = Slugify(title)
	} else {
		base = Slugify(base)
	}
	if base == "" {
		return nil, NewValidation("cannot derive a slug from title %q", title)
	}
	if IsReservedSlug(base) {
		return nil, NewValidation("slug %q is reserved", base)
	}

	authorsJSON, err := encodeAuthors(input.Authors)
	if err != nil {
		return nil, WrapStorage("encode authors", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	slug := base
	for attempt := 2; ; attempt++ {
		id, insertErr := s.insertDraft(ctx, slug, title, input, authorsJSON, timestamp)
		if insertErr == nil {
			return s.GetByID(ctx, id)
		}
		if !isUniqueViolation(insertErr) {
			return nil, insertErr
		}
		if attempt > maxSlugAttempts {
			return nil, NewValidation("could not find a free slug for %q", base)
		}
		slug = fmt.Sprintf("%s-%d", base, attempt)
	}
}

func (s *Store) insertDraft(ctx context.Context, slug, title string, input DraftInput, authorsJSON, timestamp string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, WrapStorage("begin draft tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO articles (
            slug, title, dek, body_md, hero_image, status, authors_json,
            created_by, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		slug,
		title,
		nullableString(input.Dek),
		nullableString(input.BodyMD),
		nullableString(input.HeroImage),
		StatusDraft,
		nullableString(authorsJSON),
		input.CreatedBy,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, err
		}
		return 0, WrapStorage("insert draft", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, WrapStorage("last insert id", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO article_versions (
            article_id, kind, title, slug, dek, body_md, hero_image,
            authors_json, actor_id, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		VersionManual,
		title,
		slug,
		nullableString(input.Dek),
		nullableString(input.BodyMD),
		nullableString(input.HeroImage),
		nullableString(authorsJSON),
		input.CreatedBy,
		timestamp,
	); err != nil {
		return 0, WrapStorage("insert initial version", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, WrapStorage("commit draft", err)
	}
	return id, nil
}

// GetByID fetches an article by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapStorage("get article", err)
	}
	return article, nil
}

// GetBySlug fetches an article by slug. Returns nil when absent.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapStorage("get article by slug", err)
	}
	return article, nil
}

// ContentUpdate carries editable content fields. Nil pointers leave the
// corresponding field untouched.
type ContentUpdate struct {
	Title     *string
	Slug      *string
	Dek       *string
	BodyMD    *string
	HeroImage *string
	Authors   *[]int64
}

// UpdateContent edits an article's content fields without touching its
// workflow status. The slug is frozen once the article has ever been
// published; content edits refresh updated_at.
func (s *Store) UpdateContent(ctx context.Context, id int64, update ContentUpdate) (*Article, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, NewNotFound("article %d not found", id)
	}

	set := map[string]any{
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, NewValidation("title cannot be empty")
		}
		set["title"] = title
	}
	if update.Slug != nil {
		slug := Slugify(*update.Slug)
		if slug == "" {
			return nil, NewValidation("slug cannot be empty")
		}
		if IsReservedSlug(slug) {
			return nil, NewValidation("slug %q is reserved", slug)
		}
		if current.EverPublished() && slug != current.Slug {
			return nil, NewValidation("slug is frozen after first publish")
		}
		set["slug"] = slug
	}
	if update.Dek != nil {
		set["dek"] = nullableString(*update.Dek)
	}
	if update.BodyMD != nil {
		set["body_md"] = nullableString(*update.BodyMD)
	}
	if update.HeroImage != nil {
		set["hero_image"] = nullableString(*update.HeroImage)
	}
	if update.Authors != nil {
		authorsJSON, err := encodeAuthors(*update.Authors)
		if err != nil {
			return nil, WrapStorage("encode authors", err)
		}
		set["authors_json"] = nullableString(authorsJSON)
	}

	query, args, err := builder.Update("articles").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, WrapStorage("build content update", err)
	}
	if _, err := s.execWithRetry(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, NewValidation("slug already in use")
		}
		return nil, WrapStorage("update content", err)
	}
	return s.GetByID(ctx, id)
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Statuses        []Status
	CreatedBy       int64
	PublishAtDueBy  *time.Time // publish_at <= value
	PublishAtAfter  *time.Time // publish_at > value
	PublishedSince  *time.Time // published_at >= value
	OrderByUpdated  bool       // updated_at DESC instead of created_at ASC
	Limit           uint64
}

// List returns articles matching the filter.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Article, error) {
	b := builder.Select(articleColumnList...).From("articles")

	if len(filter.Statuses) > 0 {
		b = b.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.CreatedBy != 0 {
		b = b.Where(sq.Eq{"created_by": filter.CreatedBy})
	}
	if filter.PublishAtDueBy != nil {
		b = b.Where(sq.LtOrEq{"publish_at": filter.PublishAtDueBy.UTC().Format(time.RFC3339Nano)})
	}
	if filter.PublishAtAfter != nil {
		b = b.Where(sq.Gt{"publish_at": filter.PublishAtAfter.UTC().Format(time.RFC3339Nano)})
	}
	if filter.PublishedSince != nil {
		b = b.Where(sq.GtOrEq{"published_at": filter.PublishedSince.UTC().Format(time.RFC3339Nano)})
	}
	if filter.OrderByUpdated {
		b = b.OrderBy("updated_at DESC", "id DESC")
	} else {
		b = b.OrderBy("created_at", "id")
	}
	if filter.Limit > 0 {
		b = b.Limit(filter.Limit)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, WrapStorage("build list query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, WrapStorage("list articles", err)
	}
	defer rows.Close()

	var result []*Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, WrapStorage("scan article", err)
		}
		result = append(result, article)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapStorage("iterate articles", err)
	}
	return result, nil
}

// DueScheduled returns SCHEDULED articles whose publish instant has elapsed,
// oldest due first.
func (s *Store) DueScheduled(ctx context.Context, now time.Time) ([]*Article, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+articleColumns+` FROM articles
         WHERE status = ? AND publish_at IS NOT NULL AND publish_at <= ?
         ORDER BY publish_at, id`,
		StatusScheduled,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, WrapStorage("query due scheduled", err)
	}
	defer rows.Close()

	var due []*Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, WrapStorage("scan due article", err)
		}
		due = append(due, article)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapStorage("iterate due articles", err)
	}
	return due, nil
}

// Stats returns a count of articles grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM articles GROUP BY status`)
	if err != nil {
		return nil, WrapStorage("article stats", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, WrapStorage("scan stats", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, WrapStorage("iterate stats", err)
	}
	return stats, nil
}

// Health aggregates article counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (StatusCounts, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return StatusCounts{}, err
	}
	counts := StatusCounts{}
	for status, count := range stats {
		counts.Total += count
		switch status {
		case StatusDraft:
			counts.Draft += count
		case StatusInReview:
			counts.InReview += count
		case StatusScheduled:
			counts.Scheduled += count
		case StatusPublished:
			counts.Published += count
		case StatusArchived:
			counts.Archived += count
		}
	}
	return counts, nil
}

const articleColumns = "id, slug, title, dek, body_md, hero_image, status, authors_json, created_by, publish_at, published_at, created_at, updated_at"

var articleColumnList = strings.Split(articleColumns, ", ")

func scanArticle(scanner interface{ Scan(dest ...any) error }) (*Article, error) {
	var (
		id           int64
		slug         string
		title        string
		dek          sql.NullString
		bodyMD       sql.NullString
		heroImage    sql.NullString
		statusStr    string
		authorsRaw   sql.NullString
		createdBy    int64
		publishRaw   sql.NullString
		publishedRaw sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&slug,
		&title,
		&dek,
		&bodyMD,
		&heroImage,
		&statusStr,
		&authorsRaw,
		&createdBy,
		&publishRaw,
		&publishedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	article := &Article{
		ID:        id,
		Slug:      slug,
		Title:     title,
		Dek:       dek.String,
		BodyMD:    bodyMD.String,
		HeroImage: heroImage.String,
		Status:    Status(statusStr),
		CreatedBy: createdBy,
	}
	article.Authors = decodeAuthors(authorsRaw.String)

	if created, err := parseTimeString(createdRaw); err == nil {
		article.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		article.UpdatedAt = updated
	}
	if publishRaw.Valid {
		if at, err := parseTimeString(publishRaw.String); err == nil {
			article.PublishAt = &at
		}
	}
	if publishedRaw.Valid {
		if at, err := parseTimeString(publishedRaw.String); err == nil {
			article.PublishedAt = &at
		}
	}
	return article, nil
}

func encodeAuthors(authors []int64) (string, error) {
	if len(authors) == 0 {
		return "", nil
	}
	data, err := json.Marshal(authors)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeAuthors(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var authors []int64
	if err := json.Unmarshal([]byte(raw), &authors); err != nil {
		return nil
	}
	return authors
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
