package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Article describes an article in a transport-friendly format.
type Article struct {
	ID          int64   `json:"id"`
	Slug        string  `json:"slug"`
	Title       string  `json:"title"`
	Dek         string  `json:"dek,omitempty"`
	BodyMD      string  `json:"bodyMarkdown,omitempty"`
	HeroImage   string  `json:"heroImage,omitempty"`
	Status      string  `json:"status"`
	PublishAt   string  `json:"publishAt,omitempty"`
	PublishedAt string  `json:"publishedAt,omitempty"`
	Authors     []int64 `json:"authors,omitempty"`
	CreatedBy   int64   `json:"createdBy"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// Version describes a revision snapshot.
type Version struct {
	ID        int64   `json:"id"`
	ArticleID int64   `json:"articleId"`
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	Slug      string  `json:"slug"`
	Dek       string  `json:"dek,omitempty"`
	BodyMD    string  `json:"bodyMarkdown,omitempty"`
	HeroImage string  `json:"heroImage,omitempty"`
	Authors   []int64 `json:"authors,omitempty"`
	ActorID   int64   `json:"actorId"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// Pipeline is the five-bucket dashboard payload.
type Pipeline struct {
	MyDrafts          []Article `json:"myDrafts"`
	AwaitingReview    []Article `json:"awaitingReview"`
	Approved          []Article `json:"approved"`
	Scheduled         []Article `json:"scheduled"`
	RecentlyPublished []Article `json:"recentlyPublished"`
}

// StatusCounts aggregates article counts per lifecycle state.
type StatusCounts struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	InReview  int `json:"inReview"`
	Scheduled int `json:"scheduled"`
	Published int `json:"published"`
	Archived  int `json:"archived"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool         `json:"running"`
	PID            int          `json:"pid"`
	DBPath         string       `json:"dbPath"`
	LockFilePath   string       `json:"lockFilePath"`
	SweeperRunning bool         `json:"sweeperRunning"`
	LastSweep      string       `json:"lastSweep,omitempty"`
	LastSweepError string       `json:"lastSweepError,omitempty"`
	Articles       StatusCounts `json:"articles"`
}

// ArticleResponse wraps a single article payload.
type ArticleResponse struct {
	Article Article `json:"article"`
}

// ArticleListResponse wraps a collection of articles.
type ArticleListResponse struct {
	Articles []Article `json:"articles"`
}

// VersionListResponse wraps an article's revision history.
type VersionListResponse struct {
	Versions []Version `json:"versions"`
}

// SweepResponse reports the outcome of a manually triggered sweep.
type SweepResponse struct {
	Published int `json:"published"`
}

// PreviewTokenResponse carries a freshly minted preview token.
type PreviewTokenResponse struct {
	Token     string `json:"token"`
	ArticleID int64  `json:"articleId"`
	ExpiresAt string `json:"expiresAt"`
}

// TransitionRequest is the optional body of a transition endpoint.
type TransitionRequest struct {
	// PublishAt schedules the release for approve and schedule; RFC 3339.
	PublishAt string `json:"publishAt,omitempty"`
}

// CreateArticleRequest is the body for draft creation.
type CreateArticleRequest struct {
	Title     string  `json:"title"`
	Slug      string  `json:"slug,omitempty"`
	Dek       string  `json:"dek,omitempty"`
	BodyMD    string  `json:"bodyMarkdown,omitempty"`
	HeroImage string  `json:"heroImage,omitempty"`
	Authors   []int64 `json:"authors,omitempty"`
}

// UpdateArticleRequest is the body for content edits. Absent fields are left
// untouched.
type UpdateArticleRequest struct {
	Title     *string  `json:"title,omitempty"`
	Slug      *string  `json:"slug,omitempty"`
	Dek       *string  `json:"dek,omitempty"`
	BodyMD    *string  `json:"bodyMarkdown,omitempty"`
	HeroImage *string  `json:"heroImage,omitempty"`
	Authors   *[]int64 `json:"authors,omitempty"`
}
