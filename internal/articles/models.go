package articles

import (
	"strings"
	"time"

	"newsroom/internal/roles"
)

// Status represents the editorial lifecycle of an article.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusInReview  Status = "IN_REVIEW"
	StatusScheduled Status = "SCHEDULED"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

var allStatuses = []Status{
	StatusDraft,
	StatusInReview,
	StatusScheduled,
	StatusPublished,
	StatusArchived,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Article is the central editorial entity. The numeric ID is immutable; the
// slug is assigned once and frozen after first publish.
type Article struct {
	ID        int64
	Slug      string
	Title     string
	Dek       string
	BodyMD    string
	HeroImage string

	Status      Status
	PublishAt   *time.Time
	PublishedAt *time.Time

	Authors   []int64
	CreatedBy int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAuthor reports whether the given user is one of the article's authors.
func (a *Article) HasAuthor(userID int64) bool {
	for _, id := range a.Authors {
		if id == userID {
			return true
		}
	}
	return false
}

// OwnedBy reports whether the given user created the article or is one of its
// authors. A draft's creator stays its owner even when the author list names
// someone else, as with ghostwritten pieces.
func (a *Article) OwnedBy(userID int64) bool {
	return a.CreatedBy == userID || a.HasAuthor(userID)
}

// EverPublished reports whether the article has been published at least once,
// including articles that were later archived.
func (a *Article) EverPublished() bool {
	return a.PublishedAt != nil
}

// VersionKind names the transition that produced a revision snapshot.
type VersionKind string

const (
	VersionSubmit    VersionKind = "SUBMIT"
	VersionApprove   VersionKind = "APPROVE"
	VersionSchedule  VersionKind = "SCHEDULE"
	VersionPublish   VersionKind = "PUBLISH"
	VersionArchive   VersionKind = "ARCHIVE"
	VersionRevert    VersionKind = "REVERT"
	VersionUnarchive VersionKind = "UNARCHIVE"
	VersionManual    VersionKind = "MANUAL"
)

// Version is an immutable point-in-time copy of an article's content fields,
// stamped with the transition that produced it and the acting user.
type Version struct {
	ID        int64
	ArticleID int64
	Kind      VersionKind

	Title     string
	Slug      string
	Dek       string
	BodyMD    string
	HeroImage string
	Authors   []int64

	ActorID   int64
	CreatedAt time.Time
}

// SystemActorID attributes sweeper-initiated transitions. It is never a real
// user id.
const SystemActorID int64 = 0

// Actor identifies the user invoking a workflow operation. Authentication is
// external; the engine receives identity and role as plain inputs.
type Actor struct {
	ID   int64
	Role roles.Role
}

// SystemActor returns the publisher-equivalent actor used by the scheduled
// publish sweeper.
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Role: roles.RolePublisher}
}

// StatusCounts aggregates article counts per lifecycle state.
type StatusCounts struct {
	Total     int
	Draft     int
	InReview  int
	Scheduled int
	Published int
	Archived  int
}
