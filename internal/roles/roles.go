// Package roles defines the editorial role hierarchy and the authorization
// table governing article workflow transitions.
package roles

import "strings"

// Role identifies a tier in the editorial hierarchy.
type Role string

const (
	RoleReader    Role = "reader"
	RoleWriter    Role = "writer"
	RoleEditor    Role = "editor"
	RolePublisher Role = "publisher"
	// RoleAdmin is a writer-compatible superuser, treated as publisher-or-above
	// for every capability check.
	RoleAdmin Role = "admin"
)

var roleRank = map[Role]int{
	RoleReader:    0,
	RoleWriter:    1,
	RoleEditor:    2,
	RolePublisher: 3,
	RoleAdmin:     4,
}

var allRoles = []Role{RoleReader, RoleWriter, RoleEditor, RolePublisher, RoleAdmin}

// AllRoles returns the ordered list of known roles.
func AllRoles() []Role {
	cp := make([]Role, len(allRoles))
	copy(cp, allRoles)
	return cp
}

// ParseRole converts a string into a known Role.
func ParseRole(value string) (Role, bool) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := roleRank[normalized]
	return normalized, ok
}

// AtLeast reports whether r ranks at or above min. Unknown roles rank below
// every known role.
func (r Role) AtLeast(min Role) bool {
	rank, ok := roleRank[r]
	if !ok {
		return false
	}
	minRank, ok := roleRank[min]
	if !ok {
		return false
	}
	return rank >= minRank
}

// Transition names a guarded workflow operation on an article.
type Transition string

const (
	TransitionSubmit     Transition = "submit"
	TransitionApprove    Transition = "approve"
	TransitionSchedule   Transition = "schedule"
	TransitionPublishNow Transition = "publish_now"
	TransitionArchive    Transition = "archive"
	TransitionRevert     Transition = "revert_to_draft"
	TransitionUnarchive  Transition = "unarchive"
)

// minimumRole is the capability table: the lowest role allowed to invoke each
// transition. Ownership refinements (submit requires the article's own author
// below editor, revert allows the original writer) are enforced as state
// machine guards, since authorization here sees only the role.
var minimumRole = map[Transition]Role{
	TransitionSubmit:     RoleWriter,
	TransitionApprove:    RoleEditor,
	TransitionSchedule:   RolePublisher,
	TransitionPublishNow: RolePublisher,
	TransitionArchive:    RolePublisher,
	TransitionRevert:     RoleEditor,
	TransitionUnarchive:  RolePublisher,
}

// AllTransitions returns the known transitions in table order.
func AllTransitions() []Transition {
	return []Transition{
		TransitionSubmit,
		TransitionApprove,
		TransitionSchedule,
		TransitionPublishNow,
		TransitionArchive,
		TransitionRevert,
		TransitionUnarchive,
	}
}

// ParseTransition converts a string into a known Transition.
func ParseTransition(value string) (Transition, bool) {
	normalized := Transition(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := minimumRole[normalized]
	return normalized, ok
}

// Authorize reports whether a role may invoke the named transition. It is a
// pure, total function: unknown roles and unknown transitions are denied, and
// no error is ever produced.
func Authorize(role Role, transition Transition) bool {
	min, ok := minimumRole[transition]
	if !ok {
		return false
	}
	return role.AtLeast(min)
}
