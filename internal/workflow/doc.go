// Package workflow implements the article state machine: the guarded
// transitions between DRAFT, IN_REVIEW, SCHEDULED, PUBLISHED, and ARCHIVED.
//
// Every transition checks preconditions in a fixed order — existence, source
// status, role authorization, transition guards — and then applies the status
// change through the store's compare-and-swap update, which also records the
// revision snapshot in the same transaction. Concurrent transitions on one
// article therefore resolve to exactly one winner; the loser observes an
// invalid-transition error and must re-fetch state before retrying.
package workflow
