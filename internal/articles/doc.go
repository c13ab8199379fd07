// Package articles persists the editorial article lifecycle in SQLite and
// exposes helpers for driving it.
//
// The Store manages database connections, schema initialization, draft
// creation, content edits, list queries, stats, revision history, and the
// compare-and-swap status transitions the workflow engine builds on. A status
// transition and its revision snapshot always commit in one transaction;
// a snapshot failure rolls the status change back.
//
// Times are stored as RFC 3339 strings in UTC. Author lists are stored as
// JSON arrays of user ids. Schema changes bump the version in schema.go.
package articles
