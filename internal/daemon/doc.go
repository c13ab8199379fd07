// Package daemon hosts the long-running newsroom process: the scheduled
// publish sweeper, the HTTP API, and the single-instance file lock.
//
// The API authenticates with an optional bearer token; the acting user's
// identity and role arrive in X-Actor-Id and X-Actor-Role headers set by the
// authenticating front proxy. Workflow error kinds map onto HTTP statuses:
// NotFound 404, Forbidden 403, InvalidTransition 409, ValidationError 400,
// StorageError 500.
package daemon
