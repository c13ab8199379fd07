// Package logging builds slog loggers with the repository's console and JSON
// handlers and provides shared attribute helpers and field keys.
package logging
