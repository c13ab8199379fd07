// Package api defines the JSON payload types shared by the HTTP server and
// the CLI, plus converters from internal records.
package api
