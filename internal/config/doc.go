// Package config loads, validates, and defaults the TOML configuration for
// the newsroom daemon and CLI.
package config
