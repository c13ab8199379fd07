// Package main hosts the newsroom CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into article
// store operations, workflow transitions, pipeline views, manual sweeps, and
// configuration scaffolding. It centralizes configuration resolution so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
