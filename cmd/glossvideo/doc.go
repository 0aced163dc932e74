// Package main hosts the glossvideo CLI entrypoint and command graph.
//
// The Cobra-based command tree exposes dataset and entry maintenance, video
// uploads, backup housekeeping, zip imports and the consistency audit. It
// centralizes configuration resolution, store access and logging setup so
// subcommands only translate arguments into calls on the internal packages.
//
// Every command that reports results honours the global --json flag.
package main
