// Package logging assembles structured slog loggers used across glossvideo.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standardized field keys (asset, entry, dataset,
// batch) that asset operations attach to every line. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
