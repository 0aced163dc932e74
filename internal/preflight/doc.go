// Package preflight verifies that the directories glossvideo writes to exist
// and are usable before commands start moving files.
//
// Mutating CLI commands run RunAll first so a read-only mount or a missing
// share fails fast instead of leaving a cascade half applied. The deps
// command reports the same results.
package preflight
