// Package cascade keeps stored video paths in step with the entry fields
// they are derived from.
//
// Renaming a dataset acronym only changes the path prefix and is handled as a
// bulk directory rename plus one metadata transaction, falling back to per
// asset moves when the target directory already exists. Default-language
// changes, lemma edits and lemma re-association change display text and
// require moving every affected asset individually. Per-asset failures are
// logged and counted; the cascade always runs to the end.
package cascade
