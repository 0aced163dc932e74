// Package store persists datasets, dictionary entries, video assets and asset
// events in SQLite.
//
// It plays the relational storage collaborator for the asset components:
// CRUD and filtering over entries, datasets, languages, assets and events,
// plus Identity, which resolves the upstream fields (dataset acronym and
// default-language display text) every asset path depends on.
//
// Transactions only ever cover metadata writes. Callers move files outside a
// transaction and write metadata afterwards; the audit package detects the
// drift an interrupted sequence leaves behind.
package store
