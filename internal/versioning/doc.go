// Package versioning manages the primary/backup lifecycle of an entry's
// videos.
//
// A primary video has version 0. Demoting it renames the file with a
// ".bakN" suffix keyed on the asset's backup suffix id and turns it into
// backup version 1; older backups only change their version number. Promoting
// reverses the steps. The manager also heals gaps in backup numbering, weeds
// out duplicate version-0 claims and renames backup files whose names drifted
// from the derived form.
//
// File renames happen before the metadata write. A missing source file is
// logged and the metadata is still updated.
package versioning
