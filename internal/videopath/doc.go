// Package videopath derives the canonical relative path of every video asset.
//
// A path is a pure function of the owning entry's identity (dataset acronym,
// display text, entry id), the asset's role, its version and its backup
// suffix id, plus the configured directory layout:
//
//	{video_dir}/{acronym}/{prefix}/{display}-{id}{role suffix}{ext}{.bakN}
//
// Role is a closed tagged variant: primary, backup, perspective(side) and
// nme(offset, side). Role only changes the suffix and the allowed version
// range, so one Derive call serves every variant.
//
// Paths produced here use forward slashes and are relative to the writable
// root; callers resolve them with config.Config.Abs.
package videopath
