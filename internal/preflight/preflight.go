package preflight

import (
	"path/filepath"

	"glossvideo/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the writable root, every layout directory below it and the
// database directory.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Writable root", cfg.Paths.WritableRoot),
		CheckDirectoryAccess("Video directory", cfg.VideoRoot()),
		CheckDirectoryAccess("Image directory", cfg.ImageRoot()),
		CheckDirectoryAccess("Trash directory", cfg.TrashRoot()),
		CheckDirectoryAccess("Quarantine directory", cfg.QuarantineRoot()),
		CheckDirectoryAccess("Import directory", cfg.ImportRoot()),
		CheckDirectoryAccess("Database directory", filepath.Dir(cfg.Paths.DatabasePath)),
	}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
