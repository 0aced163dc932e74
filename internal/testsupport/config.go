package testsupport

import (
	"path/filepath"
	"testing"

	"glossvideo/internal/config"
)

// ConfigOption adjusts the generated test configuration before its
// directories are created.
type ConfigOption func(*config.Config)

// NewConfig returns a config whose writable root, database and log directory
// live in a fresh temp directory. The layout below the writable root exists
// when NewConfig returns.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WritableRoot = filepath.Join(base, "root")
	cfg.Paths.DatabasePath = filepath.Join(base, "state", "glossvideo.db")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithCanonicalFormat overrides the canonical container, codec and extension.
func WithCanonicalFormat(container, codec, extension string) ConfigOption {
	return func(c *config.Config) {
		c.Transcode.CanonicalContainer = container
		c.Transcode.CanonicalCodec = codec
		c.Transcode.CanonicalExtension = extension
	}
}

// BaseDir returns the temp directory backing cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WritableRoot)
}
