package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDirectories creates the writable root with its layout, the log
// directory and the directory holding the database.
func (c *Config) EnsureDirectories() error {
	dirs := append([]string{c.Paths.WritableRoot}, c.layoutRoots()...)
	dirs = append(dirs, c.Paths.LogDir)
	if strings.TrimSpace(c.Paths.DatabasePath) != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.DatabasePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) layoutRoots() []string {
	return []string{c.VideoRoot(), c.ImageRoot(), c.TrashRoot(), c.QuarantineRoot(), c.ImportRoot()}
}

// Abs resolves a path stored relative to the writable root.
func (c *Config) Abs(rel string) string {
	return filepath.Join(c.Paths.WritableRoot, filepath.FromSlash(rel))
}

// VideoRoot returns the absolute video directory.
func (c *Config) VideoRoot() string {
	return filepath.Join(c.Paths.WritableRoot, c.Layout.VideoDir)
}

// ImageRoot returns the absolute poster image directory.
func (c *Config) ImageRoot() string {
	return filepath.Join(c.Paths.WritableRoot, c.Layout.ImageDir)
}

// TrashRoot returns the absolute flat trash directory.
func (c *Config) TrashRoot() string {
	return filepath.Join(c.Paths.WritableRoot, c.Layout.TrashDir)
}

// QuarantineRoot returns the directory that receives copies of uploads before
// a conversion attempt.
func (c *Config) QuarantineRoot() string {
	return filepath.Join(c.Paths.WritableRoot, c.Layout.QuarantineDir)
}

// ImportRoot returns the scratch directory for extracted archives.
func (c *Config) ImportRoot() string {
	return filepath.Join(c.Paths.WritableRoot, c.Layout.ImportDir)
}
