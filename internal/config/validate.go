package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLayout(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WritableRoot) == "" {
		return errors.New("paths.writable_root must be set")
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		return errors.New("paths.database_path must be set")
	}
	return nil
}

func (c *Config) validateLayout() error {
	segments := map[string]string{
		"layout.video_dir":      c.Layout.VideoDir,
		"layout.image_dir":      c.Layout.ImageDir,
		"layout.trash_dir":      c.Layout.TrashDir,
		"layout.quarantine_dir": c.Layout.QuarantineDir,
		"layout.import_dir":     c.Layout.ImportDir,
	}
	seen := make(map[string]string, len(segments))
	for key, value := range segments {
		if strings.ContainsAny(value, `/\`) || value == "." || value == ".." {
			return fmt.Errorf("%s must be a single directory name, got %q", key, value)
		}
		if other, ok := seen[value]; ok {
			return fmt.Errorf("%s and %s must differ (both %q)", key, other, value)
		}
		seen[value] = key
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.SmallVideoHeight <= 0 {
		return errors.New("transcode.small_video_height must be positive")
	}
	if c.Transcode.SmallVideoHeight%2 != 0 {
		return errors.New("transcode.small_video_height must be even")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}
