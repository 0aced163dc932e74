package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLayout()
	c.normalizeTranscode()
	c.normalizeLogging()
	if strings.TrimSpace(c.Import.DefaultActor) == "" {
		c.Import.DefaultActor = defaultImportActor
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("GLOSSVIDEO_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WritableRoot = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.WritableRoot, err = expandPath(c.Paths.WritableRoot); err != nil {
		return fmt.Errorf("paths.writable_root: %w", err)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLayout() {
	c.Layout.VideoDir = trimSegment(c.Layout.VideoDir, defaultVideoDir)
	c.Layout.ImageDir = trimSegment(c.Layout.ImageDir, defaultImageDir)
	c.Layout.TrashDir = trimSegment(c.Layout.TrashDir, defaultTrashDir)
	c.Layout.QuarantineDir = trimSegment(c.Layout.QuarantineDir, defaultQuarantineDir)
	c.Layout.ImportDir = trimSegment(c.Layout.ImportDir, defaultImportDir)
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.FFprobeBinary = strings.TrimSpace(c.Transcode.FFprobeBinary)
	if c.Transcode.FFprobeBinary == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transcode.CanonicalContainer = strings.ToLower(strings.TrimSpace(c.Transcode.CanonicalContainer))
	if c.Transcode.CanonicalContainer == "" {
		c.Transcode.CanonicalContainer = defaultCanonicalContainer
	}
	c.Transcode.CanonicalCodec = strings.ToLower(strings.TrimSpace(c.Transcode.CanonicalCodec))
	if c.Transcode.CanonicalCodec == "" {
		c.Transcode.CanonicalCodec = defaultCanonicalCodec
	}
	ext := strings.ToLower(strings.TrimSpace(c.Transcode.CanonicalExtension))
	if ext == "" {
		ext = defaultCanonicalExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Transcode.CanonicalExtension = ext
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func trimSegment(value, fallback string) string {
	value = strings.Trim(strings.TrimSpace(value), "/\\")
	if value == "" {
		return fallback
	}
	return value
}
