package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the writable root and bookkeeping locations.
type Paths struct {
	WritableRoot string `toml:"writable_root"`
	DatabasePath string `toml:"database_path"`
	LogDir       string `toml:"log_dir"`
}

// Layout names the directories below the writable root. Values are single
// relative segments so derived asset paths stay portable between hosts.
type Layout struct {
	VideoDir      string `toml:"video_dir"`
	ImageDir      string `toml:"image_dir"`
	TrashDir      string `toml:"trash_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
	ImportDir     string `toml:"import_dir"`
}

// Transcode contains settings for the ffmpeg-backed transcoder.
type Transcode struct {
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	FFprobeBinary      string `toml:"ffprobe_binary"`
	SmallVideoHeight   int    `toml:"small_video_height"`
	CanonicalContainer string `toml:"canonical_container"`
	CanonicalCodec     string `toml:"canonical_codec"`
	CanonicalExtension string `toml:"canonical_extension"`
}

// Import contains settings for archive imports.
type Import struct {
	DefaultActor string `toml:"default_actor"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for glossvideo.
//
// Configuration sections by subsystem:
//   - Paths: writable root, database and log locations
//   - Layout: directory names below the writable root
//   - Transcode: ffmpeg/ffprobe binaries and the canonical format
//   - Import: zip import defaults
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Layout    Layout    `toml:"layout"`
	Transcode Transcode `toml:"transcode"`
	Import    Import    `toml:"import"`
	Logging   Logging   `toml:"logging"`
}

const (
	userConfigPath    = "~/.config/glossvideo/config.toml"
	projectConfigPath = "glossvideo.toml"
)

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(userConfigPath)
}

// Load reads the configuration at path, or the first existing candidate when
// path is empty, applies environment overrides and validates the result. It
// returns the config, the file it resolved to and whether that file existed.
// A missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locate expands an explicit path, or walks the user config file and then
// ./glossvideo.toml. With no candidate present the user path is returned.
func locate(path string) (string, bool, error) {
	var candidates []string
	if path != "" {
		candidates = []string{path}
	} else {
		candidates = []string{userConfigPath, projectConfigPath}
	}

	first := ""
	for _, candidate := range candidates {
		expanded, err := expandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if first == "" {
			first = expanded
		}
		info, err := os.Stat(expanded)
		switch {
		case err == nil && !info.IsDir():
			return expanded, true, nil
		case err != nil && !os.IsNotExist(err) && path != "":
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}
	return first, false, nil
}

// ExpandPath resolves a leading "~" and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	if pathValue == "~" || strings.HasPrefix(pathValue, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		pathValue = filepath.Join(home, strings.TrimPrefix(pathValue[1:], "/"))
	}
	absolute, err := filepath.Abs(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
