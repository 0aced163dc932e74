package videopath

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
)

// DefaultExtension is used when neither the file nor its stored name reveal one.
const DefaultExtension = ".mp4"

// Identity holds the upstream fields a path depends on.
type Identity struct {
	DatasetAcronym string
	Display        string
	EntryID        int64
}

// Validate reports whether the identity can produce a path.
func (id Identity) Validate() error {
	if err := ValidateAcronym(id.DatasetAcronym); err != nil {
		return fmt.Errorf("entry %d: %w", id.EntryID, err)
	}
	if CleanDisplay(id.Display) == "" {
		return fmt.Errorf("%w: entry %d has no display text", failure.ErrInvalidIdentity, id.EntryID)
	}
	if TwoCharPrefix(id.Display) == ".." {
		return fmt.Errorf("%w: entry %d display text %q starts with \"..\"", failure.ErrInvalidIdentity, id.EntryID, id.Display)
	}
	if id.EntryID <= 0 {
		return fmt.Errorf("%w: entry id %d", failure.ErrInvalidIdentity, id.EntryID)
	}
	return nil
}

// ValidateAcronym reports whether a dataset acronym can be used as a path
// segment.
func ValidateAcronym(acronym string) error {
	if strings.TrimSpace(acronym) == "" {
		return fmt.Errorf("%w: empty dataset acronym", failure.ErrInvalidIdentity)
	}
	if strings.TrimSpace(acronym) != acronym || acronym == "." || acronym == ".." || strings.ContainsAny(acronym, `/\`) {
		return fmt.Errorf("%w: dataset acronym %q is not a valid path segment", failure.ErrInvalidIdentity, acronym)
	}
	return nil
}

// Layout names the directories below the writable root.
type Layout struct {
	VideoDir string
	ImageDir string
}

// LayoutFromConfig extracts the path layout from the process configuration.
func LayoutFromConfig(cfg *config.Config) Layout {
	return Layout{VideoDir: cfg.Layout.VideoDir, ImageDir: cfg.Layout.ImageDir}
}

// Deriver computes canonical relative paths.
type Deriver struct {
	layout Layout
}

// NewDeriver returns a Deriver for the given layout.
func NewDeriver(layout Layout) Deriver {
	return Deriver{layout: layout}
}

// Layout returns the layout the deriver was built with.
func (d Deriver) Layout() Layout {
	return d.layout
}

// Derive returns the relative path of an asset. backupSuffixID is only used
// for backups; ext must include its leading dot and defaults to .mp4.
func (d Deriver) Derive(id Identity, role Role, version int, backupSuffixID int64, ext string) (string, error) {
	if err := role.Validate(version); err != nil {
		return "", err
	}
	if err := id.Validate(); err != nil {
		return "", err
	}
	if role.Kind == KindBackup && backupSuffixID <= 0 {
		return "", fmt.Errorf("%w: backup of entry %d has no suffix id", failure.ErrInvalidRole, id.EntryID)
	}
	ext = normalizeExtension(ext)
	display := CleanDisplay(id.Display)

	name := display + "-" + strconv.FormatInt(id.EntryID, 10) + role.Suffix() + ext
	if role.Kind == KindBackup {
		name += BackupSuffix(backupSuffixID)
	}
	return path.Join(d.layout.VideoDir, id.DatasetAcronym, TwoCharPrefix(display), name), nil
}

// Expected derives the path an asset should have, resolving the extension
// from the file at absPath or the stored name.
func (d Deriver) Expected(id Identity, role Role, version int, backupSuffixID int64, absPath, storedPath string) (string, error) {
	return d.Derive(id, role, version, backupSuffixID, ResolveExtension(absPath, storedPath))
}

// Companions returns the small video and poster paths belonging to a video
// path. Backups and empty paths have none.
func (d Deriver) Companions(videoRel string) []string {
	var out []string
	if small := SmallPath(videoRel); small != "" {
		out = append(out, small)
	}
	if poster := d.PosterPath(videoRel); poster != "" {
		out = append(out, poster)
	}
	return out
}

// PosterPath mirrors a video path into the image directory with a .png
// extension. Backup paths have no poster and yield "".
func (d Deriver) PosterPath(videoRel string) string {
	if videoRel == "" || HasBackupSuffix(videoRel) {
		return ""
	}
	rel := videoRel
	prefix := d.layout.VideoDir + "/"
	if strings.HasPrefix(rel, prefix) {
		rel = d.layout.ImageDir + "/" + strings.TrimPrefix(rel, prefix)
	}
	return strings.TrimSuffix(rel, path.Ext(rel)) + ".png"
}

// SmallPath inserts "_small" before the extension. Backup paths have no small
// companion and yield "".
func SmallPath(videoRel string) string {
	if videoRel == "" || HasBackupSuffix(videoRel) {
		return ""
	}
	ext := path.Ext(videoRel)
	return strings.TrimSuffix(videoRel, ext) + "_small" + ext
}

// TwoCharPrefix returns the sharding folder for a display text: its first two
// characters, padded with "-" when the text is a single character.
func TwoCharPrefix(display string) string {
	runes := []rune(CleanDisplay(display))
	switch len(runes) {
	case 0:
		return ""
	case 1:
		return string(runes) + "-"
	default:
		return string(runes[:2])
	}
}

// CleanDisplay normalizes display text for use in a filename: NFC form,
// surrounding whitespace trimmed, path separators replaced by "-".
func CleanDisplay(display string) string {
	cleaned := norm.NFC.String(strings.TrimSpace(display))
	return strings.NewReplacer("/", "-", `\`, "-").Replace(cleaned)
}

// BackupSuffix returns the ".bakN" suffix for a backup suffix id.
func BackupSuffix(id int64) string {
	return ".bak" + strconv.FormatInt(id, 10)
}

var backupSuffixPattern = regexp.MustCompile(`\.bak\d+$`)

// HasBackupSuffix reports whether the path ends in ".bakN".
func HasBackupSuffix(rel string) bool {
	return backupSuffixPattern.MatchString(rel)
}

// StripBackupSuffix removes a trailing ".bakN".
func StripBackupSuffix(rel string) string {
	return backupSuffixPattern.ReplaceAllString(rel, "")
}

var extensionPattern = regexp.MustCompile(`-\d+(?:_[A-Za-z0-9]+)*(\.[A-Za-z0-9]+)(?:\.bak\d+)?$`)

// ExtensionFromName parses the extension out of a stored name of the form
// "...-{digits}[_suffix](ext)(.bakN)?". It returns "" when the name does not
// follow that pattern.
func ExtensionFromName(name string) string {
	match := extensionPattern.FindStringSubmatch(path.Base(name))
	if match == nil {
		return ""
	}
	return strings.ToLower(match[1])
}

var derivativePattern = regexp.MustCompile(`(?:_small|_left|_right|_center)\.[A-Za-z0-9]+$|_nme_\d+|\.bak\d+$`)

// IsDerivativeName reports whether a filename belongs to a companion, a
// perspective or NME clip, or a backup rather than a primary video.
func IsDerivativeName(name string) bool {
	return derivativePattern.MatchString(path.Base(name))
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
