package videopath

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Parsed is a stored relative path split into the parts Derive produces.
type Parsed struct {
	RootDir        string
	DatasetAcronym string
	PrefixDir      string
	Display        string
	EntryID        int64
	RoleSuffix     string
	Small          bool
	Ext            string
	BackupSuffixID int64
}

var namePattern = regexp.MustCompile(`^(.+)-(\d+)((?:_left|_right)|(?:_nme_\d+(?:_left|_right|_center)?))?(_small)?(\.[A-Za-z0-9]+)(?:\.bak(\d+))?$`)

// Parse splits a stored path. ok is false when the path does not have the
// four-segment layout or the filename does not follow the derived pattern.
func Parse(rel string) (Parsed, bool) {
	segments := strings.Split(path.Clean(rel), "/")
	if len(segments) != 4 {
		return Parsed{}, false
	}
	match := namePattern.FindStringSubmatch(segments[3])
	if match == nil {
		return Parsed{}, false
	}
	entryID, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return Parsed{}, false
	}
	parsed := Parsed{
		RootDir:        segments[0],
		DatasetAcronym: segments[1],
		PrefixDir:      segments[2],
		Display:        match[1],
		EntryID:        entryID,
		RoleSuffix:     match[3],
		Small:          match[4] != "",
		Ext:            match[5],
	}
	if match[6] != "" {
		parsed.BackupSuffixID, err = strconv.ParseInt(match[6], 10, 64)
		if err != nil {
			return Parsed{}, false
		}
	}
	return parsed, true
}

// MatchesRole reports whether a parsed filename is the one Derive produces for
// the given entry, role, version and backup suffix id, ignoring display text
// and extension.
func (p Parsed) MatchesRole(entryID int64, role Role, version int, backupSuffixID int64) bool {
	if p.EntryID != entryID || p.Small {
		return false
	}
	if p.RoleSuffix != role.Suffix() {
		return false
	}
	if role.Kind == KindBackup || version > 0 {
		return p.BackupSuffixID == backupSuffixID && backupSuffixID > 0
	}
	return p.BackupSuffixID == 0
}
