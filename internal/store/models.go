package store

import (
	"time"

	"glossvideo/internal/videopath"
)

// Language is a translation language identified by its three-letter code.
type Language struct {
	ID    int64
	Code3 string
	Name  string
}

// Dataset groups entries under an acronym that forms the second path segment
// of every asset.
type Dataset struct {
	ID                int64
	Acronym           string
	DefaultLanguageID int64
}

// Entry is one dictionary headword. Its display text is not stored; it is the
// lemma translation in the dataset's default language, see Store.Identity.
type Entry struct {
	ID        int64
	DatasetID int64
	LemmaID   int64
}

// Asset is one video file record. Path may be empty (a tombstone); a non-empty
// path is never guaranteed to reference an existing file.
type Asset struct {
	ID             int64
	EntryID        int64
	Role           videopath.Role
	Version        int
	Path           string
	BackupSuffixID int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTombstone reports whether the record points at no file at all.
func (a *Asset) IsTombstone() bool {
	return a.Path == ""
}

// NewAsset describes an asset to insert. A zero CreatedAt means now.
type NewAsset struct {
	EntryID   int64
	Role      videopath.Role
	Version   int
	Path      string
	CreatedAt time.Time
}

// Action enumerates asset event kinds.
type Action string

const (
	ActionUpload Action = "upload"
	ActionDelete Action = "delete"
	ActionRename Action = "rename"
	ActionImport Action = "import"
	ActionWatch  Action = "watch"
)

// Event records one physical change to an entry's assets.
type Event struct {
	ID          int64
	EntryID     int64
	Action      Action
	Actor       string
	Source      string
	Destination string
	BatchID     string
	CreatedAt   time.Time
}
