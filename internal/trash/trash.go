// Package trash moves backup videos out of the video tree into a flat trash
// directory and removes their records.
package trash

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/fileutil"
	"glossvideo/internal/logging"
	"glossvideo/internal/store"
	"glossvideo/internal/videopath"
)

const component = "trash"

// Outcome describes what happened to one candidate.
type Outcome string

const (
	OutcomeTrashed       Outcome = "trashed"
	OutcomeRecordRemoved Outcome = "record_removed"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeFailed        Outcome = "failed"
)

// Item reports the handling of one asset.
type Item struct {
	AssetID     int64
	Path        string
	Destination string
	Outcome     Outcome
	Err         error
}

// Result summarises a trash run.
type Result struct {
	BatchID string
	Items   []Item
}

// Count returns the number of items with the given outcome.
func (r Result) Count(outcome Outcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

// Manager moves backups to the trash directory.
type Manager struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	actor  string
}

// New constructs a Manager. actor is recorded on delete events.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, actor string) *Manager {
	if actor == "" {
		actor = "trash"
	}
	return &Manager{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, component),
		actor:  actor,
	}
}

// FlatName flattens a stored path into "{acronym}_{prefix}_{filename}".
func FlatName(rel string) string {
	segments := strings.Split(path.Clean(rel), "/")
	if len(segments) >= 4 {
		return segments[1] + "_" + segments[2] + "_" + segments[len(segments)-1]
	}
	if len(segments) > 1 {
		return strings.Join(segments[1:], "_")
	}
	return segments[0]
}

// TrashEntryBackups trashes every backup of an entry.
func (m *Manager) TrashEntryBackups(ctx context.Context, entryID int64) (Result, error) {
	assets, err := m.store.AssetsByEntry(ctx, entryID)
	if err != nil {
		return Result{}, err
	}
	var backups []*store.Asset
	for _, asset := range assets {
		if asset.Role.Kind == videopath.KindBackup {
			backups = append(backups, asset)
		}
	}
	return m.Trash(ctx, backups), nil
}

// Trash handles each backup candidate: records without a reachable file are
// removed, reachable files are moved to the trash directory before their
// record is removed. The stored path is cleared before the move and restored
// when the move fails. Non-backup assets are skipped.
func (m *Manager) Trash(ctx context.Context, assets []*store.Asset) Result {
	result := Result{BatchID: uuid.NewString()}
	for _, asset := range assets {
		item := m.trashOne(ctx, asset, result.BatchID)
		if item.Err != nil {
			logging.WarnWithContext(m.logger, "trash failed", "trash_failed",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.String("path", item.Path),
				logging.Error(item.Err),
				logging.String(logging.FieldErrorHint, "check permissions on the trash directory"),
				logging.String(logging.FieldImpact, "backup kept in place"),
			)
		}
		result.Items = append(result.Items, item)
	}
	m.logger.Info("trash finished",
		logging.String(logging.FieldBatchID, result.BatchID),
		logging.Int("trashed", result.Count(OutcomeTrashed)),
		logging.Int("records_removed", result.Count(OutcomeRecordRemoved)),
		logging.Int("skipped", result.Count(OutcomeSkipped)),
		logging.Int("failed", result.Count(OutcomeFailed)),
	)
	return result
}

func (m *Manager) trashOne(ctx context.Context, asset *store.Asset, batch string) Item {
	item := Item{AssetID: asset.ID, Path: asset.Path}
	if asset.Role.Kind != videopath.KindBackup {
		item.Outcome = OutcomeSkipped
		return item
	}

	event := store.Event{
		EntryID: asset.EntryID,
		Action:  store.ActionDelete,
		Actor:   m.actor,
		Source:  asset.Path,
		BatchID: batch,
	}
	if asset.Path == "" || !fileutil.Exists(m.cfg.Abs(asset.Path)) {
		if err := m.store.DeleteAssets(ctx, []int64{asset.ID}, event); err != nil {
			item.Outcome, item.Err = OutcomeFailed, err
			return item
		}
		item.Outcome = OutcomeRecordRemoved
		return item
	}

	source := asset.Path
	target := m.uniqueTarget(FlatName(source))
	item.Destination = target

	asset.Path = ""
	if err := m.store.UpdateAsset(ctx, asset); err != nil {
		asset.Path = source
		item.Outcome, item.Err = OutcomeFailed, err
		return item
	}
	if err := fileutil.MoveFile(m.cfg.Abs(source), target); err != nil {
		asset.Path = source
		if restoreErr := m.store.UpdateAsset(ctx, asset); restoreErr != nil {
			logging.ErrorWithContext(m.logger, "failed to restore stored path", "trash_restore_failed",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.String("path", source),
				logging.Error(restoreErr),
				logging.String(logging.FieldErrorHint, "run the consistency audit"),
			)
		}
		item.Outcome = OutcomeFailed
		item.Err = failure.Wrap(failure.ErrPhysicalIO, component, "move", fmt.Sprintf("Failed to move %s to trash", source), err)
		return item
	}

	event.Destination = target
	if err := m.store.DeleteAssets(ctx, []int64{asset.ID}, event); err != nil {
		item.Outcome, item.Err = OutcomeFailed, err
		return item
	}
	item.Outcome = OutcomeTrashed
	return item
}

func (m *Manager) uniqueTarget(name string) string {
	dir := m.cfg.TrashRoot()
	target := filepath.Join(dir, name)
	for i := 1; fileutil.Exists(target); i++ {
		target = filepath.Join(dir, name+"."+strconv.Itoa(i))
	}
	return target
}
