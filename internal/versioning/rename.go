package versioning

import (
	"context"

	"github.com/google/uuid"

	"glossvideo/internal/failure"
	"glossvideo/internal/logging"
	"glossvideo/internal/store"
	"glossvideo/internal/videopath"
)

// RenameResult counts the outcome of RenameBackups.
type RenameResult struct {
	Renamed  int
	Skipped  int
	Failures []ItemFailure
}

// ItemFailure describes why one asset could not be processed.
type ItemFailure struct {
	AssetID int64
	Path    string
	Err     error
}

// RenameBackups renames backup files of an entry whose names deviate from the
// derived ".bak{backupSuffixID}" form. Tombstones are skipped. Per-asset
// failures are collected and the loop continues.
func (m *Manager) RenameBackups(ctx context.Context, entryID int64) (RenameResult, error) {
	var result RenameResult
	id, err := m.store.Identity(ctx, entryID)
	if err != nil {
		return result, err
	}
	assets, err := m.store.AssetsByEntry(ctx, entryID)
	if err != nil {
		return result, err
	}

	batch := uuid.NewString()
	for _, asset := range assets {
		if asset.Role.Kind != videopath.KindBackup || asset.Path == "" {
			continue
		}
		expected, err := m.deriver.Expected(id, asset.Role, asset.Version, asset.BackupSuffixID, m.cfg.Abs(asset.Path), asset.Path)
		if err != nil {
			result.Failures = append(result.Failures, ItemFailure{AssetID: asset.ID, Path: asset.Path, Err: err})
			continue
		}
		if expected == asset.Path {
			result.Skipped++
			continue
		}
		source := asset.Path
		if err := m.renameFile(asset, source, expected); err != nil {
			logging.WarnWithContext(m.logger, "backup rename failed", "backup_rename_failed",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "backup keeps its previous name"),
			)
			result.Failures = append(result.Failures, ItemFailure{AssetID: asset.ID, Path: source, Err: err})
			continue
		}
		asset.Path = expected
		if err := m.store.UpdateAssets(ctx, []*store.Asset{asset}, m.renameEvent(entryID, source, expected, batch)...); err != nil {
			result.Failures = append(result.Failures, ItemFailure{
				AssetID: asset.ID,
				Path:    source,
				Err:     failure.Wrap(failure.ErrConsistency, component, "rename backups", "File renamed but record not updated", err),
			})
			continue
		}
		result.Renamed++
	}
	return result, nil
}
