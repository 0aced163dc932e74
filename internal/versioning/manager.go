package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/fileutil"
	"glossvideo/internal/logging"
	"glossvideo/internal/store"
	"glossvideo/internal/videopath"
)

const component = "versioning"

// Derivatives regenerates the poster and small companions of a primary
// video. Failures are logged by the implementation.
type Derivatives interface {
	MakePosterImage(ctx context.Context, videoRel string)
	MakeSmallVideo(ctx context.Context, videoRel string)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithActor sets the actor recorded on events.
func WithActor(actor string) Option {
	return func(m *Manager) {
		if actor != "" {
			m.actor = actor
		}
	}
}

// WithDerivatives regenerates companions when a backup is promoted.
func WithDerivatives(d Derivatives) Option {
	return func(m *Manager) {
		m.derivatives = d
	}
}

// Manager applies version transitions to assets.
type Manager struct {
	cfg         *config.Config
	store       *store.Store
	deriver     videopath.Deriver
	logger      *slog.Logger
	actor       string
	derivatives Derivatives
}

// New constructs a Manager.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		store:   st,
		deriver: videopath.NewDeriver(videopath.LayoutFromConfig(cfg)),
		logger:  logging.NewComponentLogger(logger, component),
		actor:   "system",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reversion demotes (revert=false) or promotes (revert=true) one asset.
//
// Demoting a primary renames its file with the backup suffix and makes it
// backup version 1; demoting a backup increments its version. Promoting a
// version-0 asset deletes it with its files, promoting backup version 1 strips
// the suffix and makes it the primary, promoting any other backup decrements
// its version.
func (m *Manager) Reversion(ctx context.Context, asset *store.Asset, revert bool) error {
	batch := uuid.NewString()
	if revert {
		return m.promote(ctx, asset, batch)
	}
	return m.demote(ctx, asset, batch)
}

func (m *Manager) demote(ctx context.Context, asset *store.Asset, batch string) error {
	if !asset.Role.IsNormal() {
		return fmt.Errorf("%w: %s assets have no backups", failure.ErrInvalidRole, asset.Role)
	}
	if asset.Version > 0 {
		asset.Version++
		return m.store.UpdateAsset(ctx, asset)
	}

	source := asset.Path
	target := ""
	if source != "" {
		target = videopath.StripBackupSuffix(source) + videopath.BackupSuffix(asset.BackupSuffixID)
		if err := m.renameFile(asset, source, target); err != nil {
			return err
		}
		m.removeCompanions(source)
	}
	asset.Role = videopath.Backup()
	asset.Version = 1
	asset.Path = target
	return m.store.UpdateAssets(ctx, []*store.Asset{asset}, m.renameEvent(asset.EntryID, source, target, batch)...)
}

func (m *Manager) promote(ctx context.Context, asset *store.Asset, batch string) error {
	switch {
	case asset.Version == 0:
		return m.deleteAsset(ctx, asset, batch)
	case asset.Version > 1:
		asset.Version--
		return m.store.UpdateAsset(ctx, asset)
	}

	tombstones, err := m.primaryTombstones(ctx, asset)
	if err != nil {
		return err
	}

	source := asset.Path
	target := videopath.StripBackupSuffix(source)
	if source != "" && source != target {
		if err := m.renameFile(asset, source, target); err != nil {
			return err
		}
	}
	asset.Role = videopath.Primary()
	asset.Version = 0
	asset.Path = target

	events := m.renameEvent(asset.EntryID, source, target, batch)
	ids := make([]int64, 0, len(tombstones))
	for _, tombstone := range tombstones {
		ids = append(ids, tombstone.ID)
		events = append(events, store.Event{
			EntryID: asset.EntryID,
			Action:  store.ActionDelete,
			Actor:   m.actor,
			BatchID: batch,
		})
	}
	if err := m.store.CommitAssets(ctx, []*store.Asset{asset}, ids, events...); err != nil {
		return err
	}
	if m.derivatives != nil && target != "" && fileutil.Exists(m.cfg.Abs(target)) {
		m.derivatives.MakePosterImage(ctx, target)
		m.derivatives.MakeSmallVideo(ctx, target)
	}
	return nil
}

// primaryTombstones returns the version-0 primary records of asset's entry
// that point at no file. Any other primary record occupies the slot and
// refuses the promotion.
func (m *Manager) primaryTombstones(ctx context.Context, asset *store.Asset) ([]*store.Asset, error) {
	records, err := m.store.PrimaryRecords(ctx, asset.EntryID)
	if err != nil {
		return nil, err
	}
	var tombstones []*store.Asset
	for _, record := range records {
		switch {
		case record.ID == asset.ID:
		case record.IsTombstone():
			tombstones = append(tombstones, record)
		default:
			return nil, fmt.Errorf("%w: entry %d already has primary asset %d", failure.ErrPrimaryOccupied, asset.EntryID, record.ID)
		}
	}
	return tombstones, nil
}

// DemoteAll demotes every primary and backup of an entry, oldest backups
// first, so numbering stays dense. It returns the number of assets changed.
func (m *Manager) DemoteAll(ctx context.Context, entryID int64) (int, error) {
	assets, err := m.normalAssets(ctx, entryID)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].Version != assets[j].Version {
			return assets[i].Version > assets[j].Version
		}
		return assets[i].ID > assets[j].ID
	})
	changed := 0
	for _, asset := range assets {
		if err := m.Reversion(ctx, asset, false); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// RevertAll promotes every primary and backup of an entry in ascending
// version order: the current primary is deleted and the newest backup takes
// its place. It returns the number of assets changed.
func (m *Manager) RevertAll(ctx context.Context, entryID int64) (int, error) {
	assets, err := m.normalAssets(ctx, entryID)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].Version != assets[j].Version {
			return assets[i].Version < assets[j].Version
		}
		return assets[i].ID < assets[j].ID
	})
	changed := 0
	for _, asset := range assets {
		if err := m.Reversion(ctx, asset, true); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// RenumberBackups reassigns versions 1..N to an entry's backups ordered by
// current version, ties broken by id. It returns the number of backups whose
// version changed.
func (m *Manager) RenumberBackups(ctx context.Context, entryID int64) (int, error) {
	assets, err := m.store.AssetsByEntry(ctx, entryID)
	if err != nil {
		return 0, err
	}
	var backups []*store.Asset
	for _, asset := range assets {
		if asset.Role.Kind == videopath.KindBackup {
			backups = append(backups, asset)
		}
	}
	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Version != backups[j].Version {
			return backups[i].Version < backups[j].Version
		}
		return backups[i].ID < backups[j].ID
	})
	var changed []*store.Asset
	for i, backup := range backups {
		if backup.Version != i+1 {
			backup.Version = i + 1
			changed = append(changed, backup)
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if err := m.store.UpdateAssets(ctx, changed); err != nil {
		return 0, err
	}
	m.logger.Info("backups renumbered",
		logging.Int64(logging.FieldEntryID, entryID),
		logging.Int("changed", len(changed)),
	)
	return len(changed), nil
}

// Delete removes an asset's files and its record and records a delete event.
func (m *Manager) Delete(ctx context.Context, asset *store.Asset) error {
	return m.deleteAsset(ctx, asset, uuid.NewString())
}

func (m *Manager) deleteAsset(ctx context.Context, asset *store.Asset, batch string) error {
	if asset.Path != "" {
		paths := append([]string{asset.Path}, m.deriver.Companions(asset.Path)...)
		for _, rel := range paths {
			if err := fileutil.RemoveIfExists(m.cfg.Abs(rel)); err != nil {
				return failure.Wrap(failure.ErrPhysicalIO, component, "delete", "Failed to remove asset file", err)
			}
		}
	}
	event := store.Event{
		EntryID: asset.EntryID,
		Action:  store.ActionDelete,
		Actor:   m.actor,
		Source:  asset.Path,
		BatchID: batch,
	}
	if err := m.store.DeleteAssets(ctx, []int64{asset.ID}, event); err != nil {
		return err
	}
	m.logger.Info("asset deleted",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.Int64(logging.FieldEntryID, asset.EntryID),
		logging.String("path", asset.Path),
	)
	return nil
}

func (m *Manager) normalAssets(ctx context.Context, entryID int64) ([]*store.Asset, error) {
	assets, err := m.store.AssetsByEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	var out []*store.Asset
	for _, asset := range assets {
		if asset.Role.IsNormal() {
			out = append(out, asset)
		}
	}
	return out, nil
}

// renameFile moves source to target. A missing source is logged and reported
// as success so the caller still updates the metadata.
func (m *Manager) renameFile(asset *store.Asset, source, target string) error {
	err := fileutil.MoveFile(m.cfg.Abs(source), m.cfg.Abs(target))
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(m.logger, "asset file missing during rename", "asset_file_missing",
			logging.Int64(logging.FieldAssetID, asset.ID),
			logging.String("source", source),
			logging.String(logging.FieldErrorHint, "run the consistency audit to review dangling records"),
			logging.String(logging.FieldImpact, "record updated without a file"),
		)
		return nil
	}
	return failure.Wrap(failure.ErrPhysicalIO, component, "rename", fmt.Sprintf("Failed to rename %s", source), err)
}

func (m *Manager) removeCompanions(videoRel string) {
	for _, rel := range m.deriver.Companions(videoRel) {
		if err := fileutil.RemoveIfExists(m.cfg.Abs(rel)); err != nil {
			logging.WarnWithContext(m.logger, "companion removal failed", "companion_remove_failed",
				logging.String("path", rel),
				logging.Error(err),
			)
		}
	}
}

func (m *Manager) renameEvent(entryID int64, source, target, batch string) []store.Event {
	if source == target {
		return nil
	}
	return []store.Event{{
		EntryID:     entryID,
		Action:      store.ActionRename,
		Actor:       m.actor,
		Source:      source,
		Destination: target,
		BatchID:     batch,
	}}
}
