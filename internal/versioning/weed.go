package versioning

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"glossvideo/internal/failure"
	"glossvideo/internal/fileutil"
	"glossvideo/internal/logging"
	"glossvideo/internal/store"
)

// WeedResult reports the outcome of WeedOutDuplicateVersion0.
type WeedResult struct {
	// Kept holds the surviving asset id per role group that had duplicates.
	Kept    map[string]int64
	Deleted []int64
}

// WeedOutDuplicateVersion0 resolves role groups where more than one asset
// claims version 0. Unreachable claimants are deleted first, then all but the
// most recently created remaining one. The survivor's file is untouched; a
// loser's file is only removed when it is not the survivor's path. When no
// claimant has a reachable file the newest record is kept as a tombstone.
func (m *Manager) WeedOutDuplicateVersion0(ctx context.Context, entryID int64) (WeedResult, error) {
	result := WeedResult{Kept: map[string]int64{}}
	assets, err := m.store.AssetsByEntry(ctx, entryID)
	if err != nil {
		return result, err
	}

	groups := map[string][]*store.Asset{}
	var keys []string
	for _, asset := range assets {
		if asset.Version != 0 {
			continue
		}
		key := asset.Role.GroupKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], asset)
	}

	batch := uuid.NewString()
	for _, key := range keys {
		claimants := groups[key]
		if len(claimants) < 2 {
			continue
		}
		newestFirst(claimants)

		var reachable, unreachable []*store.Asset
		for _, asset := range claimants {
			if asset.Path != "" && fileutil.Exists(m.cfg.Abs(asset.Path)) {
				reachable = append(reachable, asset)
			} else {
				unreachable = append(unreachable, asset)
			}
		}

		var survivor *store.Asset
		var losers []*store.Asset
		if len(reachable) == 0 {
			survivor = claimants[0]
			losers = claimants[1:]
		} else {
			survivor = reachable[0]
			losers = append(unreachable, reachable[1:]...)
		}

		for _, loser := range losers {
			if err := m.weedAsset(ctx, loser, survivor, batch); err != nil {
				return result, err
			}
			result.Deleted = append(result.Deleted, loser.ID)
		}
		result.Kept[key] = survivor.ID
		m.logger.Info("duplicate version 0 assets weeded",
			logging.Int64(logging.FieldEntryID, entryID),
			logging.String("role_group", key),
			logging.Int64("kept_asset_id", survivor.ID),
			logging.Int("deleted", len(losers)),
			logging.String(logging.FieldBatchID, batch),
		)
	}
	return result, nil
}

func (m *Manager) weedAsset(ctx context.Context, loser, survivor *store.Asset, batch string) error {
	if loser.Path != "" && loser.Path != survivor.Path {
		if err := fileutil.RemoveIfExists(m.cfg.Abs(loser.Path)); err != nil {
			return failure.Wrap(failure.ErrPhysicalIO, component, "weed", "Failed to remove duplicate file", err)
		}
		survivorCompanions := map[string]bool{}
		for _, rel := range m.deriver.Companions(survivor.Path) {
			survivorCompanions[rel] = true
		}
		for _, rel := range m.deriver.Companions(loser.Path) {
			if survivorCompanions[rel] {
				continue
			}
			if err := fileutil.RemoveIfExists(m.cfg.Abs(rel)); err != nil {
				return failure.Wrap(failure.ErrPhysicalIO, component, "weed", "Failed to remove duplicate companion", err)
			}
		}
	}
	event := store.Event{
		EntryID: loser.EntryID,
		Action:  store.ActionDelete,
		Actor:   m.actor,
		Source:  loser.Path,
		BatchID: batch,
	}
	return m.store.DeleteAssets(ctx, []int64{loser.ID}, event)
}

func newestFirst(assets []*store.Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		if !assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].CreatedAt.After(assets[j].CreatedAt)
		}
		return assets[i].ID > assets[j].ID
	})
}
