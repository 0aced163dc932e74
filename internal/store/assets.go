package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"glossvideo/internal/videopath"
)

const assetColumns = `id, entry_id, role_kind, role_side, nme_offset, version, path, backup_suffix_id, created_at, updated_at`

// CreateAsset inserts an asset record. The backup suffix id is fixed to the
// record id at creation and never changes afterwards.
func (s *Store) CreateAsset(ctx context.Context, in NewAsset) (*Asset, error) {
	if err := in.Role.Validate(in.Version); err != nil {
		return nil, err
	}
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = created.UTC()
	now := time.Now().UTC()

	var asset *Asset
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            INSERT INTO video_assets (entry_id, role_kind, role_side, nme_offset, version, path, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.EntryID, string(in.Role.Kind), string(in.Role.Side), in.Role.Offset, in.Version, in.Path,
			formatTime(created), formatTime(now))
		if err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE video_assets SET backup_suffix_id = ? WHERE id = ?`, id, id); err != nil {
			return fmt.Errorf("assign backup suffix id: %w", err)
		}
		asset = &Asset{
			ID:             id,
			EntryID:        in.EntryID,
			Role:           in.Role,
			Version:        in.Version,
			Path:           in.Path,
			BackupSuffixID: id,
			CreatedAt:      created,
			UpdatedAt:      now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// GetAsset fetches an asset by id, returning nil when it does not exist.
func (s *Store) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM video_assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return asset, err
}

// AssetsByEntry lists an entry's assets ordered by version then id.
func (s *Store) AssetsByEntry(ctx context.Context, entryID int64) ([]*Asset, error) {
	return s.queryAssets(ctx, `SELECT `+assetColumns+` FROM video_assets WHERE entry_id = ? ORDER BY version, id`, entryID)
}

// AssetsByDataset lists the assets of every entry in a dataset.
func (s *Store) AssetsByDataset(ctx context.Context, datasetID int64) ([]*Asset, error) {
	return s.queryAssets(ctx, `
        SELECT a.id, a.entry_id, a.role_kind, a.role_side, a.nme_offset, a.version, a.path, a.backup_suffix_id, a.created_at, a.updated_at
        FROM video_assets a JOIN entries e ON e.id = a.entry_id
        WHERE e.dataset_id = ?
        ORDER BY a.entry_id, a.version, a.id`, datasetID)
}

// AssetsByLemma lists the assets of every entry that shares a lemma.
func (s *Store) AssetsByLemma(ctx context.Context, lemmaID int64) ([]*Asset, error) {
	return s.queryAssets(ctx, `
        SELECT a.id, a.entry_id, a.role_kind, a.role_side, a.nme_offset, a.version, a.path, a.backup_suffix_id, a.created_at, a.updated_at
        FROM video_assets a JOIN entries e ON e.id = a.entry_id
        WHERE e.lemma_id = ?
        ORDER BY a.entry_id, a.version, a.id`, lemmaID)
}

// ListAssets returns every asset ordered by entry, version and id.
func (s *Store) ListAssets(ctx context.Context) ([]*Asset, error) {
	return s.queryAssets(ctx, `SELECT `+assetColumns+` FROM video_assets ORDER BY entry_id, version, id`)
}

// AssetsByPath returns the assets whose stored path equals rel.
func (s *Store) AssetsByPath(ctx context.Context, rel string) ([]*Asset, error) {
	return s.queryAssets(ctx, `SELECT `+assetColumns+` FROM video_assets WHERE path = ? ORDER BY id`, rel)
}

// PrimaryAsset returns the live primary asset of an entry, or nil. When
// duplicates exist the most recently created one wins.
func (s *Store) PrimaryAsset(ctx context.Context, entryID int64) (*Asset, error) {
	assets, err := s.queryAssets(ctx, `
        SELECT `+assetColumns+` FROM video_assets
        WHERE entry_id = ? AND role_kind = ? AND version = 0 AND path <> ''
        ORDER BY created_at DESC, id DESC LIMIT 1`, entryID, string(videopath.KindPrimary))
	if err != nil || len(assets) == 0 {
		return nil, err
	}
	return assets[0], nil
}

// PrimaryRecords returns every version-0 primary record of an entry,
// tombstones included, newest first.
func (s *Store) PrimaryRecords(ctx context.Context, entryID int64) ([]*Asset, error) {
	return s.queryAssets(ctx, `
        SELECT `+assetColumns+` FROM video_assets
        WHERE entry_id = ? AND role_kind = ? AND version = 0
        ORDER BY created_at DESC, id DESC`, entryID, string(videopath.KindPrimary))
}

func (s *Store) queryAssets(ctx context.Context, query string, args ...any) ([]*Asset, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		asset            Asset
		kind, side       string
		created, updated string
	)
	if err := scanner.Scan(&asset.ID, &asset.EntryID, &kind, &side, &asset.Role.Offset, &asset.Version,
		&asset.Path, &asset.BackupSuffixID, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	var err error
	if asset.Role.Kind, err = videopath.ParseKind(kind); err != nil {
		return nil, fmt.Errorf("asset %d: %w", asset.ID, err)
	}
	if asset.Role.Side, err = videopath.ParseSide(side); err != nil {
		return nil, fmt.Errorf("asset %d: %w", asset.ID, err)
	}
	if t, err := parseTimeString(created); err == nil {
		asset.CreatedAt = t
	}
	if t, err := parseTimeString(updated); err == nil {
		asset.UpdatedAt = t
	}
	return &asset, nil
}

// UpdateAsset persists role, version and path of one asset.
func (s *Store) UpdateAsset(ctx context.Context, asset *Asset) error {
	return s.UpdateAssets(ctx, []*Asset{asset})
}

// UpdateAssets persists several assets and records events in one transaction.
func (s *Store) UpdateAssets(ctx context.Context, assets []*Asset, events ...Event) error {
	return s.CommitAssets(ctx, assets, nil, events...)
}

// CommitAssets updates assets, deletes the records in deleteIDs and records
// events in one transaction.
func (s *Store) CommitAssets(ctx context.Context, assets []*Asset, deleteIDs []int64, events ...Event) error {
	if len(assets) == 0 && len(deleteIDs) == 0 && len(events) == 0 {
		return nil
	}
	for _, asset := range assets {
		if err := asset.Role.Validate(asset.Version); err != nil {
			return fmt.Errorf("asset %d: %w", asset.ID, err)
		}
	}
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteAssetsTx(ctx, tx, deleteIDs); err != nil {
			return err
		}
		for _, asset := range assets {
			if err := updateAssetTx(ctx, tx, asset, now); err != nil {
				return err
			}
		}
		return insertEventsTx(ctx, tx, events, now)
	})
	if err != nil {
		return err
	}
	for _, asset := range assets {
		asset.UpdatedAt = now
	}
	return nil
}

func updateAssetTx(ctx context.Context, tx *sql.Tx, asset *Asset, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
        UPDATE video_assets
        SET role_kind = ?, role_side = ?, nme_offset = ?, version = ?, path = ?, updated_at = ?
        WHERE id = ?`,
		string(asset.Role.Kind), string(asset.Role.Side), asset.Role.Offset, asset.Version, asset.Path,
		formatTime(now), asset.ID)
	if err != nil {
		return fmt.Errorf("update asset %d: %w", asset.ID, err)
	}
	return nil
}

// DeleteAssets removes asset records and records events in one transaction.
func (s *Store) DeleteAssets(ctx context.Context, ids []int64, events ...Event) error {
	return s.CommitAssets(ctx, nil, ids, events...)
}

func deleteAssetsTx(ctx context.Context, tx *sql.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `DELETE FROM video_assets WHERE id IN (` + makePlaceholders(len(ids)) + `)`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	return nil
}

// RenameDataset sets a dataset's acronym and rewrites the stored path prefix
// of all its assets in one transaction. It returns the number of assets whose
// path changed.
func (s *Store) RenameDataset(ctx context.Context, datasetID int64, acronym, oldPrefix, newPrefix string) (int, error) {
	acronym = strings.TrimSpace(acronym)
	if acronym == "" {
		return 0, errors.New("dataset acronym must not be empty")
	}
	oldPrefix = strings.TrimSuffix(oldPrefix, "/") + "/"
	newPrefix = strings.TrimSuffix(newPrefix, "/") + "/"

	var changed int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		changed = 0
		if _, err := tx.ExecContext(ctx, `UPDATE datasets SET acronym = ? WHERE id = ?`, acronym, datasetID); err != nil {
			return fmt.Errorf("update dataset acronym: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
            UPDATE video_assets
            SET path = ? || substr(path, ?), updated_at = ?
            WHERE substr(path, 1, ?) = ?
              AND entry_id IN (SELECT id FROM entries WHERE dataset_id = ?)`,
			newPrefix, len(oldPrefix)+1, formatTime(time.Now()), len(oldPrefix), oldPrefix, datasetID)
		if err != nil {
			return fmt.Errorf("rewrite asset paths: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		changed = int(n)
		return nil
	})
	return changed, err
}
