package cascade

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/google/uuid"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/fileutil"
	"glossvideo/internal/logging"
	"glossvideo/internal/store"
	"glossvideo/internal/videopath"
)

const component = "cascade"

// Result counts the outcome of a cascade run.
type Result struct {
	BatchID   string
	Moved     int
	Unchanged int
	// MetadataOnly counts records whose file was missing and whose stored
	// path was corrected anyway.
	MetadataOnly int
	Failures     []Failure
	// Bulk is set when a dataset rename moved whole directories.
	Bulk bool
}

// Failure describes one asset the cascade could not move.
type Failure struct {
	AssetID int64
	Path    string
	Err     error
}

func (r *Result) merge(outcome outcome, asset *store.Asset, err error) {
	switch {
	case err != nil:
		r.Failures = append(r.Failures, Failure{AssetID: asset.ID, Path: asset.Path, Err: err})
	case outcome == outcomeMoved:
		r.Moved++
	case outcome == outcomeMetadataOnly:
		r.MetadataOnly++
	default:
		r.Unchanged++
	}
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeMoved
	outcomeMetadataOnly
)

// Handler applies identity changes to stored asset paths.
type Handler struct {
	cfg     *config.Config
	store   *store.Store
	deriver videopath.Deriver
	logger  *slog.Logger
	actor   string
}

// New constructs a Handler. actor is recorded on rename events.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, actor string) *Handler {
	if actor == "" {
		actor = "cascade"
	}
	return &Handler{
		cfg:     cfg,
		store:   st,
		deriver: videopath.NewDeriver(videopath.LayoutFromConfig(cfg)),
		logger:  logging.NewComponentLogger(logger, component),
		actor:   actor,
	}
}

// MoveAsset moves one asset and its companions to the path derived from the
// entry's current identity. It is a no-op when the stored path already
// matches. When the source file is absent the stored path is still updated.
func (h *Handler) MoveAsset(ctx context.Context, asset *store.Asset) error {
	_, err := h.moveAsset(ctx, asset, uuid.NewString())
	return err
}

func (h *Handler) moveAsset(ctx context.Context, asset *store.Asset, batch string) (outcome, error) {
	if asset.Path == "" {
		return outcomeUnchanged, nil
	}
	id, err := h.store.Identity(ctx, asset.EntryID)
	if err != nil {
		return outcomeUnchanged, err
	}
	source := asset.Path
	target, err := h.deriver.Expected(id, asset.Role, asset.Version, asset.BackupSuffixID, h.cfg.Abs(source), source)
	if err != nil {
		return outcomeUnchanged, err
	}
	if target == source {
		return outcomeUnchanged, nil
	}

	if err := h.checkTargetFree(ctx, asset, target); err != nil {
		return outcomeUnchanged, err
	}

	result := outcomeMoved
	if err := fileutil.MoveFileNoReplace(h.cfg.Abs(source), h.cfg.Abs(target)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return outcomeUnchanged, failure.Wrap(failure.ErrConsistency, component, "move asset", fmt.Sprintf("Target %s already occupied", target), err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return outcomeUnchanged, failure.Wrap(failure.ErrPhysicalIO, component, "move asset", fmt.Sprintf("Failed to move %s", source), err)
		}
		result = outcomeMetadataOnly
		logging.WarnWithContext(h.logger, "asset file missing, correcting stored path only", "asset_file_missing",
			logging.Int64(logging.FieldAssetID, asset.ID),
			logging.String("source", source),
			logging.String("target", target),
			logging.String(logging.FieldImpact, "record points at the derived location without a file"),
		)
	} else {
		h.moveCompanions(asset, source, target)
	}

	asset.Path = target
	event := store.Event{
		EntryID:     asset.EntryID,
		Action:      store.ActionRename,
		Actor:       h.actor,
		Source:      source,
		Destination: target,
		BatchID:     batch,
	}
	if err := h.store.UpdateAssets(ctx, []*store.Asset{asset}, event); err != nil {
		asset.Path = source
		return outcomeUnchanged, failure.Wrap(failure.ErrConsistency, component, "move asset", "File moved but record not updated", err)
	}
	h.logger.Debug("asset moved",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("source", source),
		logging.String("target", target),
		logging.String(logging.FieldBatchID, batch),
	)
	return result, nil
}

// checkTargetFree refuses a move onto a path held by a file or by another
// record.
func (h *Handler) checkTargetFree(ctx context.Context, asset *store.Asset, target string) error {
	if fileutil.Occupied(h.cfg.Abs(target)) {
		return failure.Wrap(failure.ErrConsistency, component, "move asset", fmt.Sprintf("Target %s already occupied", target), fs.ErrExist)
	}
	holders, err := h.store.AssetsByPath(ctx, target)
	if err != nil {
		return err
	}
	for _, other := range holders {
		if other.ID != asset.ID {
			return failure.Wrap(failure.ErrConsistency, component, "move asset",
				fmt.Sprintf("Target %s already recorded for asset %d", target, other.ID), fs.ErrExist)
		}
	}
	return nil
}

func (h *Handler) moveCompanions(asset *store.Asset, source, target string) {
	from := h.deriver.Companions(source)
	to := h.deriver.Companions(target)
	if len(from) != len(to) {
		return
	}
	for i := range from {
		if !fileutil.Exists(h.cfg.Abs(from[i])) {
			continue
		}
		if err := fileutil.MoveFile(h.cfg.Abs(from[i]), h.cfg.Abs(to[i])); err != nil {
			logging.WarnWithContext(h.logger, "companion move failed", "companion_move_failed",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.String("source", from[i]),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "regenerate derivatives for the entry"),
			)
		}
	}
}

func (h *Handler) moveAll(ctx context.Context, assets []*store.Asset, result *Result) {
	for _, asset := range assets {
		outcome, err := h.moveAsset(ctx, asset, result.BatchID)
		if err != nil {
			logging.WarnWithContext(h.logger, "asset move failed", "cascade_move_failed",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.Int64(logging.FieldEntryID, asset.EntryID),
				logging.String("path", asset.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the cause and run relocate for the entry"),
				logging.String(logging.FieldImpact, "asset keeps its previous path"),
			)
		}
		result.merge(outcome, asset, err)
	}
}

func (h *Handler) finish(op string, result Result) Result {
	h.logger.Info("cascade finished",
		logging.String("operation", op),
		logging.String(logging.FieldBatchID, result.BatchID),
		logging.Int("moved", result.Moved),
		logging.Int("unchanged", result.Unchanged),
		logging.Int("metadata_only", result.MetadataOnly),
		logging.Int("failed", len(result.Failures)),
		logging.Bool("bulk", result.Bulk),
	)
	return result
}

// RelocateEntry moves every asset of one entry to its derived path.
func (h *Handler) RelocateEntry(ctx context.Context, entryID int64) (Result, error) {
	result := Result{BatchID: uuid.NewString()}
	assets, err := h.store.AssetsByEntry(ctx, entryID)
	if err != nil {
		return result, err
	}
	h.moveAll(ctx, assets, &result)
	return h.finish("relocate entry", result), nil
}

// ChangeDefaultLanguage switches a dataset's default language and moves every
// asset of the dataset to the path derived from the new display text.
func (h *Handler) ChangeDefaultLanguage(ctx context.Context, datasetID, languageID int64) (Result, error) {
	result := Result{BatchID: uuid.NewString()}
	if err := h.store.SetDefaultLanguage(ctx, datasetID, languageID); err != nil {
		return result, err
	}
	assets, err := h.store.AssetsByDataset(ctx, datasetID)
	if err != nil {
		return result, err
	}
	h.moveAll(ctx, assets, &result)
	return h.finish("change default language", result), nil
}

// UpdateLemmaTranslation stores a lemma translation. When the language is the
// default language of the lemma's dataset, the assets of every entry using the
// lemma are moved.
func (h *Handler) UpdateLemmaTranslation(ctx context.Context, lemmaID, languageID int64, text string) (Result, error) {
	result := Result{BatchID: uuid.NewString()}
	if err := h.store.SetLemmaTranslation(ctx, lemmaID, languageID, text); err != nil {
		return result, err
	}
	entries, err := h.store.EntriesByLemma(ctx, lemmaID)
	if err != nil {
		return result, err
	}
	if len(entries) == 0 {
		return result, nil
	}
	dataset, err := h.store.GetDataset(ctx, entries[0].DatasetID)
	if err != nil {
		return result, err
	}
	if dataset == nil || dataset.DefaultLanguageID != languageID {
		return result, nil
	}
	assets, err := h.store.AssetsByLemma(ctx, lemmaID)
	if err != nil {
		return result, err
	}
	h.moveAll(ctx, assets, &result)
	return h.finish("update lemma translation", result), nil
}

// ReassignLemma points an entry at another lemma and moves its assets.
func (h *Handler) ReassignLemma(ctx context.Context, entryID, lemmaID int64) (Result, error) {
	if err := h.store.SetEntryLemma(ctx, entryID, lemmaID); err != nil {
		return Result{}, err
	}
	return h.RelocateEntry(ctx, entryID)
}

// RenameDatasetAcronym renames a dataset. The video and image directories of
// the old acronym are renamed in bulk and all stored prefixes rewritten in one
// transaction. When a target directory already exists the acronym is updated
// and every asset is moved individually instead.
func (h *Handler) RenameDatasetAcronym(ctx context.Context, datasetID int64, acronym string) (Result, error) {
	result := Result{BatchID: uuid.NewString()}
	if err := videopath.ValidateAcronym(acronym); err != nil {
		return result, err
	}
	dataset, err := h.store.GetDataset(ctx, datasetID)
	if err != nil {
		return result, err
	}
	if dataset == nil {
		return result, fmt.Errorf("%w: dataset %d", failure.ErrNotFound, datasetID)
	}
	old := dataset.Acronym
	if old == acronym {
		return result, nil
	}

	layout := h.deriver.Layout()
	roots := []string{layout.VideoDir, layout.ImageDir}
	if h.canBulkRename(roots, old, acronym) {
		moved, err := h.bulkRename(ctx, datasetID, roots, old, acronym)
		if err == nil {
			result.Bulk = true
			result.Moved = moved
			h.recordBulkEvents(ctx, datasetID, old, acronym, result.BatchID)
			return h.finish("rename dataset", result), nil
		}
		logging.WarnWithContext(h.logger, "bulk dataset rename failed, moving assets individually", "bulk_rename_failed",
			logging.String(logging.FieldDataset, old),
			logging.Error(err),
		)
	}

	if err := h.store.SetDatasetAcronym(ctx, datasetID, acronym); err != nil {
		return result, err
	}
	assets, err := h.store.AssetsByDataset(ctx, datasetID)
	if err != nil {
		return result, err
	}
	h.moveAll(ctx, assets, &result)
	return h.finish("rename dataset", result), nil
}

func (h *Handler) canBulkRename(roots []string, old, acronym string) bool {
	for _, root := range roots {
		if _, err := os.Stat(h.cfg.Abs(path.Join(root, acronym))); err == nil || !errors.Is(err, os.ErrNotExist) {
			return false
		}
	}
	return true
}

// bulkRename renames the per-dataset directories and rewrites stored
// prefixes. Directories already renamed are moved back when a later step
// fails.
func (h *Handler) bulkRename(ctx context.Context, datasetID int64, roots []string, old, acronym string) (int, error) {
	type renamed struct{ from, to string }
	var done []renamed
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if err := os.Rename(done[i].to, done[i].from); err != nil {
				logging.ErrorWithContext(h.logger, "failed to roll back directory rename", "bulk_rollback_failed",
					logging.String("directory", done[i].to),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "rename the directory back manually and run the audit"),
				)
			}
		}
	}

	for _, root := range roots {
		from := h.cfg.Abs(path.Join(root, old))
		to := h.cfg.Abs(path.Join(root, acronym))
		if _, err := os.Stat(from); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.Rename(from, to); err != nil {
			rollback()
			return 0, failure.Wrap(failure.ErrPhysicalIO, component, "bulk rename", "Failed to rename dataset directory", err)
		}
		done = append(done, renamed{from: from, to: to})
	}

	layout := h.deriver.Layout()
	moved, err := h.store.RenameDataset(ctx, datasetID, acronym, path.Join(layout.VideoDir, old), path.Join(layout.VideoDir, acronym))
	if err != nil {
		rollback()
		return 0, err
	}
	return moved, nil
}

func (h *Handler) recordBulkEvents(ctx context.Context, datasetID int64, old, acronym, batch string) {
	entries, err := h.store.EntriesByDataset(ctx, datasetID)
	if err != nil {
		h.logger.Warn("failed to list entries for rename events", logging.Error(err))
		return
	}
	layout := h.deriver.Layout()
	for _, entry := range entries {
		event := store.Event{
			EntryID:     entry.ID,
			Action:      store.ActionRename,
			Actor:       h.actor,
			Source:      path.Join(layout.VideoDir, old),
			Destination: path.Join(layout.VideoDir, acronym),
			BatchID:     batch,
		}
		if err := h.store.RecordEvent(ctx, event); err != nil {
			h.logger.Warn("failed to record rename event", logging.Int64(logging.FieldEntryID, entry.ID), logging.Error(err))
		}
	}
}
