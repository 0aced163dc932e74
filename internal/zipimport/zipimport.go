package zipimport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/fileutil"
	"glossvideo/internal/logging"
	"glossvideo/internal/normalize"
	"glossvideo/internal/store"
	"glossvideo/internal/videopath"
)

const component = "zipimport"

// Stage is the furthest point an import reached.
type Stage int

const (
	StageUploaded Stage = iota
	StageStructureValidated
	StageExtracted
	StageMatched
	StageImported
)

func (s Stage) String() string {
	switch s {
	case StageUploaded:
		return "uploaded"
	case StageStructureValidated:
		return "structure_validated"
	case StageExtracted:
		return "extracted"
	case StageMatched:
		return "matched"
	case StageImported:
		return "imported"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// MarshalText renders the stage name in JSON output.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Item describes one archive file and what happened to it.
type Item struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	EntryID  int64  `json:"entry_id,omitempty"`
	AssetID  int64  `json:"asset_id,omitempty"`
	Path     string `json:"path,omitempty"`
	Replaced bool   `json:"replaced,omitempty"`
	Matches  int    `json:"matches,omitempty"`
	Err      error  `json:"-"`
}

// Result summarizes an import run.
type Result struct {
	Stage     Stage  `json:"stage"`
	BatchID   string `json:"batch_id"`
	Imported  []Item `json:"imported"`
	Unmatched []Item `json:"unmatched"`
	Ambiguous []Item `json:"ambiguous"`
	Failures  []Item `json:"failures"`
}

// Importer runs zip imports.
type Importer struct {
	cfg        *config.Config
	store      *store.Store
	normalizer *normalize.Normalizer
	deriver    videopath.Deriver
	logger     *slog.Logger
	actor      string
}

// New constructs an Importer. An empty actor records events as "import".
func New(cfg *config.Config, st *store.Store, normalizer *normalize.Normalizer, logger *slog.Logger, actor string) *Importer {
	if strings.TrimSpace(actor) == "" {
		actor = "import"
	}
	return &Importer{
		cfg:        cfg,
		store:      st,
		normalizer: normalizer,
		deriver:    videopath.NewDeriver(videopath.LayoutFromConfig(cfg)),
		logger:     logging.NewComponentLogger(logger, component),
		actor:      actor,
	}
}

type pair struct {
	item   Item
	source string
	entry  *store.Entry
}

// Import validates, extracts, matches and imports archivePath into the
// dataset. A structural problem returns an error before anything is written;
// afterwards per-file problems are reported in the Result.
func (im *Importer) Import(ctx context.Context, datasetID int64, archivePath string) (Result, error) {
	result := Result{Stage: StageUploaded, BatchID: uuid.NewString()}
	dataset, err := im.store.GetDataset(ctx, datasetID)
	if err != nil {
		return result, err
	}
	if dataset == nil {
		return result, fmt.Errorf("%w: dataset %d", failure.ErrNotFound, datasetID)
	}
	logger := im.logger.With(
		logging.String(logging.FieldDataset, dataset.Acronym),
		logging.String(logging.FieldBatchID, result.BatchID),
	)

	languages, err := im.store.DatasetLanguages(ctx, datasetID)
	if err != nil {
		return result, err
	}
	codes := make(map[string]bool, len(languages))
	ids := make(map[string]int64, len(languages))
	for _, lang := range languages {
		codes[lang.Code3] = true
		ids[lang.Code3] = lang.ID
	}

	arc, err := openArchive(archivePath)
	if err != nil {
		return result, err
	}
	defer arc.Close()
	if err := arc.validate(norm.NFC.String(dataset.Acronym), codes); err != nil {
		logging.WarnWithContext(logger, "archive rejected", "zip_structure_invalid",
			logging.String("archive", filepath.Base(archivePath)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "archive must contain only {acronym}/{language}/{annotation}.{ext}"),
			logging.String(logging.FieldImpact, "nothing was imported"),
		)
		return result, err
	}
	result.Stage = StageStructureValidated

	if err := os.MkdirAll(im.cfg.ImportRoot(), 0o755); err != nil {
		return result, failure.Wrap(failure.ErrPhysicalIO, component, "extract", "Failed to create import directory", err)
	}
	workDir, err := os.MkdirTemp(im.cfg.ImportRoot(), "zip-*")
	if err != nil {
		return result, failure.Wrap(failure.ErrPhysicalIO, component, "extract", "Failed to create import directory", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()
	extracted, err := arc.extract(workDir)
	if err != nil {
		return result, err
	}
	result.Stage = StageExtracted

	var pairs []pair
	for i, m := range arc.members {
		item := Item{Name: m.name, Language: m.language}
		entries, err := im.store.EntriesByAnnotation(ctx, datasetID, ids[m.language], norm.NFC.String(m.stem))
		if err != nil {
			return result, err
		}
		switch len(entries) {
		case 0:
			item.Err = fmt.Errorf("%w: no %s annotation %q", failure.ErrMatchNotFound, m.language, m.stem)
			result.Unmatched = append(result.Unmatched, item)
		case 1:
			item.EntryID = entries[0].ID
			pairs = append(pairs, pair{item: item, source: extracted[i], entry: entries[0]})
		default:
			item.Matches = len(entries)
			item.Err = fmt.Errorf("%w: %d entries annotated %q in %s", failure.ErrAmbiguousMatch, len(entries), m.stem, m.language)
			result.Ambiguous = append(result.Ambiguous, item)
		}
	}
	result.Stage = StageMatched
	if len(result.Unmatched)+len(result.Ambiguous) > 0 {
		logging.WarnWithContext(logger, "archive files without a single matching entry", "zip_match_incomplete",
			logging.Int("unmatched", len(result.Unmatched)),
			logging.Int("ambiguous", len(result.Ambiguous)),
			logging.String(logging.FieldErrorHint, "check annotations in the archive's languages"),
			logging.String(logging.FieldImpact, "those files were not imported"),
		)
	}

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item, err := im.importPair(ctx, p, result.BatchID)
		if err != nil {
			item.Err = err
			result.Failures = append(result.Failures, item)
			logging.ErrorWithContext(logger, "import failed", "zip_import_failed",
				logging.Int64(logging.FieldEntryID, p.entry.ID),
				logging.String("file", p.item.Name),
				logging.Error(err),
			)
			continue
		}
		result.Imported = append(result.Imported, item)
	}
	result.Stage = StageImported
	logger.Info("zip import finished",
		logging.Int("imported", len(result.Imported)),
		logging.Int("unmatched", len(result.Unmatched)),
		logging.Int("ambiguous", len(result.Ambiguous)),
		logging.Int("failed", len(result.Failures)),
	)
	return result, nil
}

func (im *Importer) importPair(ctx context.Context, p pair, batchID string) (Item, error) {
	item := p.item
	id, err := im.store.Identity(ctx, p.entry.ID)
	if err != nil {
		return item, err
	}
	if err := id.Validate(); err != nil {
		return item, err
	}
	canonical, err := im.normalizer.EnsureCanonical(ctx, p.source)
	if err != nil {
		return item, err
	}
	primary, err := im.store.PrimaryAsset(ctx, p.entry.ID)
	if err != nil {
		return item, err
	}
	if primary == nil {
		primary, err = im.tombstonePrimary(ctx, p.entry.ID)
		if err != nil {
			return item, err
		}
	}

	event := store.Event{
		EntryID: p.entry.ID,
		Action:  store.ActionImport,
		Actor:   im.actor,
		Source:  item.Name,
		BatchID: batchID,
	}
	if primary != nil {
		item.Replaced = true
		previous := primary.Path
		rel := previous
		// A stored name carrying another container's extension is re-derived.
		if ext := videopath.ResolveExtension(canonical, canonical); rel == "" || videopath.ExtensionFromName(rel) != ext {
			rel, err = im.deriver.Derive(id, videopath.Primary(), 0, 0, ext)
			if err != nil {
				return item, err
			}
		}
		if err := fileutil.ReplaceFile(canonical, im.cfg.Abs(rel)); err != nil {
			return item, failure.Wrap(failure.ErrPhysicalIO, component, "overwrite", "Failed to overwrite primary video", err)
		}
		event.Destination = rel
		if previous != rel {
			primary.Path = rel
			err = im.store.UpdateAssets(ctx, []*store.Asset{primary}, event)
		} else {
			err = im.store.RecordEvent(ctx, event)
		}
		if err != nil {
			primary.Path = previous
			return item, err
		}
		if previous != "" && previous != rel {
			im.removeReplaced(primary.ID, previous)
		}
		item.AssetID, item.Path = primary.ID, rel
	} else {
		rel, err := im.deriver.Derive(id, videopath.Primary(), 0, 0, videopath.ResolveExtension(canonical, canonical))
		if err != nil {
			return item, err
		}
		asset, err := im.store.CreateAsset(ctx, store.NewAsset{EntryID: p.entry.ID, Role: videopath.Primary(), Path: rel})
		if err != nil {
			return item, err
		}
		if err := fileutil.MoveFile(canonical, im.cfg.Abs(rel)); err != nil {
			if delErr := im.store.DeleteAssets(ctx, []int64{asset.ID}); delErr != nil {
				im.logger.Error("failed to drop record after move failure", logging.Int64(logging.FieldAssetID, asset.ID), logging.Error(delErr))
			}
			return item, failure.Wrap(failure.ErrPhysicalIO, component, "place file", "Failed to move imported video into place", err)
		}
		event.Destination = rel
		if err := im.store.RecordEvent(ctx, event); err != nil {
			return item, err
		}
		item.AssetID, item.Path = asset.ID, rel
	}

	im.normalizer.MakePosterImage(ctx, item.Path)
	im.normalizer.MakeSmallVideo(ctx, item.Path)
	return item, nil
}

// removeReplaced drops the file and companions left behind at a primary's
// previous path. Failures only leave unlinked files for the auditor.
func (im *Importer) removeReplaced(assetID int64, previous string) {
	for _, rel := range append([]string{previous}, im.deriver.Companions(previous)...) {
		if err := fileutil.RemoveIfExists(im.cfg.Abs(rel)); err != nil {
			logging.WarnWithContext(im.logger, "failed to remove replaced primary file", "replaced_file_remove_failed",
				logging.Int64(logging.FieldAssetID, assetID),
				logging.String("path", rel),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file left unlinked until cleaned up"),
			)
		}
	}
}

// tombstonePrimary returns the newest primary record with an empty path, or
// nil when the entry has none.
func (im *Importer) tombstonePrimary(ctx context.Context, entryID int64) (*store.Asset, error) {
	records, err := im.store.PrimaryRecords(ctx, entryID)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.IsTombstone() {
			return record, nil
		}
	}
	return nil, nil
}

// Failed reports whether any file was left unimported.
func (r Result) Failed() bool {
	return len(r.Unmatched)+len(r.Ambiguous)+len(r.Failures) > 0
}

// ErrorText renders an item's error for reports.
func (i Item) ErrorText() string {
	if i.Err == nil {
		return ""
	}
	return i.Err.Error()
}
