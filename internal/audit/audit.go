// Package audit detects drift between stored asset records and the files
// below the video root. It never mutates anything; repairs go through the
// versioning and cascade packages.
package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"glossvideo/internal/config"
	"glossvideo/internal/fileutil"
	"glossvideo/internal/logging"
	"glossvideo/internal/store"
	"glossvideo/internal/videopath"
)

// Kind names one consistency check.
type Kind string

const (
	KindDuplicateVersion0     Kind = "duplicate_version0"
	KindNamePattern           Kind = "name_pattern"
	KindNonCanonicalExtension Kind = "non_canonical_extension"
	KindStalePrefixFolder     Kind = "stale_prefix_folder"
	KindIdentityDrift         Kind = "identity_drift"
	KindMissingFile           Kind = "missing_file"
	KindUnlinkedFile          Kind = "unlinked_file"
)

// Kinds lists every check in report order.
var Kinds = []Kind{
	KindDuplicateVersion0,
	KindNamePattern,
	KindNonCanonicalExtension,
	KindStalePrefixFolder,
	KindIdentityDrift,
	KindMissingFile,
	KindUnlinkedFile,
}

// Finding is one reported inconsistency.
type Finding struct {
	Kind     Kind   `json:"kind"`
	EntryID  int64  `json:"entry_id,omitempty"`
	AssetID  int64  `json:"asset_id,omitempty"`
	Path     string `json:"path"`
	Expected string `json:"expected,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Report groups findings by check kind.
type Report struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Assets      int                `json:"assets"`
	Files       int                `json:"files"`
	Findings    map[Kind][]Finding `json:"findings"`
}

func (r *Report) add(f Finding) {
	r.Findings[f.Kind] = append(r.Findings[f.Kind], f)
}

// Count returns the number of findings of one kind.
func (r Report) Count(kind Kind) int {
	return len(r.Findings[kind])
}

// Total returns the number of findings across all kinds.
func (r Report) Total() int {
	total := 0
	for _, findings := range r.Findings {
		total += len(findings)
	}
	return total
}

// Options scopes an audit run.
type Options struct {
	// DatasetID limits the run to one dataset when non-zero.
	DatasetID int64
}

// Auditor runs the consistency checks.
type Auditor struct {
	cfg     *config.Config
	store   *store.Store
	deriver videopath.Deriver
	logger  *slog.Logger
}

// New constructs an Auditor.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Auditor {
	return &Auditor{
		cfg:     cfg,
		store:   st,
		deriver: videopath.NewDeriver(videopath.LayoutFromConfig(cfg)),
		logger:  logging.NewComponentLogger(logger, "audit"),
	}
}

// Run executes every check and returns the report.
func (a *Auditor) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{GeneratedAt: time.Now().UTC(), Findings: map[Kind][]Finding{}}

	var (
		assets   []*store.Asset
		walkRoot = a.cfg.VideoRoot()
		err      error
	)
	if opts.DatasetID > 0 {
		dataset, err := a.store.GetDataset(ctx, opts.DatasetID)
		if err != nil {
			return report, err
		}
		if dataset == nil {
			return report, fmt.Errorf("dataset %d not found", opts.DatasetID)
		}
		assets, err = a.store.AssetsByDataset(ctx, opts.DatasetID)
		if err != nil {
			return report, err
		}
		walkRoot = filepath.Join(walkRoot, dataset.Acronym)
	} else {
		assets, err = a.store.ListAssets(ctx)
		if err != nil {
			return report, err
		}
	}
	report.Assets = len(assets)

	identities := map[int64]videopath.Identity{}
	byEntry := map[int64][]*store.Asset{}
	var entryOrder []int64
	for _, asset := range assets {
		if _, ok := byEntry[asset.EntryID]; !ok {
			entryOrder = append(entryOrder, asset.EntryID)
			id, err := a.store.Identity(ctx, asset.EntryID)
			if err != nil {
				return report, err
			}
			identities[asset.EntryID] = id
		}
		byEntry[asset.EntryID] = append(byEntry[asset.EntryID], asset)
	}

	for _, entryID := range entryOrder {
		a.checkDuplicates(&report, entryID, byEntry[entryID])
		for _, asset := range byEntry[entryID] {
			a.checkAsset(&report, asset, identities[entryID])
		}
	}

	files, err := a.checkUnlinked(ctx, &report, walkRoot, opts.DatasetID > 0, assets)
	if err != nil {
		return report, err
	}
	report.Files = files

	a.logger.Info("audit finished",
		logging.Int("assets", report.Assets),
		logging.Int("files", report.Files),
		logging.Int("findings", report.Total()),
	)
	return report, nil
}

func (a *Auditor) checkDuplicates(report *Report, entryID int64, assets []*store.Asset) {
	groups := map[string][]string{}
	var keys []string
	for _, asset := range assets {
		if asset.Version != 0 {
			continue
		}
		key := asset.Role.GroupKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], fmt.Sprintf("%d", asset.ID))
	}
	for _, key := range keys {
		if len(groups[key]) < 2 {
			continue
		}
		report.add(Finding{
			Kind:    KindDuplicateVersion0,
			EntryID: entryID,
			Path:    key,
			Detail:  "assets " + strings.Join(groups[key], ", "),
		})
	}
}

func (a *Auditor) checkAsset(report *Report, asset *store.Asset, id videopath.Identity) {
	if asset.Path == "" {
		return
	}
	base := Finding{EntryID: asset.EntryID, AssetID: asset.ID, Path: asset.Path}
	abs := a.cfg.Abs(asset.Path)
	exists := fileutil.Exists(abs)
	if !exists {
		f := base
		f.Kind = KindMissingFile
		report.add(f)
	}

	parsed, ok := videopath.Parse(asset.Path)
	if !ok || !parsed.MatchesRole(asset.EntryID, asset.Role, asset.Version, asset.BackupSuffixID) {
		f := base
		f.Kind = KindNamePattern
		f.Detail = fmt.Sprintf("%s version %d", asset.Role, asset.Version)
		report.add(f)
	}

	// A name without a parsable extension is already a name_pattern finding.
	ext := videopath.ExtensionFromName(asset.Path)
	if ext != "" && !strings.EqualFold(ext, a.cfg.Transcode.CanonicalExtension) {
		f := base
		f.Kind = KindNonCanonicalExtension
		f.Detail = ext
		report.add(f)
	}

	if ok {
		if want := videopath.TwoCharPrefix(parsed.Display); want != "" && parsed.PrefixDir != want {
			f := base
			f.Kind = KindStalePrefixFolder
			f.Expected = want
			f.Detail = "folder " + parsed.PrefixDir
			report.add(f)
		}
	}

	storedAbs := ""
	if exists {
		storedAbs = abs
	}
	expected, err := a.deriver.Expected(id, asset.Role, asset.Version, asset.BackupSuffixID, storedAbs, asset.Path)
	if err != nil {
		f := base
		f.Kind = KindIdentityDrift
		f.Detail = err.Error()
		report.add(f)
		return
	}
	if expected != asset.Path {
		f := base
		f.Kind = KindIdentityDrift
		f.Expected = expected
		report.add(f)
	}
}

func (a *Auditor) checkUnlinked(ctx context.Context, report *Report, walkRoot string, scoped bool, assets []*store.Asset) (int, error) {
	if scoped {
		// Records of other datasets may point into the walked folder.
		all, err := a.store.ListAssets(ctx)
		if err != nil {
			return 0, err
		}
		assets = all
	}
	recorded := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		if asset.Path != "" {
			recorded[path.Clean(asset.Path)] = struct{}{}
		}
	}

	files := 0
	var unlinked []string
	err := filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, os.ErrNotExist) && p == walkRoot {
				return filepath.SkipDir
			}
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		files++
		if videopath.IsDerivativeName(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(a.cfg.Paths.WritableRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := recorded[rel]; !ok {
			unlinked = append(unlinked, rel)
		}
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("walk video root: %w", err)
	}
	sort.Strings(unlinked)
	for _, rel := range unlinked {
		report.add(Finding{Kind: KindUnlinkedFile, Path: rel})
	}
	return files, nil
}
