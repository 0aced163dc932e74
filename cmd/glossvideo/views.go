package main

import (
	"fmt"
	"io"
	"strconv"

	"glossvideo/internal/cascade"
	"glossvideo/internal/failure"
	"glossvideo/internal/store"
)

type failureView struct {
	AssetID int64  `json:"asset_id,omitempty"`
	Path    string `json:"path,omitempty"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

func newFailureView(assetID int64, path string, err error) failureView {
	return failureView{AssetID: assetID, Path: path, Kind: failure.Kind(err), Error: errorText(err)}
}

type cascadeView struct {
	BatchID      string        `json:"batch_id"`
	Bulk         bool          `json:"bulk"`
	Moved        int           `json:"moved"`
	Unchanged    int           `json:"unchanged"`
	MetadataOnly int           `json:"metadata_only"`
	Failures     []failureView `json:"failures"`
}

func newCascadeView(result cascade.Result) cascadeView {
	view := cascadeView{
		BatchID:      result.BatchID,
		Bulk:         result.Bulk,
		Moved:        result.Moved,
		Unchanged:    result.Unchanged,
		MetadataOnly: result.MetadataOnly,
		Failures:     []failureView{},
	}
	for _, f := range result.Failures {
		view.Failures = append(view.Failures, newFailureView(f.AssetID, f.Path, f.Err))
	}
	return view
}

func printCascade(out io.Writer, label string, view cascadeView) {
	mode := "per asset"
	if view.Bulk {
		mode = "bulk directory rename"
	}
	fmt.Fprintf(out, "%s (%s): %d moved, %d unchanged, %d metadata-only, %d failed\n",
		label, mode, view.Moved, view.Unchanged, view.MetadataOnly, len(view.Failures))
	printFailures(out, view.Failures)
}

func printFailures(out io.Writer, failures []failureView) {
	if len(failures) == 0 {
		return
	}
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{formatID(f.AssetID), f.Path, f.Kind, f.Error})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Asset", "Path", "Kind", "Error"}, rows, []columnAlignment{alignRight}))
}

type assetView struct {
	ID             int64  `json:"id"`
	EntryID        int64  `json:"entry_id"`
	Role           string `json:"role"`
	Version        int    `json:"version"`
	Path           string `json:"path"`
	BackupSuffixID int64  `json:"backup_suffix_id"`
	CreatedAt      string `json:"created_at"`
}

func newAssetView(asset *store.Asset) assetView {
	return assetView{
		ID:             asset.ID,
		EntryID:        asset.EntryID,
		Role:           asset.Role.String(),
		Version:        asset.Version,
		Path:           asset.Path,
		BackupSuffixID: asset.BackupSuffixID,
		CreatedAt:      asset.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func assetRows(assets []assetView) [][]string {
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		path := a.Path
		if path == "" {
			path = "(no file)"
		}
		rows = append(rows, []string{formatID(a.ID), a.Role, strconv.Itoa(a.Version), path, a.CreatedAt})
	}
	return rows
}

func printAssets(out io.Writer, assets []assetView) {
	if len(assets) == 0 {
		fmt.Fprintln(out, "No videos")
		return
	}
	fmt.Fprintln(out, renderTable(out, []string{"ID", "Role", "Version", "Path", "Created"}, assetRows(assets),
		[]columnAlignment{alignRight, alignLeft, alignRight}))
}

func formatID(id int64) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}
