package store_test

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"testing"
	"time"

	"glossvideo/internal/failure"
	"glossvideo/internal/store"
	"glossvideo/internal/testsupport"
	"glossvideo/internal/videopath"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st.Path() != cfg.Paths.DatabasePath {
		t.Fatalf("unexpected path %q", st.Path())
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st, err = store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = st.Close()
}

func TestOpenRejectsForeignSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = st.Close()

	db, err := sql.Open("sqlite", cfg.Paths.DatabasePath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	_ = db.Close()

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestIdentityUsesDefaultLanguageLemma(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dataset := testsupport.NewDataset(t, st, "NGT", "nld", "eng")
	entry := testsupport.NewEntry(t, st, dataset, "HUIS")
	eng := testsupport.MustLanguage(t, st, "eng")
	if err := st.SetLemmaTranslation(ctx, entry.LemmaID, eng.ID, "HOUSE"); err != nil {
		t.Fatalf("SetLemmaTranslation: %v", err)
	}

	id, err := st.Identity(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id.DatasetAcronym != "NGT" || id.Display != "HUIS" || id.EntryID != entry.ID {
		t.Fatalf("unexpected identity %+v", id)
	}

	if err := st.SetDefaultLanguage(ctx, dataset.ID, eng.ID); err != nil {
		t.Fatalf("SetDefaultLanguage: %v", err)
	}
	id, err = st.Identity(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id.Display != "HOUSE" {
		t.Fatalf("expected display to follow default language, got %q", id.Display)
	}

	if _, err := st.Identity(ctx, 9999); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAssetAssignsBackupSuffixID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dataset := testsupport.NewDataset(t, st, "ASL")
	entry := testsupport.NewEntry(t, st, dataset, "HELLO")

	asset, err := st.CreateAsset(ctx, store.NewAsset{EntryID: entry.ID, Role: videopath.Primary(), Path: "glossvideo/ASL/HE/HELLO-1.mp4"})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if asset.BackupSuffixID != asset.ID {
		t.Fatalf("expected suffix id %d, got %d", asset.ID, asset.BackupSuffixID)
	}

	asset.Role = videopath.Backup()
	asset.Version = 3
	if err := st.UpdateAsset(ctx, asset); err != nil {
		t.Fatalf("UpdateAsset: %v", err)
	}
	got, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if got.Role.Kind != videopath.KindBackup || got.Version != 3 || got.BackupSuffixID != asset.ID {
		t.Fatalf("unexpected asset after update %+v", got)
	}

	if _, err := st.CreateAsset(ctx, store.NewAsset{EntryID: entry.ID, Role: videopath.Backup(), Version: 0}); !errors.Is(err, failure.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestPrimaryAssetPrefersNewestLiveRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dataset := testsupport.NewDataset(t, st, "ASL")
	entry := testsupport.NewEntry(t, st, dataset, "HELLO")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := st.CreateAsset(ctx, store.NewAsset{EntryID: entry.ID, Role: videopath.Primary(), Path: "a.mp4", CreatedAt: base}); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	newer, err := st.CreateAsset(ctx, store.NewAsset{EntryID: entry.ID, Role: videopath.Primary(), Path: "b.mp4", CreatedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if _, err := st.CreateAsset(ctx, store.NewAsset{EntryID: entry.ID, Role: videopath.Primary(), CreatedAt: base.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("CreateAsset tombstone: %v", err)
	}

	primary, err := st.PrimaryAsset(ctx, entry.ID)
	if err != nil {
		t.Fatalf("PrimaryAsset: %v", err)
	}
	if primary == nil || primary.ID != newer.ID {
		t.Fatalf("expected asset %d, got %+v", newer.ID, primary)
	}
}

func TestUpdateAssetsRecordsEventsAtomically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dataset := testsupport.NewDataset(t, st, "ASL")
	entry := testsupport.NewEntry(t, st, dataset, "HELLO")
	asset := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Primary(), 0, false)

	asset.Path = "glossvideo/ASL/HE/HELLO-renamed.mp4"
	event := store.Event{EntryID: entry.ID, Action: store.ActionRename, Actor: "test", Source: "old", Destination: asset.Path, BatchID: "batch"}
	if err := st.UpdateAssets(ctx, []*store.Asset{asset}, event); err != nil {
		t.Fatalf("UpdateAssets: %v", err)
	}
	events, err := st.EventsByEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("EventsByEntry: %v", err)
	}
	if len(events) != 1 || events[0].Action != store.ActionRename || events[0].BatchID != "batch" {
		t.Fatalf("unexpected events %+v", events)
	}

	bad := *asset
	bad.Version = 2
	if err := st.UpdateAssets(ctx, []*store.Asset{&bad}, event); !errors.Is(err, failure.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	events, _ = st.EventsByEntry(ctx, entry.ID)
	if len(events) != 1 {
		t.Fatalf("expected rejected update to record nothing, got %d events", len(events))
	}
}

func TestDeleteAssets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dataset := testsupport.NewDataset(t, st, "ASL")
	entry := testsupport.NewEntry(t, st, dataset, "HELLO")
	a := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Primary(), 0, false)
	b := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Perspective(videopath.SideLeft), 0, false)

	if err := st.DeleteAssets(ctx, []int64{a.ID, b.ID}, store.Event{EntryID: entry.ID, Action: store.ActionDelete}); err != nil {
		t.Fatalf("DeleteAssets: %v", err)
	}
	if assets := testsupport.MustAssets(t, st, entry.ID); len(assets) != 0 {
		t.Fatalf("expected no assets, got %d", len(assets))
	}
}

func TestRenameDatasetRewritesPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	asl := testsupport.NewDataset(t, st, "ASL")
	other := testsupport.NewDataset(t, st, "ASLX")
	entry := testsupport.NewEntry(t, st, asl, "HELLO")
	otherEntry := testsupport.NewEntry(t, st, other, "HELLO")
	asset := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Primary(), 0, false)
	otherAsset := testsupport.NewAsset(t, cfg, st, otherEntry.ID, videopath.Primary(), 0, false)

	changed, err := st.RenameDataset(ctx, asl.ID, "BSL", "glossvideo/ASL", "glossvideo/BSL")
	if err != nil {
		t.Fatalf("RenameDataset: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected one rewritten path, got %d", changed)
	}
	got, _ := st.GetAsset(ctx, asset.ID)
	if got.Path != "glossvideo/BSL/HE/HELLO-"+strconv.FormatInt(entry.ID, 10)+".mp4" {
		t.Fatalf("unexpected rewritten path %q", got.Path)
	}
	untouched, _ := st.GetAsset(ctx, otherAsset.ID)
	if untouched.Path != otherAsset.Path {
		t.Fatalf("other dataset path changed to %q", untouched.Path)
	}
	dataset, _ := st.GetDataset(ctx, asl.ID)
	if dataset.Acronym != "BSL" {
		t.Fatalf("expected acronym BSL, got %q", dataset.Acronym)
	}
}

func TestEntriesByAnnotation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dataset := testsupport.NewDataset(t, st, "NGT", "nld")
	nld := testsupport.MustLanguage(t, st, "nld")
	first := testsupport.NewEntry(t, st, dataset, "HUIS")
	second := testsupport.NewEntry(t, st, dataset, "BOOM")
	if err := st.SetAnnotation(ctx, first.ID, nld.ID, "huis"); err != nil {
		t.Fatalf("SetAnnotation: %v", err)
	}
	if err := st.SetAnnotation(ctx, second.ID, nld.ID, "boom"); err != nil {
		t.Fatalf("SetAnnotation: %v", err)
	}

	entries, err := st.EntriesByAnnotation(ctx, dataset.ID, nld.ID, "huis")
	if err != nil {
		t.Fatalf("EntriesByAnnotation: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != first.ID {
		t.Fatalf("unexpected match %+v", entries)
	}
}
