package trash_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"glossvideo/internal/store"
	"glossvideo/internal/testsupport"
	"glossvideo/internal/trash"
	"glossvideo/internal/videopath"
)

func TestFlatName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"glossvideo/NGT/HE/HELLO-12.mp4.bak7", "NGT_HE_HELLO-12.mp4.bak7"},
		{"glossvideo/NGT/A-/A-3.mp4.bak1", "NGT_A-_A-3.mp4.bak1"},
		{"glossvideo/loose.mp4", "loose.mp4"},
	}
	for _, tc := range cases {
		if got := trash.FlatName(tc.in); got != tc.want {
			t.Fatalf("FlatName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTrashMovesReachableBackups(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	dataset := testsupport.NewDataset(t, st, "NGT")
	entry := testsupport.NewEntry(t, st, dataset, "HELLO")
	primary := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Primary(), 0, true)
	backup := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Backup(), 1, true)
	missing := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Backup(), 2, false)

	m := trash.New(cfg, st, nil, "tester")
	result := m.Trash(ctx, []*store.Asset{primary, backup, missing})

	if result.Count(trash.OutcomeTrashed) != 1 || result.Count(trash.OutcomeRecordRemoved) != 1 || result.Count(trash.OutcomeSkipped) != 1 {
		t.Fatalf("unexpected result %+v", result.Items)
	}
	want := filepath.Join(cfg.TrashRoot(), trash.FlatName(backup.Path))
	testsupport.MustExist(t, want)
	testsupport.MustNotExist(t, cfg.Abs(backup.Path))
	testsupport.MustExist(t, cfg.Abs(primary.Path))

	assets := testsupport.MustAssets(t, st, entry.ID)
	if len(assets) != 1 || assets[0].ID != primary.ID {
		t.Fatalf("expected only the primary to remain, got %+v", assets)
	}
}

func TestTrashCollisionGetsNumericSuffix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	dataset := testsupport.NewDataset(t, st, "NGT")
	entry := testsupport.NewEntry(t, st, dataset, "HELLO")
	backup := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Backup(), 1, true)
	existing := filepath.Join(cfg.TrashRoot(), trash.FlatName(backup.Path))
	testsupport.WriteFile(t, existing, 3)

	result := trash.New(cfg, st, nil, "").Trash(context.Background(), []*store.Asset{backup})
	if result.Count(trash.OutcomeTrashed) != 1 {
		t.Fatalf("unexpected result %+v", result.Items)
	}
	if got := result.Items[0].Destination; got != existing+".1" {
		t.Fatalf("expected collision suffix, got %q", got)
	}
	testsupport.MustExist(t, existing)
}

func TestTrashMoveFailureRestoresPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	dataset := testsupport.NewDataset(t, st, "NGT")
	entry := testsupport.NewEntry(t, st, dataset, "HELLO")
	first := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Backup(), 1, true)
	second := testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Backup(), 2, true)

	// A regular file where the trash directory should be makes every move fail.
	if err := os.RemoveAll(cfg.TrashRoot()); err != nil {
		t.Fatalf("remove trash root: %v", err)
	}
	testsupport.WriteFile(t, cfg.TrashRoot(), 1)

	result := trash.New(cfg, st, nil, "").Trash(ctx, []*store.Asset{first, second})
	if result.Count(trash.OutcomeFailed) != 2 {
		t.Fatalf("expected both moves to fail, got %+v", result.Items)
	}
	for _, asset := range []*store.Asset{first, second} {
		got, err := st.GetAsset(ctx, asset.ID)
		if err != nil || got == nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if got.Path != asset.Path || got.Path == "" {
			t.Fatalf("expected stored path restored, got %q", got.Path)
		}
		testsupport.MustExist(t, cfg.Abs(got.Path))
	}
}

func TestTrashEntryBackups(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	dataset := testsupport.NewDataset(t, st, "NGT")
	entry := testsupport.NewEntry(t, st, dataset, "HELLO")
	testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Primary(), 0, true)
	testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Backup(), 1, true)
	testsupport.NewAsset(t, cfg, st, entry.ID, videopath.Backup(), 2, true)

	result, err := trash.New(cfg, st, nil, "").TrashEntryBackups(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("TrashEntryBackups: %v", err)
	}
	if result.Count(trash.OutcomeTrashed) != 2 {
		t.Fatalf("unexpected result %+v", result.Items)
	}
	if assets := testsupport.MustAssets(t, st, entry.ID); len(assets) != 1 {
		t.Fatalf("expected primary only, got %d assets", len(assets))
	}
}
