package testsupport

import (
	"context"
	"testing"

	"glossvideo/internal/config"
	"glossvideo/internal/store"
	"glossvideo/internal/videopath"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustLanguage returns the language with the given code, creating it first
// when needed.
func MustLanguage(t testing.TB, st *store.Store, code3 string) *store.Language {
	t.Helper()

	ctx := context.Background()
	lang, err := st.LanguageByCode(ctx, code3)
	if err != nil {
		t.Fatalf("LanguageByCode: %v", err)
	}
	if lang != nil {
		return lang
	}
	lang, err = st.CreateLanguage(ctx, code3, code3)
	if err != nil {
		t.Fatalf("CreateLanguage: %v", err)
	}
	return lang
}

// NewDataset creates a dataset whose default language is the first code and
// whose translation languages are all codes. Without codes "eng" is used.
func NewDataset(t testing.TB, st *store.Store, acronym string, codes ...string) *store.Dataset {
	t.Helper()

	if len(codes) == 0 {
		codes = []string{"eng"}
	}
	ids := make([]int64, 0, len(codes))
	for _, code := range codes {
		ids = append(ids, MustLanguage(t, st, code).ID)
	}
	dataset, err := st.CreateDataset(context.Background(), acronym, ids[0], ids[1:]...)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	return dataset
}

// NewEntry creates a lemma with the display text in the dataset's default
// language and an entry pointing at it.
func NewEntry(t testing.TB, st *store.Store, dataset *store.Dataset, display string) *store.Entry {
	t.Helper()

	ctx := context.Background()
	lemmaID, err := st.CreateLemma(ctx, dataset.ID)
	if err != nil {
		t.Fatalf("CreateLemma: %v", err)
	}
	if err := st.SetLemmaTranslation(ctx, lemmaID, dataset.DefaultLanguageID, display); err != nil {
		t.Fatalf("SetLemmaTranslation: %v", err)
	}
	entry, err := st.CreateEntry(ctx, dataset.ID, lemmaID)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	return entry
}

// NewAsset creates an asset record at its derived path. When withFile is set
// a small MP4 file is written there.
func NewAsset(t testing.TB, cfg *config.Config, st *store.Store, entryID int64, role videopath.Role, version int, withFile bool) *store.Asset {
	t.Helper()

	ctx := context.Background()
	asset, err := st.CreateAsset(ctx, store.NewAsset{EntryID: entryID, Role: role, Version: version})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	id, err := st.Identity(ctx, entryID)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	rel, err := videopath.NewDeriver(videopath.LayoutFromConfig(cfg)).Derive(id, role, version, asset.BackupSuffixID, ".mp4")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	asset.Path = rel
	if err := st.UpdateAsset(ctx, asset); err != nil {
		t.Fatalf("UpdateAsset: %v", err)
	}
	if withFile {
		WriteVideo(t, cfg.Abs(rel))
	}
	return asset
}

// MustAssets lists an entry's assets.
func MustAssets(t testing.TB, st *store.Store, entryID int64) []*store.Asset {
	t.Helper()

	assets, err := st.AssetsByEntry(context.Background(), entryID)
	if err != nil {
		t.Fatalf("AssetsByEntry: %v", err)
	}
	return assets
}
