package zipimport_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/normalize"
	"glossvideo/internal/store"
	"glossvideo/internal/testsupport"
	"glossvideo/internal/videopath"
	"glossvideo/internal/zipimport"
)

type fixture struct {
	cfg      *config.Config
	store    *store.Store
	fake     *testsupport.FakeTranscoder
	dataset  *store.Dataset
	nld      *store.Language
	eng      *store.Language
	importer *zipimport.Importer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fake := &testsupport.FakeTranscoder{FrameCount: 30, FrameRate: 30}
	dataset := testsupport.NewDataset(t, st, "NGT", "nld", "eng")
	return fixture{
		cfg:      cfg,
		store:    st,
		fake:     fake,
		dataset:  dataset,
		nld:      testsupport.MustLanguage(t, st, "nld"),
		eng:      testsupport.MustLanguage(t, st, "eng"),
		importer: zipimport.New(cfg, st, normalize.New(cfg, fake, nil), nil, "tester"),
	}
}

func (f fixture) entry(t *testing.T, display string, annotations map[*store.Language]string) *store.Entry {
	t.Helper()
	entry := testsupport.NewEntry(t, f.store, f.dataset, display)
	for lang, text := range annotations {
		if err := f.store.SetAnnotation(context.Background(), entry.ID, lang.ID, text); err != nil {
			t.Fatalf("SetAnnotation: %v", err)
		}
	}
	return entry
}

func writeArchive(t *testing.T, files map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	path := filepath.Join(t.TempDir(), "upload.zip")
	testsupport.WriteBytes(t, path, buf.Bytes())
	return path
}

func primaryPath(entry *store.Entry, display string) string {
	return "glossvideo/NGT/" + videopath.TwoCharPrefix(display) + "/" + display + "-" + strconv.FormatInt(entry.ID, 10) + ".mp4"
}

func TestImportAcceptsEveryDatasetLanguage(t *testing.T) {
	f := newFixture(t)
	hallo := f.entry(t, "HALLO", map[*store.Language]string{f.nld: "hallo"})
	bye := f.entry(t, "DAG", map[*store.Language]string{f.eng: "bye"})
	archive := writeArchive(t, map[string][]byte{
		"NGT/nld/hallo.webm": testsupport.WebMBytes(),
		"NGT/eng/bye.mp4":    testsupport.MP4Bytes(),
	})

	result, err := f.importer.Import(context.Background(), f.dataset.ID, archive)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Stage != zipimport.StageImported {
		t.Fatalf("expected imported stage, got %s", result.Stage)
	}
	if len(result.Imported) != 2 || result.Failed() {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, tc := range []struct {
		entry   *store.Entry
		display string
	}{{hallo, "HALLO"}, {bye, "DAG"}} {
		assets := testsupport.MustAssets(t, f.store, tc.entry.ID)
		if len(assets) != 1 || assets[0].Path != primaryPath(tc.entry, tc.display) {
			t.Fatalf("unexpected assets for %s: %+v", tc.display, assets)
		}
		testsupport.MustExist(t, f.cfg.Abs(assets[0].Path))
		events, err := f.store.EventsByEntry(context.Background(), tc.entry.ID)
		if err != nil {
			t.Fatalf("EventsByEntry: %v", err)
		}
		if len(events) != 1 || events[0].Action != store.ActionImport || events[0].BatchID != result.BatchID || events[0].Actor != "tester" {
			t.Fatalf("unexpected events for %s: %+v", tc.display, events)
		}
	}
	if len(f.fake.Converted) != 1 {
		t.Fatalf("expected only the webm to be converted, got %v", f.fake.Converted)
	}
	entries, err := os.ReadDir(f.cfg.ImportRoot())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected import workspace to be cleaned, found %d entries", len(entries))
	}
}

func TestImportRejectsForeignLanguageFolder(t *testing.T) {
	f := newFixture(t)
	entry := f.entry(t, "HALLO", map[*store.Language]string{f.nld: "hallo"})
	testsupport.MustLanguage(t, f.store, "fra")
	archive := writeArchive(t, map[string][]byte{
		"NGT/nld/hallo.mp4":   testsupport.MP4Bytes(),
		"NGT/eng/hallo.mp4":   testsupport.MP4Bytes(),
		"NGT/fra/bonjour.mp4": testsupport.MP4Bytes(),
	})

	result, err := f.importer.Import(context.Background(), f.dataset.ID, archive)
	if !errors.Is(err, failure.ErrStructuralValidation) {
		t.Fatalf("expected structural validation error, got %v", err)
	}
	if result.Stage != zipimport.StageUploaded {
		t.Fatalf("expected uploaded stage, got %s", result.Stage)
	}
	if assets := testsupport.MustAssets(t, f.store, entry.ID); len(assets) != 0 {
		t.Fatalf("expected nothing imported, got %+v", assets)
	}
}

func TestImportRejectsMisplacedFiles(t *testing.T) {
	cases := map[string]string{
		"top level":      "hallo.mp4",
		"acronym folder": "NGT/hallo.mp4",
		"nested":         "NGT/nld/extra/hallo.mp4",
		"other dataset":  "ASL/nld/hallo.mp4",
		"parent segment": "NGT/nld/../nld/hallo.mp4",
	}
	for name, member := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			archive := writeArchive(t, map[string][]byte{
				"NGT/nld/ok.mp4": testsupport.MP4Bytes(),
				member:           testsupport.MP4Bytes(),
			})
			if _, err := f.importer.Import(context.Background(), f.dataset.ID, archive); !errors.Is(err, failure.ErrStructuralValidation) {
				t.Fatalf("expected structural validation error, got %v", err)
			}
		})
	}
}

func TestImportRejectsEmptyAndCorruptArchives(t *testing.T) {
	f := newFixture(t)
	empty := writeArchive(t, map[string][]byte{"NGT/": nil, "NGT/nld/": nil})
	if _, err := f.importer.Import(context.Background(), f.dataset.ID, empty); !errors.Is(err, failure.ErrStructuralValidation) {
		t.Fatalf("expected structural error for empty archive, got %v", err)
	}
	corrupt := filepath.Join(t.TempDir(), "broken.zip")
	testsupport.WriteBytes(t, corrupt, []byte("not a zip"))
	if _, err := f.importer.Import(context.Background(), f.dataset.ID, corrupt); !errors.Is(err, failure.ErrStructuralValidation) {
		t.Fatalf("expected structural error for corrupt archive, got %v", err)
	}
}

func TestImportReportsUnmatchedAndAmbiguous(t *testing.T) {
	f := newFixture(t)
	matched := f.entry(t, "HALLO", map[*store.Language]string{f.nld: "hallo"})
	twinA := f.entry(t, "BANK-A", map[*store.Language]string{f.nld: "bank"})
	twinB := f.entry(t, "BANK-B", map[*store.Language]string{f.nld: "bank"})
	archive := writeArchive(t, map[string][]byte{
		"NGT/nld/hallo.mp4":    testsupport.MP4Bytes(),
		"NGT/nld/bank.mp4":     testsupport.MP4Bytes(),
		"NGT/nld/onbekend.mp4": testsupport.MP4Bytes(),
		"NGT/eng/hallo.mp4":    testsupport.MP4Bytes(),
	})

	result, err := f.importer.Import(context.Background(), f.dataset.ID, archive)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 1 || result.Imported[0].EntryID != matched.ID {
		t.Fatalf("expected only HALLO imported, got %+v", result.Imported)
	}
	if len(result.Ambiguous) != 1 || result.Ambiguous[0].Matches != 2 || !errors.Is(result.Ambiguous[0].Err, failure.ErrAmbiguousMatch) {
		t.Fatalf("unexpected ambiguous items %+v", result.Ambiguous)
	}
	if len(result.Unmatched) != 2 {
		t.Fatalf("expected the unknown and the english file unmatched, got %+v", result.Unmatched)
	}
	for _, item := range result.Unmatched {
		if !errors.Is(item.Err, failure.ErrMatchNotFound) {
			t.Fatalf("expected match-not-found, got %v", item.Err)
		}
	}
	for _, twin := range []*store.Entry{twinA, twinB} {
		if assets := testsupport.MustAssets(t, f.store, twin.ID); len(assets) != 0 {
			t.Fatalf("ambiguous entry %d should not receive a video", twin.ID)
		}
	}
}

func TestImportMatchesDecomposedFileNames(t *testing.T) {
	f := newFixture(t)
	entry := f.entry(t, "CAFE", map[*store.Language]string{f.nld: "caf\u00e9"})
	archive := writeArchive(t, map[string][]byte{
		"NGT/nld/cafe\u0301.mp4": testsupport.MP4Bytes(),
	})

	result, err := f.importer.Import(context.Background(), f.dataset.ID, archive)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 1 || result.Imported[0].EntryID != entry.ID {
		t.Fatalf("expected decomposed name to match, got %+v", result)
	}
}

func TestImportOverwritesExistingPrimary(t *testing.T) {
	f := newFixture(t)
	entry := f.entry(t, "HALLO", map[*store.Language]string{f.nld: "hallo"})
	existing := testsupport.NewAsset(t, f.cfg, f.store, entry.ID, videopath.Primary(), 0, false)
	testsupport.WriteBytes(t, f.cfg.Abs(existing.Path), []byte("old"))
	replacement := append(testsupport.MP4Bytes(), []byte("new")...)
	archive := writeArchive(t, map[string][]byte{"NGT/nld/hallo.mp4": replacement})

	result, err := f.importer.Import(context.Background(), f.dataset.ID, archive)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 1 || !result.Imported[0].Replaced || result.Imported[0].AssetID != existing.ID {
		t.Fatalf("expected existing primary to be replaced, got %+v", result.Imported)
	}
	assets := testsupport.MustAssets(t, f.store, entry.ID)
	if len(assets) != 1 || assets[0].Path != existing.Path {
		t.Fatalf("expected a single primary at %s, got %+v", existing.Path, assets)
	}
	data, err := os.ReadFile(f.cfg.Abs(existing.Path))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, replacement) {
		t.Fatalf("expected file content to be replaced")
	}
	testsupport.MustExist(t, f.cfg.Abs(videopath.SmallPath(existing.Path)))
}

func TestImportRederivesPathWhenExtensionChanges(t *testing.T) {
	f := newFixture(t)
	entry := f.entry(t, "HALLO", map[*store.Language]string{f.nld: "hallo"})
	existing := testsupport.NewAsset(t, f.cfg, f.store, entry.ID, videopath.Primary(), 0, false)
	webm := strings.TrimSuffix(existing.Path, ".mp4") + ".webm"
	existing.Path = webm
	if err := f.store.UpdateAsset(context.Background(), existing); err != nil {
		t.Fatalf("UpdateAsset: %v", err)
	}
	testsupport.WriteBytes(t, f.cfg.Abs(webm), []byte("old webm"))
	testsupport.WriteBytes(t, f.cfg.Abs(videopath.SmallPath(webm)), []byte("old small"))
	archive := writeArchive(t, map[string][]byte{"NGT/nld/hallo.mp4": testsupport.MP4Bytes()})

	result, err := f.importer.Import(context.Background(), f.dataset.ID, archive)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 1 || result.Imported[0].AssetID != existing.ID {
		t.Fatalf("expected existing primary to be replaced, got %+v", result.Imported)
	}
	asset, err := f.store.GetAsset(context.Background(), existing.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.Path != primaryPath(entry, "HALLO") {
		t.Fatalf("expected re-derived .mp4 path, got %q", asset.Path)
	}
	testsupport.MustExist(t, f.cfg.Abs(asset.Path))
	testsupport.MustNotExist(t, f.cfg.Abs(webm))
	testsupport.MustNotExist(t, f.cfg.Abs(videopath.SmallPath(webm)))

	events, err := f.store.EventsByEntry(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("EventsByEntry: %v", err)
	}
	if len(events) != 1 || events[0].Destination != asset.Path {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestImportGivesTombstonePrimaryAPath(t *testing.T) {
	f := newFixture(t)
	entry := f.entry(t, "HALLO", map[*store.Language]string{f.nld: "hallo"})
	tomb, err := f.store.CreateAsset(context.Background(), store.NewAsset{EntryID: entry.ID, Role: videopath.Primary()})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	archive := writeArchive(t, map[string][]byte{"NGT/nld/hallo.mp4": testsupport.MP4Bytes()})

	result, err := f.importer.Import(context.Background(), f.dataset.ID, archive)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 1 || result.Imported[0].AssetID != tomb.ID {
		t.Fatalf("expected tombstone to be reused, got %+v", result.Imported)
	}
	asset, err := f.store.GetAsset(context.Background(), tomb.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.Path != primaryPath(entry, "HALLO") {
		t.Fatalf("expected derived path, got %q", asset.Path)
	}
	testsupport.MustExist(t, f.cfg.Abs(asset.Path))
}

func TestImportContinuesAfterPerFileFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.ConvertErr = errors.New("encoder crashed")
	broken := f.entry(t, "HALLO", map[*store.Language]string{f.nld: "hallo"})
	fine := f.entry(t, "DAG", map[*store.Language]string{f.nld: "dag"})
	archive := writeArchive(t, map[string][]byte{
		"NGT/nld/hallo.webm": testsupport.WebMBytes(),
		"NGT/nld/dag.mp4":    testsupport.MP4Bytes(),
	})

	result, err := f.importer.Import(context.Background(), f.dataset.ID, archive)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Failures) != 1 || result.Failures[0].EntryID != broken.ID || !errors.Is(result.Failures[0].Err, failure.ErrTranscode) {
		t.Fatalf("unexpected failures %+v", result.Failures)
	}
	if len(result.Imported) != 1 || result.Imported[0].EntryID != fine.ID {
		t.Fatalf("unexpected imports %+v", result.Imported)
	}
	if assets := testsupport.MustAssets(t, f.store, broken.ID); len(assets) != 0 {
		t.Fatalf("failed entry should have no asset, got %+v", assets)
	}
}

func TestStageString(t *testing.T) {
	if got := zipimport.StageStructureValidated.String(); got != "structure_validated" {
		t.Fatalf("unexpected stage name %q", got)
	}
}
