package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"glossvideo/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "config", "validate")
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.WritableRoot)

	target := filepath.Join(t.TempDir(), "config.toml")
	out = env.mustRun(t, "config", "init", "--path", target)
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.configPath); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestDepsReportsStubbedTools(t *testing.T) {
	env := setupCLITestEnv(t)

	var view depsView
	env.mustRunJSON(t, &view, "deps")
	if len(view.Tools) != 4 {
		t.Fatalf("expected binaries and encoders, got %+v", view.Tools)
	}
	for _, status := range view.Tools {
		if !status.Available {
			t.Fatalf("expected %s available, got %q", status.Name, status.Detail)
		}
	}
	for _, dir := range view.Directories {
		if !dir.Passed {
			t.Fatalf("expected %s usable, got %q", dir.Name, dir.Detail)
		}
	}
}

func TestDatasetAndEntryLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	var dataset datasetView
	env.mustRunJSON(t, &dataset, "dataset", "add", "NGT", "--default-language", "nld", "--language", "eng")
	if dataset.Acronym != "NGT" || dataset.DefaultLanguage != "nld" || len(dataset.Languages) != 2 {
		t.Fatalf("unexpected dataset %+v", dataset)
	}
	var aliased datasetView
	env.mustRunJSON(t, &aliased, "dataset", "add", "VGT", "--default-language", "dut", "--language", "French")
	if aliased.DefaultLanguage != "nld" || len(aliased.Languages) != 2 {
		t.Fatalf("unexpected dataset %+v", aliased)
	}

	var entry entryView
	env.mustRunJSON(t, &entry, "entry", "add", "NGT", "HALLO", "--annotation", "eng=hello")
	if entry.Display != "HALLO" || entry.Dataset != "NGT" || entry.Annotations["eng"] != "hello" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	out := env.mustRun(t, "dataset", "list")
	requireContains(t, out, "NGT")
	requireContains(t, out, "eng, nld")

	if _, _, err := runCLI(t, []string{"entry", "add", "ASL", "HELLO"}, env.configPath); err == nil {
		t.Fatal("expected unknown dataset to fail")
	}
}

func TestUploadDemoteTrashAndRename(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "dataset", "add", "NGT", "--default-language", "nld")
	var entry entryView
	env.mustRunJSON(t, &entry, "entry", "add", "NGT", "HALLO")
	id := strconv.FormatInt(entry.ID, 10)

	source := filepath.Join(t.TempDir(), "take1.mp4")
	testsupport.WriteBytes(t, source, testsupport.MP4Bytes())

	var first assetView
	env.mustRunJSON(t, &first, "upload", id, source)
	wantPath := "glossvideo/NGT/HA/HALLO-" + id + ".mp4"
	if first.Path != wantPath || first.Role != "primary" {
		t.Fatalf("unexpected upload %+v", first)
	}
	testsupport.MustExist(t, env.cfg.Abs(wantPath))
	testsupport.MustExist(t, env.cfg.Abs("glossimage/NGT/HA/HALLO-"+id+".png"))

	var second assetView
	env.mustRunJSON(t, &second, "upload", id, source)
	var shown entryView
	env.mustRunJSON(t, &shown, "entry", "show", id)
	if len(shown.Assets) != 2 {
		t.Fatalf("expected primary and one backup, got %+v", shown.Assets)
	}
	backupPath := wantPath + ".bak" + strconv.FormatInt(first.ID, 10)
	var sawBackup bool
	for _, a := range shown.Assets {
		if a.Role == "backup" && a.Version == 1 && a.Path == backupPath {
			sawBackup = true
		}
	}
	if !sawBackup {
		t.Fatalf("expected demoted backup at %s, got %+v", backupPath, shown.Assets)
	}

	var trashed trashView
	env.mustRunJSON(t, &trashed, "backups", "trash", id)
	if len(trashed.Items) != 1 || trashed.Items[0].Outcome != "trashed" {
		t.Fatalf("unexpected trash result %+v", trashed)
	}
	testsupport.MustExist(t, filepath.Join(env.cfg.TrashRoot(), "NGT_HA_HALLO-"+id+".mp4.bak"+strconv.FormatInt(first.ID, 10)))

	var lemma cascadeView
	env.mustRunJSON(t, &lemma, "lemma", "set", strconv.FormatInt(entry.LemmaID, 10), "nld", "GROET")
	if lemma.Moved != 1 || len(lemma.Failures) != 0 {
		t.Fatalf("unexpected cascade %+v", lemma)
	}
	testsupport.MustExist(t, env.cfg.Abs("glossvideo/NGT/GR/GROET-"+id+".mp4"))
}

func TestImportCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "dataset", "add", "NGT", "--default-language", "nld", "--language", "eng")
	var entry entryView
	env.mustRunJSON(t, &entry, "entry", "add", "NGT", "HALLO", "--annotation", "nld=hallo")

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"NGT/nld/hallo.mp4", "NGT/eng/unknown.mp4"} {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := fw.Write(testsupport.MP4Bytes()); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	archive := filepath.Join(t.TempDir(), "videos.zip")
	testsupport.WriteBytes(t, archive, buf.Bytes())

	var result importView
	env.mustRunJSON(t, &result, "import", "NGT", archive)
	if result.Stage != "imported" || len(result.Imported) != 1 || len(result.Unmatched) != 1 {
		t.Fatalf("unexpected import %+v", result)
	}
	if result.Imported[0].EntryID != entry.ID || result.Unmatched[0].Kind != "match_not_found" {
		t.Fatalf("unexpected items %+v", result)
	}

	bad := filepath.Join(t.TempDir(), "bad.zip")
	testsupport.WriteBytes(t, bad, []byte("nope"))
	_, _, err := runCLI(t, []string{"import", "NGT", bad}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "stage uploaded") {
		t.Fatalf("expected structural failure at upload stage, got %v", err)
	}
}

func TestAuditCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "dataset", "add", "NGT", "--default-language", "nld")

	out := env.mustRun(t, "audit")
	requireContains(t, out, "No inconsistencies found")

	testsupport.WriteVideo(t, env.cfg.Abs("glossvideo/NGT/ST/STRAY-99.mp4"))
	var report struct {
		Findings map[string][]map[string]any `json:"findings"`
	}
	env.mustRunJSON(t, &report, "audit", "--dataset", "NGT")
	if len(report.Findings["unlinked_file"]) != 1 {
		t.Fatalf("expected one unlinked file, got %+v", report.Findings)
	}
	if _, _, err := runCLI(t, []string{"audit", "--strict"}, env.configPath); err == nil {
		t.Fatal("expected --strict to fail with findings")
	}
}

func TestDatasetRenameMovesVideos(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "dataset", "add", "NGT", "--default-language", "nld")
	var entry entryView
	env.mustRunJSON(t, &entry, "entry", "add", "NGT", "HALLO")
	id := strconv.FormatInt(entry.ID, 10)
	source := filepath.Join(t.TempDir(), "take.mp4")
	testsupport.WriteBytes(t, source, testsupport.MP4Bytes())
	env.mustRun(t, "upload", id, source)

	var result cascadeView
	env.mustRunJSON(t, &result, "dataset", "rename", "NGT", "NGT2")
	if !result.Bulk {
		t.Fatalf("expected bulk rename, got %+v", result)
	}
	testsupport.MustExist(t, env.cfg.Abs("glossvideo/NGT2/HA/HALLO-"+id+".mp4"))
	testsupport.MustNotExist(t, env.cfg.Abs("glossvideo/NGT/HA/HALLO-"+id+".mp4"))
}

func TestParseRole(t *testing.T) {
	if _, err := parseRole("backup", "", 0); err == nil {
		t.Fatal("expected backup role to be rejected by upload")
	}
	role, err := parseRole("nme", "left", 2)
	if err != nil {
		t.Fatalf("parseRole: %v", err)
	}
	if role.String() == "" || role.Offset != 2 {
		t.Fatalf("unexpected role %+v", role)
	}
	if _, err := parseRole("primary", "left", 0); err == nil {
		t.Fatal("expected side on primary to be rejected")
	}
}
