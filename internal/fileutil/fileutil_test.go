package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestReplaceFileOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new.mp4")
	dst := filepath.Join(dir, "nested", "old.mp4")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ReplaceFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("content mismatch: got %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleanup, found %d entries", len(entries))
	}
}

func TestMoveFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	dst := filepath.Join(dir, "x", "y", "b.mp4")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if Exists(src) {
		t.Fatal("expected source to be gone")
	}
	if !Exists(dst) {
		t.Fatal("expected destination to exist")
	}
}

func TestExistsAndRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if Exists(path) || Exists("") || Exists(dir) {
		t.Fatal("expected missing, empty and directory paths to be unreachable")
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists on missing file: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Fatal("expected file to exist")
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatal(err)
	}
	if Exists(path) {
		t.Fatal("expected file removed")
	}
}

func TestMoveFileNoReplaceKeepsExistingTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a", "clip.mp4")
	dst := filepath.Join(dir, "b", "clip.mp4")
	for path, content := range map[string]string{src: "first", dst: "second"} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	err := MoveFileNoReplace(src, dst)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected fs.ErrExist, got %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "second" {
		t.Fatalf("target overwritten: %q", data)
	}
	if data, _ := os.ReadFile(src); string(data) != "first" {
		t.Fatalf("source lost: %q", data)
	}
}

func TestMoveFileNoReplaceMovesIntoFreeTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	dst := filepath.Join(dir, "nested", "clip.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := MoveFileNoReplace(src, dst); err != nil {
		t.Fatalf("MoveFileNoReplace: %v", err)
	}
	if Occupied(src) || !Occupied(dst) {
		t.Fatal("expected file at the target only")
	}
	if err := MoveFileNoReplace(src, filepath.Join(dir, "other.mp4")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist for missing source, got %v", err)
	}
}
