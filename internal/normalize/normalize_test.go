package normalize_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"glossvideo/internal/failure"
	"glossvideo/internal/normalize"
	"glossvideo/internal/testsupport"
	"glossvideo/internal/videopath"
)

func TestEnsureCanonicalSkipsCanonicalFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := &testsupport.FakeTranscoder{}
	n := normalize.New(cfg, fake, nil)

	src := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteVideo(t, src)

	got, err := n.EnsureCanonical(context.Background(), src)
	if err != nil {
		t.Fatalf("EnsureCanonical: %v", err)
	}
	if got != src || len(fake.Converted) != 0 {
		t.Fatalf("expected no conversion, got %q with %d conversions", got, len(fake.Converted))
	}
}

func TestEnsureCanonicalFollowsConfiguredFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCanonicalFormat("webm", "vp9", ".webm"))
	fake := &testsupport.FakeTranscoder{}
	n := normalize.New(cfg, fake, nil)

	src := filepath.Join(t.TempDir(), "clip.webm")
	testsupport.WriteBytes(t, src, testsupport.WebMBytes())

	got, err := n.EnsureCanonical(context.Background(), src)
	if err != nil {
		t.Fatalf("EnsureCanonical: %v", err)
	}
	if got != src || len(fake.Converted) != 0 {
		t.Fatalf("expected webm to be canonical, got %q with %d conversions", got, len(fake.Converted))
	}
}

func TestEnsureCanonicalConvertsAndCleansQuarantine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := &testsupport.FakeTranscoder{}
	n := normalize.New(cfg, fake, nil)

	src := filepath.Join(t.TempDir(), "clip.webm")
	testsupport.WriteBytes(t, src, testsupport.WebMBytes())

	got, err := n.EnsureCanonical(context.Background(), src)
	if err != nil {
		t.Fatalf("EnsureCanonical: %v", err)
	}
	if filepath.Ext(got) != ".mp4" {
		t.Fatalf("expected .mp4 output, got %q", got)
	}
	if videopath.SniffExtension(got) != ".mp4" {
		t.Fatalf("expected converted content to sniff as mp4")
	}
	testsupport.MustNotExist(t, src)
	testsupport.MustNotExist(t, filepath.Join(cfg.QuarantineRoot(), "clip.webm"))
}

func TestEnsureCanonicalFailureKeepsOriginalAndQuarantine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := &testsupport.FakeTranscoder{ConvertErr: errors.New("encoder crashed")}
	n := normalize.New(cfg, fake, nil)

	dir := t.TempDir()
	src := filepath.Join(dir, "clip.webm")
	testsupport.WriteBytes(t, src, testsupport.WebMBytes())

	_, err := n.EnsureCanonical(context.Background(), src)
	if !errors.Is(err, failure.ErrTranscode) {
		t.Fatalf("expected ErrTranscode, got %v", err)
	}
	testsupport.MustExist(t, src)
	testsupport.MustExist(t, filepath.Join(cfg.QuarantineRoot(), "clip.webm"))
	testsupport.MustNotExist(t, filepath.Join(dir, "clip.mp4"))
	testsupport.MustNotExist(t, filepath.Join(dir, ".partial-clip.mp4"))
}

func TestMakePosterImageUsesMidpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := &testsupport.FakeTranscoder{FrameCount: 90, FrameRate: 30}
	n := normalize.New(cfg, fake, nil)

	rel := "glossvideo/NGT/HE/HELLO-12.mp4"
	testsupport.WriteVideo(t, cfg.Abs(rel))
	n.MakePosterImage(context.Background(), rel)

	testsupport.MustExist(t, cfg.Abs("glossimage/NGT/HE/HELLO-12.png"))
	if len(fake.Frames) != 1 || fake.Frames[0].At.Seconds() != 1.5 {
		t.Fatalf("expected one frame at 1.5s, got %+v", fake.Frames)
	}
}

func TestDerivativeFailuresAreSwallowed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := &testsupport.FakeTranscoder{FrameErr: errors.New("no frames"), ScaleErr: errors.New("no scale")}
	n := normalize.New(cfg, fake, nil)

	rel := "glossvideo/NGT/HE/HELLO-12.mp4"
	testsupport.WriteVideo(t, cfg.Abs(rel))
	n.MakePosterImage(context.Background(), rel)
	n.MakeSmallVideo(context.Background(), rel)

	testsupport.MustNotExist(t, cfg.Abs("glossimage/NGT/HE/HELLO-12.png"))
	testsupport.MustNotExist(t, cfg.Abs(videopath.SmallPath(rel)))
}

func TestMakeSmallVideo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := &testsupport.FakeTranscoder{}
	n := normalize.New(cfg, fake, nil)

	rel := "glossvideo/NGT/HE/HELLO-12.mp4"
	testsupport.WriteVideo(t, cfg.Abs(rel))
	n.MakeSmallVideo(context.Background(), rel)

	small := cfg.Abs(videopath.SmallPath(rel))
	testsupport.MustExist(t, small)
	entries, err := os.ReadDir(filepath.Dir(small))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Base(entry.Name())[0] == '.' {
			t.Fatalf("partial file left behind: %s", entry.Name())
		}
	}
}

func TestBackupsHaveNoDerivatives(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := &testsupport.FakeTranscoder{}
	n := normalize.New(cfg, fake, nil)

	n.MakePosterImage(context.Background(), "glossvideo/NGT/HE/HELLO-12.mp4.bak3")
	n.MakeSmallVideo(context.Background(), "glossvideo/NGT/HE/HELLO-12.mp4.bak3")
	if len(fake.Frames) != 0 || len(fake.Scaled) != 0 {
		t.Fatal("expected no derivative work for backups")
	}
}
