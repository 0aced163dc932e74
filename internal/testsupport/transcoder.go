package testsupport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"glossvideo/internal/transcode"
	"glossvideo/internal/videopath"
)

// FakeTranscoder implements transcode.Transcoder without external tools.
// Probe reports MP4/H.264 for files sniffed as MP4 and WebM/VP9 otherwise.
type FakeTranscoder struct {
	mu sync.Mutex

	ProbeErr   error
	ConvertErr error
	FrameErr   error
	ScaleErr   error
	// FrameCount and FrameRate are reported by Probe when set.
	FrameCount int64
	FrameRate  float64
	Duration   float64

	Converted []string
	Frames    []FrameCall
	Scaled    []string
}

// FrameCall records one ExtractFrame invocation.
type FrameCall struct {
	Source      string
	Destination string
	At          time.Duration
}

var _ transcode.Transcoder = (*FakeTranscoder)(nil)

// Probe implements transcode.Transcoder.
func (f *FakeTranscoder) Probe(_ context.Context, path string) (transcode.Probe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProbeErr != nil {
		return transcode.Probe{}, f.ProbeErr
	}
	if _, err := os.Stat(path); err != nil {
		return transcode.Probe{}, err
	}
	probe := transcode.Probe{
		FrameCount: f.FrameCount,
		FrameRate:  f.FrameRate,
		Duration:   f.Duration,
		Width:      640,
		Height:     480,
	}
	if videopath.SniffExtension(path) == ".mp4" {
		probe.Containers = []string{"mov", "mp4", "m4a"}
		probe.VideoCodec = "h264"
	} else {
		probe.Containers = []string{"matroska", "webm"}
		probe.VideoCodec = "vp9"
	}
	return probe, nil
}

// Convert writes an MP4 header at dst. With ConvertErr set it leaves a
// partial file behind and fails.
func (f *FakeTranscoder) Convert(_ context.Context, src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Converted = append(f.Converted, src)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if f.ConvertErr != nil {
		_ = os.WriteFile(dst, []byte("partial"), 0o644)
		return f.ConvertErr
	}
	return os.WriteFile(dst, MP4Bytes(), 0o644)
}

// ExtractFrame writes a placeholder image at dst.
func (f *FakeTranscoder) ExtractFrame(_ context.Context, src, dst string, at time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames = append(f.Frames, FrameCall{Source: src, Destination: dst, At: at})
	if f.FrameErr != nil {
		return f.FrameErr
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("\x89PNG\r\n\x1a\n"), 0o644)
}

// Scale copies src to dst.
func (f *FakeTranscoder) Scale(_ context.Context, src, dst string, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scaled = append(f.Scaled, src)
	if f.ScaleErr != nil {
		return f.ScaleErr
	}
	if height <= 0 {
		return errors.New("invalid height")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
