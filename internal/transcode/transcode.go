package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"glossvideo/internal/config"
	"glossvideo/internal/logging"
	"glossvideo/internal/media/ffprobe"
)

// Probe summarises what the normalizer needs to know about a video file.
type Probe struct {
	Containers []string
	VideoCodec string
	Width      int
	Height     int
	FrameCount int64
	FrameRate  float64
	Duration   float64
}

// HasContainer reports whether the demuxer names include name.
func (p Probe) HasContainer(name string) bool {
	for _, candidate := range p.Containers {
		if strings.EqualFold(candidate, name) {
			return true
		}
	}
	return false
}

// MidpointSeconds returns the timestamp of the middle frame, computed from
// frame count and frame rate and falling back to half the duration.
func (p Probe) MidpointSeconds() float64 {
	if p.FrameCount > 0 && p.FrameRate > 0 {
		return float64(p.FrameCount) / p.FrameRate / 2
	}
	if p.Duration > 0 {
		return p.Duration / 2
	}
	return 0
}

// Transcoder probes and converts video files.
type Transcoder interface {
	Probe(ctx context.Context, path string) (Probe, error)
	// Convert writes src re-encoded into the canonical container and codec at dst.
	Convert(ctx context.Context, src, dst string) error
	// ExtractFrame writes the frame at the given offset of src as an image at dst.
	ExtractFrame(ctx context.Context, src, dst string, at time.Duration) error
	// Scale writes src rescaled to the given height at dst.
	Scale(ctx context.Context, src, dst string, height int) error
}

type commandRunner func(ctx context.Context, name string, args ...string) error

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// FFmpeg implements Transcoder with the ffmpeg command line tools.
type FFmpeg struct {
	ffmpegBinary  string
	ffprobeBinary string
	codec         string
	logger        *slog.Logger
	run           commandRunner
	probe         probeFunc
}

// New constructs an FFmpeg transcoder from configuration.
func New(cfg *config.Config, logger *slog.Logger) *FFmpeg {
	return &FFmpeg{
		ffmpegBinary:  cfg.Transcode.FFmpegBinary,
		ffprobeBinary: cfg.Transcode.FFprobeBinary,
		codec:         cfg.Transcode.CanonicalCodec,
		logger:        logging.NewComponentLogger(logger, "transcode"),
		run:           defaultCommandRunner,
		probe:         ffprobe.Inspect,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (f *FFmpeg) WithCommandRunner(r commandRunner) {
	if f != nil && r != nil {
		f.run = r
	}
}

// WithProbe allows injecting a custom ffprobe implementation for tests.
func (f *FFmpeg) WithProbe(p probeFunc) {
	if f != nil && p != nil {
		f.probe = p
	}
}

// Probe inspects path with ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Probe, error) {
	result, err := f.probe(ctx, f.ffprobeBinary, path)
	if err != nil {
		return Probe{}, err
	}
	probe := Probe{
		FrameCount: result.FrameCount(),
		FrameRate:  result.FrameRate(),
		Duration:   result.DurationSeconds(),
		Containers: result.Containers(),
	}
	if stream, ok := result.VideoStream(); ok {
		probe.VideoCodec = strings.ToLower(stream.CodecName)
		probe.Width = stream.Width
		probe.Height = stream.Height
	}
	if math.IsNaN(probe.Duration) {
		probe.Duration = 0
	}
	return probe, nil
}

// Convert re-encodes src as H.264 in an MP4 container.
func (f *FFmpeg) Convert(ctx context.Context, src, dst string) error {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-c:v", VideoEncoder(f.codec),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		dst,
	}
	return f.execute(ctx, "convert", src, dst, args)
}

// ExtractFrame writes a single frame of src at the given offset.
func (f *FFmpeg) ExtractFrame(ctx context.Context, src, dst string, at time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create poster directory: %w", err)
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		dst,
	}
	return f.execute(ctx, "extract frame", src, dst, args)
}

// Scale writes a copy of src with the given height, keeping the aspect ratio.
func (f *FFmpeg) Scale(ctx context.Context, src, dst string, height int) error {
	if height <= 0 {
		return fmt.Errorf("scale: invalid height %d", height)
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-vf", "scale=-2:" + strconv.Itoa(height),
		"-c:v", VideoEncoder(f.codec),
		"-pix_fmt", "yuv420p",
		"-an",
		dst,
	}
	return f.execute(ctx, "scale", src, dst, args)
}

func (f *FFmpeg) execute(ctx context.Context, operation, src, dst string, args []string) error {
	binary := strings.TrimSpace(f.ffmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	started := time.Now()
	f.logger.Debug("executing ffmpeg",
		logging.String("operation", operation),
		logging.String("source", src),
		logging.String("destination", dst),
	)
	if err := f.run(ctx, binary, args...); err != nil {
		return fmt.Errorf("ffmpeg %s: %w", operation, err)
	}
	f.logger.Debug("ffmpeg finished",
		logging.String("operation", operation),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// VideoEncoder maps a canonical codec name onto the ffmpeg encoder used for it.
func VideoEncoder(codec string) string {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "", "h264":
		return "libx264"
	case "hevc", "h265":
		return "libx265"
	default:
		return codec
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
