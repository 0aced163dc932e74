// Package normalize converts uploaded videos to the canonical container and
// codec and generates their poster and small companions.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/fileutil"
	"glossvideo/internal/logging"
	"glossvideo/internal/transcode"
	"glossvideo/internal/videopath"
)

const component = "normalize"

// Normalizer wraps a Transcoder with the canonical format policy.
type Normalizer struct {
	cfg        *config.Config
	transcoder transcode.Transcoder
	deriver    videopath.Deriver
	logger     *slog.Logger
}

// New constructs a Normalizer.
func New(cfg *config.Config, transcoder transcode.Transcoder, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		cfg:        cfg,
		transcoder: transcoder,
		deriver:    videopath.NewDeriver(videopath.LayoutFromConfig(cfg)),
		logger:     logging.NewComponentLogger(logger, component),
	}
}

// IsCanonical reports whether a probed file at path already has the canonical
// container, codec and extension.
func (n *Normalizer) IsCanonical(path string, probe transcode.Probe) bool {
	tc := n.cfg.Transcode
	return probe.HasContainer(tc.CanonicalContainer) &&
		strings.EqualFold(probe.VideoCodec, tc.CanonicalCodec) &&
		strings.EqualFold(filepath.Ext(path), tc.CanonicalExtension)
}

// EnsureCanonical returns the path of a canonical version of the file at
// path. Canonical files are returned unchanged. Otherwise the original is
// copied to the quarantine directory, converted to a sibling with the
// canonical extension and removed; the quarantine copy is dropped on success.
// On failure the original stays in place, the quarantine copy remains and
// the partial output is removed.
func (n *Normalizer) EnsureCanonical(ctx context.Context, path string) (string, error) {
	probe, err := n.transcoder.Probe(ctx, path)
	if err != nil {
		return "", failure.Wrap(failure.ErrTranscode, component, "probe", "Failed to inspect video", err)
	}
	if n.IsCanonical(path, probe) {
		return path, nil
	}

	quarantine, err := n.quarantine(path)
	if err != nil {
		return "", failure.Wrap(failure.ErrPhysicalIO, component, "quarantine", "Failed to preserve original before conversion", err)
	}

	target := strings.TrimSuffix(path, filepath.Ext(path)) + n.cfg.Transcode.CanonicalExtension
	partial := partialPath(target)
	started := time.Now()
	if err := n.transcoder.Convert(ctx, path, partial); err != nil {
		_ = os.Remove(partial)
		logging.WarnWithContext(n.logger, "video conversion failed", "transcode_failed",
			logging.String("source", path),
			logging.String("quarantine", quarantine),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the quarantined original with ffprobe"),
			logging.String(logging.FieldImpact, "upload rejected, no record changed"),
		)
		return "", failure.Wrap(failure.ErrTranscode, component, "convert", "Failed to convert video", err)
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		return "", failure.Wrap(failure.ErrPhysicalIO, component, "convert", "Failed to finalize converted video", err)
	}
	if target != path {
		if err := fileutil.RemoveIfExists(path); err != nil {
			n.logger.Warn("failed to remove converted original", logging.String("path", path), logging.Error(err))
		}
	}
	if err := fileutil.RemoveIfExists(quarantine); err != nil {
		n.logger.Warn("failed to remove quarantine copy", logging.String("path", quarantine), logging.Error(err))
	}
	n.logger.Info("video converted",
		logging.String("source", path),
		logging.String("target", target),
		logging.String("codec", probe.VideoCodec),
		logging.Duration("elapsed", time.Since(started)),
	)
	return target, nil
}

// MakePosterImage extracts the midpoint frame of the video at videoRel into
// its mirrored poster path. Failures are logged only.
func (n *Normalizer) MakePosterImage(ctx context.Context, videoRel string) {
	posterRel := n.deriver.PosterPath(videoRel)
	if posterRel == "" {
		return
	}
	source := n.cfg.Abs(videoRel)
	probe, err := n.transcoder.Probe(ctx, source)
	if err != nil {
		n.derivativeFailed("poster", videoRel, err)
		return
	}
	at := time.Duration(probe.MidpointSeconds() * float64(time.Second))
	target := n.cfg.Abs(posterRel)
	partial := partialPath(target)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		n.derivativeFailed("poster", videoRel, err)
		return
	}
	if err := n.transcoder.ExtractFrame(ctx, source, partial, at); err != nil {
		_ = os.Remove(partial)
		n.derivativeFailed("poster", videoRel, err)
		return
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		n.derivativeFailed("poster", videoRel, err)
		return
	}
	n.logger.Debug("poster image generated", logging.String("path", posterRel), logging.Duration("offset", at))
}

// MakeSmallVideo writes the reduced-height companion of the video at
// videoRel. Failures are logged only.
func (n *Normalizer) MakeSmallVideo(ctx context.Context, videoRel string) {
	smallRel := videopath.SmallPath(videoRel)
	if smallRel == "" {
		return
	}
	target := n.cfg.Abs(smallRel)
	partial := partialPath(target)
	if err := n.transcoder.Scale(ctx, n.cfg.Abs(videoRel), partial, n.cfg.Transcode.SmallVideoHeight); err != nil {
		_ = os.Remove(partial)
		n.derivativeFailed("small video", videoRel, err)
		return
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		n.derivativeFailed("small video", videoRel, err)
		return
	}
	n.logger.Debug("small video generated", logging.String("path", smallRel))
}

func (n *Normalizer) derivativeFailed(kind, videoRel string, err error) {
	logging.WarnWithContext(n.logger, kind+" generation failed", "derivative_failed",
		logging.String("video", videoRel),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "regenerate derivatives after fixing the video"),
		logging.String(logging.FieldImpact, "companion file missing"),
	)
}

func (n *Normalizer) quarantine(path string) (string, error) {
	dir := n.cfg.QuarantineRoot()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(path)
	target := filepath.Join(dir, base)
	for i := 1; fileutil.Exists(target); i++ {
		target = filepath.Join(dir, base+"."+strconv.Itoa(i))
	}
	if err := fileutil.CopyFile(path, target); err != nil {
		return "", fmt.Errorf("copy to quarantine: %w", err)
	}
	return target, nil
}

// partialPath keeps the extension so ffmpeg can infer the output format.
func partialPath(target string) string {
	return filepath.Join(filepath.Dir(target), ".partial-"+filepath.Base(target))
}
