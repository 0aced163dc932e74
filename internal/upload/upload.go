// Package upload stores a new video for an entry: it normalizes the file,
// retires the asset currently holding the role, and places the new file at
// its derived path with poster and small companions.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/fileutil"
	"glossvideo/internal/logging"
	"glossvideo/internal/normalize"
	"glossvideo/internal/store"
	"glossvideo/internal/versioning"
	"glossvideo/internal/videopath"
)

const component = "upload"

// Service performs uploads.
type Service struct {
	cfg        *config.Config
	store      *store.Store
	normalizer *normalize.Normalizer
	deriver    videopath.Deriver
	logger     *slog.Logger
}

// New constructs an upload Service.
func New(cfg *config.Config, st *store.Store, normalizer *normalize.Normalizer, logger *slog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		normalizer: normalizer,
		deriver:    videopath.NewDeriver(videopath.LayoutFromConfig(cfg)),
		logger:     logging.NewComponentLogger(logger, component),
	}
}

// Upload stores the file at source as the entry's video for role. The source
// file itself is never modified.
//
// A primary upload demotes the current primary and backups; a perspective or
// NME upload deletes the asset currently holding the same slot. The new record
// is written before the staged file is moved into place and removed again if
// the move fails.
func (s *Service) Upload(ctx context.Context, entryID int64, role videopath.Role, source, actor string) (*store.Asset, error) {
	if err := role.Validate(0); err != nil {
		return nil, err
	}
	if role.Kind == videopath.KindBackup {
		return nil, fmt.Errorf("%w: backups cannot be uploaded directly", failure.ErrInvalidRole)
	}
	if !fileutil.Exists(source) {
		return nil, fmt.Errorf("%w: upload source %s", failure.ErrNotFound, source)
	}
	id, err := s.store.Identity(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(actor) == "" {
		actor = "upload"
	}
	logger := s.logger.With(logging.Int64(logging.FieldEntryID, entryID), logging.String("role", role.String()))

	staged, cleanup, err := s.stage(source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	canonical, err := s.normalizer.EnsureCanonical(ctx, staged)
	if err != nil {
		return nil, err
	}

	manager := versioning.New(s.cfg, s.store, s.logger, versioning.WithActor(actor))
	if err := s.retire(ctx, manager, entryID, role); err != nil {
		return nil, err
	}

	rel, err := s.deriver.Derive(id, role, 0, 0, videopath.ResolveExtension(canonical, canonical))
	if err != nil {
		return nil, err
	}
	asset, err := s.store.CreateAsset(ctx, store.NewAsset{EntryID: entryID, Role: role, Path: rel})
	if err != nil {
		return nil, err
	}
	if err := fileutil.MoveFile(canonical, s.cfg.Abs(rel)); err != nil {
		if delErr := s.store.DeleteAssets(ctx, []int64{asset.ID}); delErr != nil {
			logger.Error("failed to drop record after move failure", logging.Error(delErr))
		}
		return nil, failure.Wrap(failure.ErrPhysicalIO, component, "place file", "Failed to move upload into place", err)
	}

	s.normalizer.MakePosterImage(ctx, rel)
	s.normalizer.MakeSmallVideo(ctx, rel)

	event := store.Event{
		EntryID:     entryID,
		Action:      store.ActionUpload,
		Actor:       actor,
		Source:      filepath.Base(source),
		Destination: rel,
		BatchID:     uuid.NewString(),
	}
	if err := s.store.RecordEvent(ctx, event); err != nil {
		return nil, err
	}
	logger.Info("video uploaded", logging.Int64(logging.FieldAssetID, asset.ID), logging.String("path", rel))
	return asset, nil
}

func (s *Service) retire(ctx context.Context, manager *versioning.Manager, entryID int64, role videopath.Role) error {
	if role.Kind == videopath.KindPrimary {
		_, err := manager.DemoteAll(ctx, entryID)
		return err
	}
	assets, err := s.store.AssetsByEntry(ctx, entryID)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		if asset.Version == 0 && asset.Role.GroupKey() == role.GroupKey() {
			if err := manager.Delete(ctx, asset); err != nil {
				return err
			}
		}
	}
	return nil
}

// stage copies source into a private directory below the writable root so
// normalization and the final move never touch the caller's file.
func (s *Service) stage(source string) (string, func(), error) {
	root := s.cfg.ImportRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", nil, failure.Wrap(failure.ErrPhysicalIO, component, "stage", "Failed to create staging directory", err)
	}
	dir, err := os.MkdirTemp(root, ".upload-*")
	if err != nil {
		return "", nil, failure.Wrap(failure.ErrPhysicalIO, component, "stage", "Failed to create staging directory", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	staged := filepath.Join(dir, filepath.Base(source))
	if err := fileutil.CopyFile(source, staged); err != nil {
		cleanup()
		return "", nil, failure.Wrap(failure.ErrPhysicalIO, component, "stage", "Failed to copy upload", err)
	}
	return staged, cleanup, nil
}
