package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository"
)

// ZarrService manages multi-file zarr archives. File registrations adjust
// the archive's running totals incrementally; the full-tree checksum is
// computed once at ingest, after which the archive becomes COMPLETE and its
// referencing assets can validate. Touching the files of a COMPLETE archive
// reopens it.
type ZarrService struct {
	store  repository.Store
	engine *Engine
	log    *logger.Logger
}

// NewZarrService creates a zarr service
func NewZarrService(store repository.Store, engine *Engine, log *logger.Logger) *ZarrService {
	return &ZarrService{store: store, engine: engine, log: log}
}

// Create registers an empty zarr archive owned by the dandiset
func (s *ZarrService) Create(ctx context.Context, dandisetID int, name string) (*models.ZarrArchive, error) {
	if _, err := s.store.Dandisets().GetByID(ctx, dandisetID); err != nil {
		return nil, fmt.Errorf("failed to resolve dandiset %d: %w", dandisetID, err)
	}

	archive := &models.ZarrArchive{
		ZarrID:     uuid.New(),
		Name:       name,
		DandisetID: dandisetID,
		Status:     models.ZarrPending,
	}
	if err := s.store.Zarrs().Create(ctx, archive); err != nil {
		return nil, fmt.Errorf("failed to create zarr archive: %w", err)
	}

	s.log.WithDandiset(dandisetID).Info("zarr archive created",
		"zarr_id", archive.ZarrID,
		"name", name)
	return archive, nil
}

// Get returns the archive by external id
func (s *ZarrService) Get(ctx context.Context, zarrID uuid.UUID) (*models.ZarrArchive, error) {
	return s.store.Zarrs().GetByZarrID(ctx, zarrID)
}

// RegisterFiles records uploaded files in the archive, overwriting existing
// records at the same path. Rejected while a checksum computation is in
// flight.
func (s *ZarrService) RegisterFiles(ctx context.Context, zarrID uuid.UUID, files []models.ZarrFile) error {
	for i := range files {
		if err := models.ValidatePath(files[i].Path); err != nil {
			return err
		}
		if !models.ETagRegex.MatchString(files[i].Etag) {
			return fmt.Errorf("malformed etag %q: %w", files[i].Etag, models.ErrInvalidDigest)
		}
	}

	// The status check shares the mutation's transaction so a concurrent
	// ingest cannot complete the archive between check and write
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		archive, err := tx.Zarrs().GetByZarrID(ctx, zarrID)
		if err != nil {
			return fmt.Errorf("failed to resolve zarr %s: %w", zarrID, err)
		}
		if archive.Status == models.ZarrIngesting {
			return models.ErrZarrNotPending
		}

		for i := range files {
			if err := tx.Zarrs().UpsertFile(ctx, archive.ID, &files[i]); err != nil {
				return fmt.Errorf("failed to register zarr file %q: %w", files[i].Path, err)
			}
		}
		if archive.Status == models.ZarrComplete {
			// Modified after completion: checksum is stale, reopen
			return tx.Zarrs().SetStatus(ctx, archive.ID, models.ZarrPending, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("zarr files registered", "zarr_id", zarrID, "count", len(files))
	return nil
}

// DeleteFiles removes file records from the archive and adjusts its totals
func (s *ZarrService) DeleteFiles(ctx context.Context, zarrID uuid.UUID, paths []string) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		archive, err := tx.Zarrs().GetByZarrID(ctx, zarrID)
		if err != nil {
			return fmt.Errorf("failed to resolve zarr %s: %w", zarrID, err)
		}
		if archive.Status == models.ZarrIngesting {
			return models.ErrZarrNotPending
		}

		if err := tx.Zarrs().DeleteFiles(ctx, archive.ID, paths); err != nil {
			return fmt.Errorf("failed to delete zarr files: %w", err)
		}
		if archive.Status == models.ZarrComplete {
			return tx.Zarrs().SetStatus(ctx, archive.ID, models.ZarrPending, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("zarr files deleted", "zarr_id", zarrID, "count", len(paths))
	return nil
}

// Ingest computes the full-tree checksum and completes the archive, then
// revalidates pending assets that reference it. Idempotent: a COMPLETE
// archive is left alone.
func (s *ZarrService) Ingest(ctx context.Context, zarrID uuid.UUID) error {
	archive, err := s.store.Zarrs().GetByZarrID(ctx, zarrID)
	if err != nil {
		return fmt.Errorf("failed to resolve zarr %s: %w", zarrID, err)
	}
	if archive.Status == models.ZarrComplete {
		return nil
	}

	if err := s.store.Zarrs().SetStatus(ctx, archive.ID, models.ZarrIngesting, nil); err != nil {
		return fmt.Errorf("failed to mark zarr ingesting: %w", err)
	}

	files, err := s.store.Zarrs().ListFiles(ctx, archive.ID)
	if err != nil {
		return fmt.Errorf("failed to list zarr files: %w", err)
	}
	checksum := ZarrTreeDigest(files)

	if err := s.store.Zarrs().SetStatus(ctx, archive.ID, models.ZarrComplete, &checksum); err != nil {
		return fmt.Errorf("failed to complete zarr ingest: %w", err)
	}

	s.log.Info("zarr ingest complete",
		"zarr_id", zarrID,
		"file_count", len(files),
		"checksum", checksum)

	return s.engine.RevalidateContent(ctx, models.NewZarrRef(zarrID))
}
