package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository"
)

// AssetChain mutates the asset set of draft versions. Asset records are
// immutable: every change creates a fresh record linked to its predecessor,
// and the version association moves to the new record. All mutations run in
// one transaction together with the path index update and the version's
// pending mark.
type AssetChain struct {
	store repository.Store
	paths *PathIndex
	log   *logger.Logger
}

// NewAssetChain creates an asset chain service
func NewAssetChain(store repository.Store, paths *PathIndex, log *logger.Logger) *AssetChain {
	return &AssetChain{store: store, paths: paths, log: log}
}

// Attach adds a new asset to a draft version at path. The content reference
// must name exactly one existing blob, embargoed blob or zarr archive, and
// the path must be free.
func (c *AssetChain) Attach(ctx context.Context, version *models.Version, path string, metadata models.Metadata, content models.ContentRef) (*models.Asset, error) {
	if !version.IsDraft() {
		return nil, models.ErrVersionImmutable
	}
	if err := models.ValidatePath(path); err != nil {
		return nil, err
	}
	if content.IsZero() {
		return nil, models.ErrContentRefConflict
	}

	asset := &models.Asset{
		AssetID:  uuid.New(),
		Path:     path,
		Metadata: metadata.Clone(),
		Content:  content,
		Status:   models.StatusPending,
	}

	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		taken, err := tx.Assets().PathExists(ctx, version.ID, path, 0)
		if err != nil {
			return fmt.Errorf("failed to check path: %w", err)
		}
		if taken {
			return models.ErrDuplicatePath
		}

		size, err := c.resolveContent(ctx, tx, version.DandisetID, content)
		if err != nil {
			return err
		}
		asset.Size = size

		if err := tx.Assets().Create(ctx, asset); err != nil {
			return fmt.Errorf("failed to create asset: %w", err)
		}
		if err := tx.Assets().AddToVersion(ctx, version.ID, asset.ID); err != nil {
			return fmt.Errorf("failed to associate asset with version: %w", err)
		}
		if err := c.paths.AttachLeaf(ctx, tx, version.ID, path, asset.ID, size); err != nil {
			return err
		}
		return tx.Versions().MarkPending(ctx, version.ID)
	})
	if err != nil {
		return nil, err
	}

	c.log.WithVersion(version.ID).WithAsset(asset.AssetID.String()).Info("asset attached",
		"path", path,
		"content", content.String())
	return asset, nil
}

// Replace swaps the asset's path, metadata or content within a draft
// version. The external asset id survives; a new record is created and
// chained to the old one. Submitting identical path, metadata and content
// is a no-op returning the existing record.
func (c *AssetChain) Replace(ctx context.Context, version *models.Version, old *models.Asset, path string, metadata models.Metadata, content models.ContentRef) (*models.Asset, error) {
	if !version.IsDraft() {
		return nil, models.ErrVersionImmutable
	}
	if err := models.ValidatePath(path); err != nil {
		return nil, err
	}
	if content.IsZero() {
		return nil, models.ErrContentRefConflict
	}

	if old.SameContent(path, metadata, content) {
		return old, nil
	}

	replacement := &models.Asset{
		AssetID:    old.AssetID,
		Path:       path,
		Metadata:   metadata.Clone(),
		Content:    content,
		Status:     models.StatusPending,
		PreviousID: &old.ID,
	}

	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		taken, err := tx.Assets().PathExists(ctx, version.ID, path, old.ID)
		if err != nil {
			return fmt.Errorf("failed to check path: %w", err)
		}
		if taken {
			return models.ErrDuplicatePath
		}

		size, err := c.resolveContent(ctx, tx, version.DandisetID, content)
		if err != nil {
			return err
		}
		replacement.Size = size

		if err := tx.Assets().Create(ctx, replacement); err != nil {
			return fmt.Errorf("failed to create replacement asset: %w", err)
		}
		if err := tx.Assets().RemoveFromVersion(ctx, version.ID, old.ID); err != nil {
			return fmt.Errorf("failed to retire old asset: %w", err)
		}
		if err := tx.Assets().AddToVersion(ctx, version.ID, replacement.ID); err != nil {
			return fmt.Errorf("failed to associate replacement with version: %w", err)
		}
		if err := c.paths.DetachLeaf(ctx, tx, version.ID, old.Path, old.Size); err != nil {
			return err
		}
		if err := c.paths.AttachLeaf(ctx, tx, version.ID, path, replacement.ID, size); err != nil {
			return err
		}
		return tx.Versions().MarkPending(ctx, version.ID)
	})
	if err != nil {
		return nil, err
	}

	c.log.WithVersion(version.ID).WithAsset(replacement.AssetID.String()).Info("asset replaced",
		"path", path)
	return replacement, nil
}

// Detach removes the asset from a draft version. The record itself stays
// for history; only the association and the path index entry go.
func (c *AssetChain) Detach(ctx context.Context, version *models.Version, asset *models.Asset) error {
	if !version.IsDraft() {
		return models.ErrVersionImmutable
	}

	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Assets().RemoveFromVersion(ctx, version.ID, asset.ID); err != nil {
			return fmt.Errorf("failed to remove asset from version: %w", err)
		}
		if err := c.paths.DetachLeaf(ctx, tx, version.ID, asset.Path, asset.Size); err != nil {
			return err
		}
		return tx.Versions().MarkPending(ctx, version.ID)
	})
	if err != nil {
		return err
	}

	c.log.WithVersion(version.ID).WithAsset(asset.AssetID.String()).Info("asset detached",
		"path", asset.Path)
	return nil
}

// resolveContent verifies the content reference and returns the backing
// content size. Zarr archives must belong to the version's dandiset.
func (c *AssetChain) resolveContent(ctx context.Context, store repository.Store, dandisetID int, content models.ContentRef) (int64, error) {
	if content.IsZarr() {
		zarr, err := store.Zarrs().GetByZarrID(ctx, content.ID())
		if err != nil {
			return 0, fmt.Errorf("failed to resolve zarr %s: %w", content.ID(), err)
		}
		if zarr.DandisetID != dandisetID {
			return 0, models.ErrCrossDandisetZarr
		}
		return zarr.Size, nil
	}

	blob, err := store.Blobs().GetByBlobID(ctx, content.ID())
	if err != nil {
		return 0, fmt.Errorf("failed to resolve blob %s: %w", content.ID(), err)
	}
	if blob.Embargoed != (content.Kind() == models.ContentEmbargoedBlob) {
		return 0, models.ErrNotFound
	}
	return blob.Size, nil
}
