package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/models"
)

type assetRepo struct{ s *Store }

func copyAsset(a *models.Asset) *models.Asset {
	copied := *a
	copied.Metadata = a.Metadata.Clone()
	copied.ValidationErrors = append([]models.ValidationError(nil), a.ValidationErrors...)
	if a.PreviousID != nil {
		prev := *a.PreviousID
		copied.PreviousID = &prev
	}
	return &copied
}

func (r *assetRepo) Create(ctx context.Context, asset *models.Asset) error {
	defer r.s.lock()()
	if asset.Content.IsZero() {
		return models.ErrContentRefConflict
	}
	r.s.data.nextAssetID++
	asset.ID = r.s.data.nextAssetID
	now := time.Now()
	asset.CreatedAt = now
	asset.ModifiedAt = now
	r.s.data.assets[asset.ID] = copyAsset(asset)
	return nil
}

func (r *assetRepo) GetByRowID(ctx context.Context, id int64) (*models.Asset, error) {
	defer r.s.lock()()
	asset, ok := r.s.data.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %d: %w", id, models.ErrNotFound)
	}
	return copyAsset(asset), nil
}

func (r *assetRepo) GetLiveByAssetID(ctx context.Context, versionID int64, assetID uuid.UUID) (*models.Asset, error) {
	defer r.s.lock()()
	for rowID := range r.s.data.versionAssets[versionID] {
		asset := r.s.data.assets[rowID]
		if asset != nil && asset.AssetID == assetID {
			return copyAsset(asset), nil
		}
	}
	return nil, fmt.Errorf("asset %s: %w", assetID, models.ErrNotFound)
}

func (r *assetRepo) PathExists(ctx context.Context, versionID int64, path string, excludeRowID int64) (bool, error) {
	defer r.s.lock()()
	for rowID := range r.s.data.versionAssets[versionID] {
		if rowID == excludeRowID {
			continue
		}
		if asset := r.s.data.assets[rowID]; asset != nil && asset.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func (r *assetRepo) AddToVersion(ctx context.Context, versionID, assetRowID int64) error {
	defer r.s.lock()()
	live, ok := r.s.data.versionAssets[versionID]
	if !ok {
		return fmt.Errorf("version %d: %w", versionID, models.ErrNotFound)
	}
	live[assetRowID] = true
	return nil
}

func (r *assetRepo) RemoveFromVersion(ctx context.Context, versionID, assetRowID int64) error {
	defer r.s.lock()()
	live, ok := r.s.data.versionAssets[versionID]
	if !ok || !live[assetRowID] {
		return fmt.Errorf("asset %d not in version %d: %w", assetRowID, versionID, models.ErrNotFound)
	}
	delete(live, assetRowID)
	return nil
}

func (r *assetRepo) ListLiveByVersion(ctx context.Context, versionID int64) ([]*models.Asset, error) {
	defer r.s.lock()()
	var assets []*models.Asset
	for rowID := range r.s.data.versionAssets[versionID] {
		if asset := r.s.data.assets[rowID]; asset != nil {
			assets = append(assets, copyAsset(asset))
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].ID < assets[j].ID
		}
		return assets[i].CreatedAt.Before(assets[j].CreatedAt)
	})
	return assets, nil
}

func (r *assetRepo) ListByContentRef(ctx context.Context, ref models.ContentRef) ([]*models.Asset, error) {
	defer r.s.lock()()
	var assets []*models.Asset
	for _, asset := range r.s.data.assets {
		if asset.Content == ref {
			assets = append(assets, copyAsset(asset))
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID < assets[j].ID })
	return assets, nil
}

func (r *assetRepo) ListPendingValidatableIDs(ctx context.Context, limit int) ([]int64, error) {
	defer r.s.lock()()
	var matched []*models.Asset
	for _, asset := range r.s.data.assets {
		if asset.Status != models.StatusPending {
			continue
		}
		if r.contentReady(asset.Content) {
			matched = append(matched, asset)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ModifiedAt.Equal(matched[j].ModifiedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ModifiedAt.Before(matched[j].ModifiedAt)
	})
	var ids []int64
	for _, asset := range matched {
		if len(ids) == limit {
			break
		}
		ids = append(ids, asset.ID)
	}
	return ids, nil
}

// contentReady mirrors the validation-eligibility join of the postgres store
func (r *assetRepo) contentReady(ref models.ContentRef) bool {
	if ref.IsZarr() {
		zarr := r.s.data.zarrs[ref.ID()]
		return zarr != nil && zarr.Ready()
	}
	blob := r.s.data.blobs[ref.ID()]
	return blob != nil && blob.Ready()
}

func (r *assetRepo) SetStatus(ctx context.Context, assetRowID int64, status models.ValidationStatus, verrs []models.ValidationError) error {
	defer r.s.lock()()
	asset, ok := r.s.data.assets[assetRowID]
	if !ok {
		return fmt.Errorf("asset %d: %w", assetRowID, models.ErrNotFound)
	}
	asset.Status = status
	asset.ValidationErrors = append([]models.ValidationError(nil), verrs...)
	asset.ModifiedAt = time.Now()
	return nil
}
