package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/models"
)

// AssetRepository handles database operations for assets and their live
// version associations
type AssetRepository struct {
	q db.Querier
}

const assetColumns = `id, asset_id, path, metadata, content_kind, content_id, status, validation_errors, previous_id, size, created_at, modified_at`

func (r *AssetRepository) scanAsset(row interface{ Scan(dest ...any) error }) (*models.Asset, error) {
	asset := &models.Asset{}
	var metadata, verrs []byte
	var contentKind models.ContentKind
	var contentID uuid.UUID

	err := row.Scan(
		&asset.ID,
		&asset.AssetID,
		&asset.Path,
		&metadata,
		&contentKind,
		&contentID,
		&asset.Status,
		&verrs,
		&asset.PreviousID,
		&asset.Size,
		&asset.CreatedAt,
		&asset.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(metadata, &asset.Metadata); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(verrs, &asset.ValidationErrors); err != nil {
		return nil, err
	}

	asset.Content, err = models.NewContentRef(contentKind, contentID)
	if err != nil {
		return nil, fmt.Errorf("asset %d has corrupt content reference: %w", asset.ID, err)
	}

	return asset, nil
}

// Create inserts a new asset record
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	metadata, err := marshalJSON(asset.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO asset (asset_id, path, metadata, content_kind, content_id, status, previous_id, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, modified_at
	`

	err = r.q.QueryRow(ctx, query,
		asset.AssetID,
		asset.Path,
		metadata,
		asset.Content.Kind(),
		asset.Content.ID(),
		asset.Status,
		asset.PreviousID,
		asset.Size,
	).Scan(&asset.ID, &asset.CreatedAt, &asset.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetByRowID retrieves an asset by its internal row id
func (r *AssetRepository) GetByRowID(ctx context.Context, id int64) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM asset WHERE id = $1`

	asset, err := r.scanAsset(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapNotFound(err, "asset")
	}

	return asset, nil
}

// GetLiveByAssetID resolves the live record for an external asset id within
// one version
func (r *AssetRepository) GetLiveByAssetID(ctx context.Context, versionID int64, assetID uuid.UUID) (*models.Asset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM asset
		JOIN version_asset ON version_asset.asset_id = asset.id
		WHERE version_asset.version_id = $1 AND asset.asset_id = $2
	`

	asset, err := r.scanAsset(r.q.QueryRow(ctx, query, versionID, assetID))
	if err != nil {
		return nil, wrapNotFound(err, "asset")
	}

	return asset, nil
}

// PathExists reports whether a live asset occupies path in the version,
// ignoring excludeRowID (0 to exclude nothing)
func (r *AssetRepository) PathExists(ctx context.Context, versionID int64, path string, excludeRowID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM asset
			JOIN version_asset ON version_asset.asset_id = asset.id
			WHERE version_asset.version_id = $1 AND asset.path = $2 AND asset.id <> $3
		)
	`

	var exists bool
	if err := r.q.QueryRow(ctx, query, versionID, path, excludeRowID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check asset path: %w", err)
	}

	return exists, nil
}

// AddToVersion associates an asset with a version's live set
func (r *AssetRepository) AddToVersion(ctx context.Context, versionID, assetRowID int64) error {
	query := `INSERT INTO version_asset (version_id, asset_id) VALUES ($1, $2)`

	if _, err := r.q.Exec(ctx, query, versionID, assetRowID); err != nil {
		return fmt.Errorf("failed to add asset to version: %w", err)
	}

	return nil
}

// RemoveFromVersion removes the live association; the asset record remains
func (r *AssetRepository) RemoveFromVersion(ctx context.Context, versionID, assetRowID int64) error {
	query := `DELETE FROM version_asset WHERE version_id = $1 AND asset_id = $2`

	tag, err := r.q.Exec(ctx, query, versionID, assetRowID)
	if err != nil {
		return fmt.Errorf("failed to remove asset from version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %d not in version %d: %w", assetRowID, versionID, models.ErrNotFound)
	}

	return nil
}

// ListLiveByVersion returns the live asset set ordered by creation
func (r *AssetRepository) ListLiveByVersion(ctx context.Context, versionID int64) ([]*models.Asset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM asset
		JOIN version_asset ON version_asset.asset_id = asset.id
		WHERE version_asset.version_id = $1
		ORDER BY asset.created_at
	`

	rows, err := r.q.Query(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list version assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := r.scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version assets: %w", err)
	}

	return assets, nil
}

// ListByContentRef returns every asset backed by the given content
func (r *AssetRepository) ListByContentRef(ctx context.Context, ref models.ContentRef) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM asset WHERE content_kind = $1 AND content_id = $2`

	rows, err := r.q.Query(ctx, query, ref.Kind(), ref.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to list assets by content: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := r.scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets by content: %w", err)
	}

	return assets, nil
}

// ListPendingValidatableIDs returns row ids of PENDING assets whose backing
// content is ready: blob digest computed, or zarr COMPLETE with checksum
func (r *AssetRepository) ListPendingValidatableIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT asset.id
		FROM asset
		LEFT JOIN asset_blob ON asset.content_kind IN ('blob', 'embargoed_blob')
			AND asset_blob.blob_id = asset.content_id
		LEFT JOIN zarr_archive ON asset.content_kind = 'zarr'
			AND zarr_archive.zarr_id = asset.content_id
		WHERE asset.status = $1
			AND (asset_blob.digest IS NOT NULL
				OR (zarr_archive.status = $2 AND zarr_archive.checksum IS NOT NULL))
		ORDER BY asset.modified_at
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, models.StatusPending, models.ZarrComplete, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list validatable assets: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan asset id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validatable assets: %w", err)
	}

	return ids, nil
}

// SetStatus records the validation outcome for an asset
func (r *AssetRepository) SetStatus(ctx context.Context, assetRowID int64, status models.ValidationStatus, verrs []models.ValidationError) error {
	if verrs == nil {
		verrs = []models.ValidationError{}
	}
	encoded, err := marshalJSON(verrs)
	if err != nil {
		return err
	}

	query := `
		UPDATE asset
		SET status = $2, validation_errors = $3, modified_at = NOW()
		WHERE id = $1
	`

	if _, err := r.q.Exec(ctx, query, assetRowID, status, encoded); err != nil {
		return fmt.Errorf("failed to set asset status: %w", err)
	}

	return nil
}
