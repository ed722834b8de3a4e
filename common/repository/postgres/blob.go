package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/models"
)

// BlobRepository handles database operations for asset blobs
type BlobRepository struct {
	q db.Querier
}

const blobColumns = `id, blob_id, storage_key, etag, size, digest, embargoed, dandiset_id, created_at`

func (r *BlobRepository) scanBlob(row interface{ Scan(dest ...any) error }) (*models.AssetBlob, error) {
	blob := &models.AssetBlob{}
	err := row.Scan(
		&blob.ID,
		&blob.BlobID,
		&blob.StorageKey,
		&blob.Etag,
		&blob.Size,
		&blob.Digest,
		&blob.Embargoed,
		&blob.DandisetID,
		&blob.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Create inserts a new asset blob
func (r *BlobRepository) Create(ctx context.Context, blob *models.AssetBlob) error {
	query := `
		INSERT INTO asset_blob (blob_id, storage_key, etag, size, digest, embargoed, dandiset_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		blob.BlobID,
		blob.StorageKey,
		blob.Etag,
		blob.Size,
		blob.Digest,
		blob.Embargoed,
		blob.DandisetID,
	).Scan(&blob.ID, &blob.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create asset blob: %w", err)
	}

	return nil
}

// GetByBlobID retrieves a blob by its external identifier
func (r *BlobRepository) GetByBlobID(ctx context.Context, blobID uuid.UUID) (*models.AssetBlob, error) {
	query := `SELECT ` + blobColumns + ` FROM asset_blob WHERE blob_id = $1`

	blob, err := r.scanBlob(r.q.QueryRow(ctx, query, blobID))
	if err != nil {
		return nil, wrapNotFound(err, "asset blob")
	}

	return blob, nil
}

// GetByDigest retrieves a blob by its computed digest
func (r *BlobRepository) GetByDigest(ctx context.Context, digest string) (*models.AssetBlob, error) {
	query := `SELECT ` + blobColumns + ` FROM asset_blob WHERE digest = $1`

	blob, err := r.scanBlob(r.q.QueryRow(ctx, query, digest))
	if err != nil {
		return nil, wrapNotFound(err, "asset blob")
	}

	return blob, nil
}

// SetDigest fills in the computed digest. Write-once: a blob that already
// has a digest is left untouched.
func (r *BlobRepository) SetDigest(ctx context.Context, blobID uuid.UUID, digest string) error {
	query := `
		UPDATE asset_blob
		SET digest = $2
		WHERE blob_id = $1 AND digest IS NULL
	`

	if _, err := r.q.Exec(ctx, query, blobID, digest); err != nil {
		return fmt.Errorf("failed to set blob digest: %w", err)
	}

	return nil
}
