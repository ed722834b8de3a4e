package postgres

import (
	"context"
	"fmt"

	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/models"
)

// UploadRepository handles database operations for upload-validation records
type UploadRepository struct {
	q db.Querier
}

// Create inserts a new upload record
func (r *UploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	query := `
		INSERT INTO upload (digest, object_key, state)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, modified_at
	`

	err := r.q.QueryRow(ctx, query,
		upload.Digest,
		upload.ObjectKey,
		upload.State,
	).Scan(&upload.ID, &upload.CreatedAt, &upload.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}

	return nil
}

// GetByDigest retrieves an upload record by its claimed digest
func (r *UploadRepository) GetByDigest(ctx context.Context, digest string) (*models.Upload, error) {
	query := `
		SELECT id, digest, object_key, state, error, created_at, modified_at
		FROM upload
		WHERE digest = $1
	`

	upload := &models.Upload{}
	err := r.q.QueryRow(ctx, query, digest).Scan(
		&upload.ID,
		&upload.Digest,
		&upload.ObjectKey,
		&upload.State,
		&upload.Error,
		&upload.CreatedAt,
		&upload.ModifiedAt,
	)
	if err != nil {
		return nil, wrapNotFound(err, "upload")
	}

	return upload, nil
}

// SetState transitions an upload record, recording the failure reason if any
func (r *UploadRepository) SetState(ctx context.Context, id int64, state models.UploadState, errMsg *string) error {
	query := `
		UPDATE upload
		SET state = $2, error = $3, modified_at = NOW()
		WHERE id = $1
	`

	if _, err := r.q.Exec(ctx, query, id, state, errMsg); err != nil {
		return fmt.Errorf("failed to set upload state: %w", err)
	}

	return nil
}
