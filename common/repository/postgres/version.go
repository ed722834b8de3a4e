package postgres

import (
	"context"
	"fmt"

	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/models"
)

// VersionRepository handles database operations for versions
type VersionRepository struct {
	q db.Querier
}

const versionColumns = `id, dandiset_id, version, metadata, status, validation_errors, seq, created_at, modified_at`

func (r *VersionRepository) scanVersion(row interface{ Scan(dest ...any) error }) (*models.Version, error) {
	version := &models.Version{}
	var metadata, verrs []byte

	err := row.Scan(
		&version.ID,
		&version.DandisetID,
		&version.Version,
		&metadata,
		&version.Status,
		&verrs,
		&version.Seq,
		&version.CreatedAt,
		&version.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(metadata, &version.Metadata); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(verrs, &version.ValidationErrors); err != nil {
		return nil, err
	}

	return version, nil
}

// Create inserts a new version
func (r *VersionRepository) Create(ctx context.Context, version *models.Version) error {
	metadata, err := marshalJSON(version.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO version (dandiset_id, version, metadata, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, seq, created_at, modified_at
	`

	err = r.q.QueryRow(ctx, query,
		version.DandisetID,
		version.Version,
		metadata,
		version.Status,
	).Scan(&version.ID, &version.Seq, &version.CreatedAt, &version.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create version: %w", err)
	}

	return nil
}

// GetByID retrieves a version by its row id
func (r *VersionRepository) GetByID(ctx context.Context, id int64) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM version WHERE id = $1`

	version, err := r.scanVersion(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapNotFound(err, "version")
	}

	return version, nil
}

// GetByDandisetAndVersion retrieves a version by its unique (dandiset, version) pair
func (r *VersionRepository) GetByDandisetAndVersion(ctx context.Context, dandisetID int, versionStr string) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM version WHERE dandiset_id = $1 AND version = $2`

	version, err := r.scanVersion(r.q.QueryRow(ctx, query, dandisetID, versionStr))
	if err != nil {
		return nil, wrapNotFound(err, "version")
	}

	return version, nil
}

// MarkPending flags the version for revalidation and bumps the seq token
func (r *VersionRepository) MarkPending(ctx context.Context, versionID int64) error {
	query := `
		UPDATE version
		SET status = $2, seq = seq + 1, modified_at = NOW()
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, versionID, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark version pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("version %d: %w", versionID, models.ErrNotFound)
	}

	return nil
}

// SetStatus records the validation outcome for a version
func (r *VersionRepository) SetStatus(ctx context.Context, versionID int64, status models.ValidationStatus, verrs []models.ValidationError) error {
	if verrs == nil {
		verrs = []models.ValidationError{}
	}
	encoded, err := marshalJSON(verrs)
	if err != nil {
		return err
	}

	query := `
		UPDATE version
		SET status = $2, validation_errors = $3
		WHERE id = $1
	`

	if _, err := r.q.Exec(ctx, query, versionID, status, encoded); err != nil {
		return fmt.Errorf("failed to set version status: %w", err)
	}

	return nil
}

// CompareAndSwapMetadata writes the aggregated metadata only if the seq token
// still matches expectedSeq (optimistic lock). The write itself does not
// bump seq: seq tracks asset-set mutations, not aggregation passes.
func (r *VersionRepository) CompareAndSwapMetadata(ctx context.Context, versionID int64, expectedSeq int64, metadata models.Metadata) (bool, error) {
	encoded, err := marshalJSON(metadata)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE version
		SET metadata = $3, modified_at = NOW()
		WHERE id = $1 AND seq = $2
	`

	tag, err := r.q.Exec(ctx, query, versionID, expectedSeq, encoded)
	if err != nil {
		return false, fmt.Errorf("failed to write version metadata: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ListPendingDraftIDs returns ids of draft versions awaiting validation
func (r *VersionRepository) ListPendingDraftIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT id
		FROM version
		WHERE status = $1 AND version = $2
		ORDER BY modified_at
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, models.StatusPending, models.DraftVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending draft versions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan version id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending draft versions: %w", err)
	}

	return ids, nil
}
