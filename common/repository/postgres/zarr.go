package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/models"
)

// ZarrRepository handles database operations for zarr archives and their
// per-file records
type ZarrRepository struct {
	q db.Querier
}

// Create inserts a new zarr archive
func (r *ZarrRepository) Create(ctx context.Context, archive *models.ZarrArchive) error {
	query := `
		INSERT INTO zarr_archive (zarr_id, name, dandiset_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, modified_at
	`

	err := r.q.QueryRow(ctx, query,
		archive.ZarrID,
		archive.Name,
		archive.DandisetID,
		archive.Status,
	).Scan(&archive.ID, &archive.CreatedAt, &archive.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create zarr archive: %w", err)
	}

	return nil
}

// GetByZarrID retrieves a zarr archive by its external identifier
func (r *ZarrRepository) GetByZarrID(ctx context.Context, zarrID uuid.UUID) (*models.ZarrArchive, error) {
	query := `
		SELECT id, zarr_id, name, dandiset_id, file_count, size, checksum, status, created_at, modified_at
		FROM zarr_archive
		WHERE zarr_id = $1
	`

	archive := &models.ZarrArchive{}
	err := r.q.QueryRow(ctx, query, zarrID).Scan(
		&archive.ID,
		&archive.ZarrID,
		&archive.Name,
		&archive.DandisetID,
		&archive.FileCount,
		&archive.Size,
		&archive.Checksum,
		&archive.Status,
		&archive.CreatedAt,
		&archive.ModifiedAt,
	)
	if err != nil {
		return nil, wrapNotFound(err, "zarr archive")
	}

	return archive, nil
}

// UpsertFile adds or overwrites a per-file record and adjusts the archive's
// running totals. Callers run this inside Store.WithTx so the file row and
// the totals move together.
func (r *ZarrRepository) UpsertFile(ctx context.Context, archiveID int64, file *models.ZarrFile) error {
	// Fetch the previous size so overwrites adjust rather than double-count
	var oldSize int64
	var existed bool
	err := r.q.QueryRow(ctx,
		`SELECT size FROM zarr_file WHERE zarr_archive_id = $1 AND path = $2`,
		archiveID, file.Path,
	).Scan(&oldSize)
	if err == nil {
		existed = true
	} else if err != pgx.ErrNoRows {
		return fmt.Errorf("failed to check existing zarr file: %w", err)
	}

	query := `
		INSERT INTO zarr_file (zarr_archive_id, path, etag, size, modified_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (zarr_archive_id, path)
		DO UPDATE SET etag = EXCLUDED.etag, size = EXCLUDED.size, modified_at = NOW()
		RETURNING id, modified_at
	`

	err = r.q.QueryRow(ctx, query, archiveID, file.Path, file.Etag, file.Size).
		Scan(&file.ID, &file.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert zarr file: %w", err)
	}
	file.ZarrArchiveID = archiveID

	fileDelta := int64(1)
	if existed {
		fileDelta = 0
	}

	totals := `
		UPDATE zarr_archive
		SET file_count = file_count + $2, size = size + $3, modified_at = NOW()
		WHERE id = $1
	`

	if _, err := r.q.Exec(ctx, totals, archiveID, fileDelta, file.Size-oldSize); err != nil {
		return fmt.Errorf("failed to update zarr totals: %w", err)
	}

	return nil
}

// DeleteFiles removes per-file records and adjusts running totals
func (r *ZarrRepository) DeleteFiles(ctx context.Context, archiveID int64, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	query := `
		DELETE FROM zarr_file
		WHERE zarr_archive_id = $1 AND path = ANY($2)
		RETURNING size
	`

	rows, err := r.q.Query(ctx, query, archiveID, paths)
	if err != nil {
		return fmt.Errorf("failed to delete zarr files: %w", err)
	}
	defer rows.Close()

	var removed, removedSize int64
	for rows.Next() {
		var size int64
		if err := rows.Scan(&size); err != nil {
			return fmt.Errorf("failed to scan zarr file size: %w", err)
		}
		removed++
		removedSize += size
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating deleted zarr files: %w", err)
	}
	rows.Close()

	totals := `
		UPDATE zarr_archive
		SET file_count = file_count - $2, size = size - $3, modified_at = NOW()
		WHERE id = $1
	`

	if _, err := r.q.Exec(ctx, totals, archiveID, removed, removedSize); err != nil {
		return fmt.Errorf("failed to update zarr totals: %w", err)
	}

	return nil
}

// ListFiles returns all files of an archive ordered by path
func (r *ZarrRepository) ListFiles(ctx context.Context, archiveID int64) ([]*models.ZarrFile, error) {
	query := `
		SELECT id, zarr_archive_id, path, etag, size, modified_at
		FROM zarr_file
		WHERE zarr_archive_id = $1
		ORDER BY path
	`

	rows, err := r.q.Query(ctx, query, archiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zarr files: %w", err)
	}
	defer rows.Close()

	var files []*models.ZarrFile
	for rows.Next() {
		file := &models.ZarrFile{}
		err := rows.Scan(
			&file.ID,
			&file.ZarrArchiveID,
			&file.Path,
			&file.Etag,
			&file.Size,
			&file.ModifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zarr file: %w", err)
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zarr files: %w", err)
	}

	return files, nil
}

// SetStatus transitions the archive state, recording the tree checksum when
// moving to COMPLETE
func (r *ZarrRepository) SetStatus(ctx context.Context, archiveID int64, status models.ZarrStatus, checksum *string) error {
	query := `
		UPDATE zarr_archive
		SET status = $2, checksum = $3, modified_at = NOW()
		WHERE id = $1
	`

	if _, err := r.q.Exec(ctx, query, archiveID, status, checksum); err != nil {
		return fmt.Errorf("failed to set zarr status: %w", err)
	}

	return nil
}
