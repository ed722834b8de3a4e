package postgres

import (
	"context"
	"fmt"

	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/models"
)

// DandisetRepository handles database operations for dandisets
type DandisetRepository struct {
	q db.Querier
}

// Create inserts a new dandiset and assigns its identifier
func (r *DandisetRepository) Create(ctx context.Context, dandiset *models.Dandiset) error {
	query := `
		INSERT INTO dandiset (embargo_status)
		VALUES ($1)
		RETURNING id, created_at, modified_at
	`

	err := r.q.QueryRow(ctx, query, dandiset.EmbargoStatus).Scan(
		&dandiset.ID,
		&dandiset.CreatedAt,
		&dandiset.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dandiset: %w", err)
	}

	return nil
}

// GetByID retrieves a dandiset by its numeric identifier
func (r *DandisetRepository) GetByID(ctx context.Context, id int) (*models.Dandiset, error) {
	query := `
		SELECT id, embargo_status, created_at, modified_at
		FROM dandiset
		WHERE id = $1
	`

	dandiset := &models.Dandiset{}
	err := r.q.QueryRow(ctx, query, id).Scan(
		&dandiset.ID,
		&dandiset.EmbargoStatus,
		&dandiset.CreatedAt,
		&dandiset.ModifiedAt,
	)
	if err != nil {
		return nil, wrapNotFound(err, "dandiset")
	}

	return dandiset, nil
}
