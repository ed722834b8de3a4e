package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository"
)

// Store is the Postgres-backed repository bundle. The zero-field distinction
// matters: a Store built by NewStore queries through the pool, while a Store
// handed to a WithTx callback queries through the open transaction.
type Store struct {
	database *db.DB // nil inside a transaction
	q        db.Querier
}

// NewStore creates a store backed by the connection pool
func NewStore(database *db.DB) *Store {
	return &Store{database: database, q: database.Pool}
}

func (s *Store) Dandisets() repository.DandisetRepository { return &DandisetRepository{q: s.q} }
func (s *Store) Versions() repository.VersionRepository   { return &VersionRepository{q: s.q} }
func (s *Store) Assets() repository.AssetRepository       { return &AssetRepository{q: s.q} }
func (s *Store) Blobs() repository.BlobRepository         { return &BlobRepository{q: s.q} }
func (s *Store) Zarrs() repository.ZarrRepository         { return &ZarrRepository{q: s.q} }
func (s *Store) Paths() repository.PathRepository         { return &PathRepository{q: s.q} }
func (s *Store) Uploads() repository.UploadRepository     { return &UploadRepository{q: s.q} }

// WithTx runs fn inside a serializable transaction. Nested calls reuse the
// enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.database == nil {
		return fn(s)
	}
	return s.database.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		return fn(&Store{q: tx})
	})
}

// marshalJSON encodes metadata and validation-error columns for jsonb storage
func marshalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb column: %w", err)
	}
	return raw, nil
}

// unmarshalJSON decodes a jsonb column, tolerating NULL
func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode jsonb column: %w", err)
	}
	return nil
}

// wrapNotFound converts pgx.ErrNoRows into the domain not-found sentinel
func wrapNotFound(err error, what string) error {
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
