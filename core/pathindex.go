// Package core implements the archive's domain services: the asset
// replacement chain, the per-version path index, the validation engine and
// the zarr ingest flow. Services hold no request state and are safe for
// concurrent use.
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository"
)

// PathIndex maintains the materialized folder tree of each version. Every
// asset attach or detach touches the leaf node plus one directory node per
// ancestor, so maintenance cost is proportional to path depth rather than
// tree size.
type PathIndex struct {
	store repository.Store
	log   *logger.Logger
}

// NewPathIndex creates a path index service
func NewPathIndex(store repository.Store, log *logger.Logger) *PathIndex {
	return &PathIndex{store: store, log: log}
}

// AttachLeaf records a new asset at path within the version. The caller
// supplies the transactional store view so the index update commits with
// the asset mutation.
func (p *PathIndex) AttachLeaf(ctx context.Context, store repository.Store, versionID int64, path string, assetRowID, size int64) error {
	if err := store.Paths().CreateLeaf(ctx, versionID, path, assetRowID, size); err != nil {
		return fmt.Errorf("failed to create leaf node: %w", err)
	}
	dirs := models.DirectoryPrefixes(path)
	if err := store.Paths().AdjustDirectories(ctx, versionID, dirs, 1, size); err != nil {
		return fmt.Errorf("failed to adjust directory nodes: %w", err)
	}
	return nil
}

// DetachLeaf removes the asset's leaf at path and decrements every ancestor
// directory, dropping directories that become empty.
func (p *PathIndex) DetachLeaf(ctx context.Context, store repository.Store, versionID int64, path string, size int64) error {
	if err := store.Paths().DeleteLeaf(ctx, versionID, path); err != nil {
		return fmt.Errorf("failed to delete leaf node: %w", err)
	}
	dirs := models.DirectoryPrefixes(path)
	if err := store.Paths().AdjustDirectories(ctx, versionID, dirs, -1, -size); err != nil {
		return fmt.Errorf("failed to adjust directory nodes: %w", err)
	}
	return nil
}

// ChildrenOf lists the immediate children of a directory within a version
// in lexicographic order. prefix "" denotes the root; otherwise prefix
// names a directory node, with or without a trailing separator.
func (p *PathIndex) ChildrenOf(ctx context.Context, versionID int64, prefix string, limit, offset int) ([]models.PathChild, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" {
		exists, err := p.store.Paths().Exists(ctx, versionID, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to check path prefix: %w", err)
		}
		if !exists {
			return nil, models.ErrNotFound
		}
	}

	children, err := p.store.Paths().Children(ctx, versionID, prefix, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %q: %w", prefix, err)
	}
	return children, nil
}
