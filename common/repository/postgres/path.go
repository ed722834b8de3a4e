package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/models"
)

// PathRepository maintains the per-version path index
type PathRepository struct {
	q db.Querier
}

// CreateLeaf inserts the leaf node for a newly attached asset
func (r *PathRepository) CreateLeaf(ctx context.Context, versionID int64, path string, assetRowID int64, size int64) error {
	query := `
		INSERT INTO path_node (version_id, path, asset_id, file_count, total_size)
		VALUES ($1, $2, $3, 1, $4)
	`

	if _, err := r.q.Exec(ctx, query, versionID, path, assetRowID, size); err != nil {
		return fmt.Errorf("failed to create leaf node: %w", err)
	}

	return nil
}

// DeleteLeaf removes the leaf node for a detached asset
func (r *PathRepository) DeleteLeaf(ctx context.Context, versionID int64, path string) error {
	query := `
		DELETE FROM path_node
		WHERE version_id = $1 AND path = $2 AND asset_id IS NOT NULL
	`

	tag, err := r.q.Exec(ctx, query, versionID, path)
	if err != nil {
		return fmt.Errorf("failed to delete leaf node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("leaf node %q: %w", path, models.ErrNotFound)
	}

	return nil
}

// AdjustDirectories applies fileDelta/sizeDelta to every directory node in
// dirs, creating nodes as needed. Nodes whose file count reaches zero are
// dropped so no stale directories survive a detach.
func (r *PathRepository) AdjustDirectories(ctx context.Context, versionID int64, dirs []string, fileDelta, sizeDelta int64) error {
	upsert := `
		INSERT INTO path_node (version_id, path, file_count, total_size)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (version_id, path)
		DO UPDATE SET
			file_count = path_node.file_count + EXCLUDED.file_count,
			total_size = path_node.total_size + EXCLUDED.total_size
	`

	for _, dir := range dirs {
		if _, err := r.q.Exec(ctx, upsert, versionID, dir, fileDelta, sizeDelta); err != nil {
			return fmt.Errorf("failed to adjust directory node %q: %w", dir, err)
		}
	}

	if fileDelta < 0 {
		prune := `
			DELETE FROM path_node
			WHERE version_id = $1 AND path = ANY($2)
				AND asset_id IS NULL AND file_count <= 0
		`
		if _, err := r.q.Exec(ctx, prune, versionID, dirs); err != nil {
			return fmt.Errorf("failed to prune empty directory nodes: %w", err)
		}
	}

	return nil
}

// Children returns the immediate children of a directory node in
// lexicographic order. prefix is the directory path without trailing
// separator, "" for the root.
func (r *PathRepository) Children(ctx context.Context, versionID int64, prefix string, limit, offset int) ([]models.PathChild, error) {
	var query string
	args := []any{versionID}

	if prefix == "" {
		// Immediate children of the root: paths without a separator
		query = `
			SELECT path, asset_id IS NOT NULL, file_count, total_size
			FROM path_node
			WHERE version_id = $1 AND position('/' in path) = 0
			ORDER BY path
			LIMIT $2 OFFSET $3
		`
		args = append(args, limit, offset)
	} else {
		// Children of prefix: one more segment, no deeper separator. The
		// prefix is escaped so _ and % in real paths match literally.
		query = `
			SELECT path, asset_id IS NOT NULL, file_count, total_size
			FROM path_node
			WHERE version_id = $1
				AND path LIKE $2
				AND position('/' in substring(path from length($3) + 2)) = 0
			ORDER BY path
			LIMIT $4 OFFSET $5
		`
		args = append(args, escapeLike(prefix)+"/%", prefix, limit, offset)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list path children: %w", err)
	}
	defer rows.Close()

	var children []models.PathChild
	for rows.Next() {
		var child models.PathChild
		if err := rows.Scan(&child.Name, &child.IsLeaf, &child.FileCount, &child.TotalSize); err != nil {
			return nil, fmt.Errorf("failed to scan path child: %w", err)
		}
		if !child.IsLeaf {
			child.Name += "/"
		}
		children = append(children, child)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating path children: %w", err)
	}

	return children, nil
}

// escapeLike escapes the LIKE metacharacters in s so it matches literally
// when embedded in a pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Exists reports whether a directory node lives at prefix. The root always
// exists.
func (r *PathRepository) Exists(ctx context.Context, versionID int64, prefix string) (bool, error) {
	if prefix == "" {
		return true, nil
	}

	query := `
		SELECT EXISTS(
			SELECT 1 FROM path_node
			WHERE version_id = $1 AND path = $2 AND asset_id IS NULL
		)
	`

	var exists bool
	if err := r.q.QueryRow(ctx, query, versionID, prefix).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check path node: %w", err)
	}

	return exists, nil
}
