package models

import "strings"

// PathNode is one per-(version, path) entry in the hierarchical path index.
// Directory nodes carry aggregated descendant file counts and sizes; leaf
// nodes are 1:1 with live assets.
// Maps to: path_node table
type PathNode struct {
	ID int64 `db:"id" json:"-"`

	VersionID int64 `db:"version_id" json:"-"`

	// Path without trailing separator; directory nodes and leaves share
	// the namespace
	Path string `db:"path" json:"path"`

	// AssetRowID is set for leaf nodes only
	AssetRowID *int64 `db:"asset_id" json:"-"`

	FileCount int64 `db:"file_count" json:"file_count"`
	TotalSize int64 `db:"total_size" json:"total_size"`
}

// IsLeaf reports whether the node is a file rather than a directory
func (n *PathNode) IsLeaf() bool {
	return n.AssetRowID != nil
}

// PathChild is one immediate child of a directory prefix in a path listing
type PathChild struct {
	// Name is the full path of the child; directory children carry a
	// trailing separator
	Name      string `json:"name"`
	IsLeaf    bool   `json:"is_leaf"`
	FileCount int64  `json:"file_count"`
	TotalSize int64  `json:"total_size"`
}

// DirectoryPrefixes returns every proper directory prefix of an asset path,
// shallowest first. "sub/dir/a.nwb" yields ["sub", "sub/dir"].
func DirectoryPrefixes(path string) []string {
	var prefixes []string
	for i, r := range path {
		if r == '/' {
			prefixes = append(prefixes, path[:i])
		}
	}
	return prefixes
}

// ParentDirectory returns the directory prefix containing path, "" for the root
func ParentDirectory(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
