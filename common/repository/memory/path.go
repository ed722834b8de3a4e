package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dandihub/archive/common/models"
)

type pathRepo struct{ s *Store }

func (r *pathRepo) nodes(versionID int64) map[string]*models.PathNode {
	nodes, ok := r.s.data.pathNodes[versionID]
	if !ok {
		nodes = make(map[string]*models.PathNode)
		r.s.data.pathNodes[versionID] = nodes
	}
	return nodes
}

func (r *pathRepo) CreateLeaf(ctx context.Context, versionID int64, path string, assetRowID int64, size int64) error {
	defer r.s.lock()()
	nodes := r.nodes(versionID)
	r.s.data.nextNodeID++
	rowID := assetRowID
	nodes[path] = &models.PathNode{
		ID:         r.s.data.nextNodeID,
		VersionID:  versionID,
		Path:       path,
		AssetRowID: &rowID,
		FileCount:  1,
		TotalSize:  size,
	}
	return nil
}

func (r *pathRepo) DeleteLeaf(ctx context.Context, versionID int64, path string) error {
	defer r.s.lock()()
	nodes := r.nodes(versionID)
	node, ok := nodes[path]
	if !ok || !node.IsLeaf() {
		return fmt.Errorf("leaf node %q: %w", path, models.ErrNotFound)
	}
	delete(nodes, path)
	return nil
}

func (r *pathRepo) AdjustDirectories(ctx context.Context, versionID int64, dirs []string, fileDelta, sizeDelta int64) error {
	defer r.s.lock()()
	nodes := r.nodes(versionID)
	for _, dir := range dirs {
		node, ok := nodes[dir]
		if !ok {
			r.s.data.nextNodeID++
			node = &models.PathNode{ID: r.s.data.nextNodeID, VersionID: versionID, Path: dir}
			nodes[dir] = node
		}
		node.FileCount += fileDelta
		node.TotalSize += sizeDelta
		if !node.IsLeaf() && node.FileCount <= 0 {
			delete(nodes, dir)
		}
	}
	return nil
}

func (r *pathRepo) Children(ctx context.Context, versionID int64, prefix string, limit, offset int) ([]models.PathChild, error) {
	defer r.s.lock()()
	nodes := r.s.data.pathNodes[versionID]

	var children []models.PathChild
	for path, node := range nodes {
		if !isImmediateChild(prefix, path) {
			continue
		}
		child := models.PathChild{
			Name:      path,
			IsLeaf:    node.IsLeaf(),
			FileCount: node.FileCount,
			TotalSize: node.TotalSize,
		}
		if !child.IsLeaf {
			child.Name += "/"
		}
		children = append(children, child)
	}

	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	if offset >= len(children) {
		return nil, nil
	}
	children = children[offset:]
	if limit > 0 && len(children) > limit {
		children = children[:limit]
	}
	return children, nil
}

// isImmediateChild reports whether path sits directly inside the directory
// prefix: exactly one more segment, no deeper separator
func isImmediateChild(prefix, path string) bool {
	if prefix == "" {
		return !strings.ContainsRune(path, '/')
	}
	rest, ok := strings.CutPrefix(path, prefix+"/")
	if !ok {
		return false
	}
	return rest != "" && !strings.ContainsRune(rest, '/')
}

func (r *pathRepo) Exists(ctx context.Context, versionID int64, prefix string) (bool, error) {
	defer r.s.lock()()
	if prefix == "" {
		return true, nil
	}
	node, ok := r.s.data.pathNodes[versionID][prefix]
	return ok && !node.IsLeaf(), nil
}

type uploadRepo struct{ s *Store }

func copyUpload(u *models.Upload) *models.Upload {
	copied := *u
	if u.Error != nil {
		msg := *u.Error
		copied.Error = &msg
	}
	return &copied
}

func (r *uploadRepo) Create(ctx context.Context, upload *models.Upload) error {
	defer r.s.lock()()
	if _, exists := r.s.data.uploads[upload.Digest]; exists {
		return fmt.Errorf("upload for digest %s already exists", upload.Digest)
	}
	r.s.data.nextUploadID++
	upload.ID = r.s.data.nextUploadID
	now := time.Now()
	upload.CreatedAt = now
	upload.ModifiedAt = now
	r.s.data.uploads[upload.Digest] = copyUpload(upload)
	return nil
}

func (r *uploadRepo) GetByDigest(ctx context.Context, digest string) (*models.Upload, error) {
	defer r.s.lock()()
	upload, ok := r.s.data.uploads[digest]
	if !ok {
		return nil, fmt.Errorf("upload %s: %w", digest, models.ErrNotFound)
	}
	return copyUpload(upload), nil
}

func (r *uploadRepo) SetState(ctx context.Context, id int64, state models.UploadState, errMsg *string) error {
	defer r.s.lock()()
	for _, upload := range r.s.data.uploads {
		if upload.ID == id {
			upload.State = state
			upload.Error = errMsg
			upload.ModifiedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("upload %d: %w", id, models.ErrNotFound)
}
