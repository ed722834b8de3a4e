package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dandihub/archive/common/models"
)

type dandisetRepo struct{ s *Store }

func (r *dandisetRepo) Create(ctx context.Context, dandiset *models.Dandiset) error {
	defer r.s.lock()()
	r.s.data.nextDandisetID++
	dandiset.ID = r.s.data.nextDandisetID
	now := time.Now()
	dandiset.CreatedAt = now
	dandiset.ModifiedAt = now
	copied := *dandiset
	r.s.data.dandisets[dandiset.ID] = &copied
	return nil
}

func (r *dandisetRepo) GetByID(ctx context.Context, id int) (*models.Dandiset, error) {
	defer r.s.lock()()
	dandiset, ok := r.s.data.dandisets[id]
	if !ok {
		return nil, fmt.Errorf("dandiset %d: %w", id, models.ErrNotFound)
	}
	copied := *dandiset
	return &copied, nil
}

type versionRepo struct{ s *Store }

func copyVersion(v *models.Version) *models.Version {
	copied := *v
	copied.Metadata = v.Metadata.Clone()
	copied.ValidationErrors = append([]models.ValidationError(nil), v.ValidationErrors...)
	return &copied
}

func (r *versionRepo) Create(ctx context.Context, version *models.Version) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.versions {
		if existing.DandisetID == version.DandisetID && existing.Version == version.Version {
			return fmt.Errorf("version %q already exists for dandiset %d", version.Version, version.DandisetID)
		}
	}
	r.s.data.nextVersionID++
	version.ID = r.s.data.nextVersionID
	now := time.Now()
	version.CreatedAt = now
	version.ModifiedAt = now
	r.s.data.versions[version.ID] = copyVersion(version)
	r.s.data.versionAssets[version.ID] = make(map[int64]bool)
	r.s.data.pathNodes[version.ID] = make(map[string]*models.PathNode)
	return nil
}

func (r *versionRepo) GetByID(ctx context.Context, id int64) (*models.Version, error) {
	defer r.s.lock()()
	version, ok := r.s.data.versions[id]
	if !ok {
		return nil, fmt.Errorf("version %d: %w", id, models.ErrNotFound)
	}
	return copyVersion(version), nil
}

func (r *versionRepo) GetByDandisetAndVersion(ctx context.Context, dandisetID int, versionStr string) (*models.Version, error) {
	defer r.s.lock()()
	for _, version := range r.s.data.versions {
		if version.DandisetID == dandisetID && version.Version == versionStr {
			return copyVersion(version), nil
		}
	}
	return nil, fmt.Errorf("version %06d/%s: %w", dandisetID, versionStr, models.ErrNotFound)
}

func (r *versionRepo) MarkPending(ctx context.Context, versionID int64) error {
	defer r.s.lock()()
	version, ok := r.s.data.versions[versionID]
	if !ok {
		return fmt.Errorf("version %d: %w", versionID, models.ErrNotFound)
	}
	version.Status = models.StatusPending
	version.Seq++
	version.ModifiedAt = time.Now()
	return nil
}

func (r *versionRepo) SetStatus(ctx context.Context, versionID int64, status models.ValidationStatus, verrs []models.ValidationError) error {
	defer r.s.lock()()
	version, ok := r.s.data.versions[versionID]
	if !ok {
		return fmt.Errorf("version %d: %w", versionID, models.ErrNotFound)
	}
	version.Status = status
	version.ValidationErrors = append([]models.ValidationError(nil), verrs...)
	return nil
}

func (r *versionRepo) CompareAndSwapMetadata(ctx context.Context, versionID int64, expectedSeq int64, metadata models.Metadata) (bool, error) {
	defer r.s.lock()()
	version, ok := r.s.data.versions[versionID]
	if !ok {
		return false, fmt.Errorf("version %d: %w", versionID, models.ErrNotFound)
	}
	if version.Seq != expectedSeq {
		return false, nil
	}
	version.Metadata = metadata.Clone()
	version.ModifiedAt = time.Now()
	return true, nil
}

func (r *versionRepo) ListPendingDraftIDs(ctx context.Context, limit int) ([]int64, error) {
	defer r.s.lock()()
	var pending []*models.Version
	for _, version := range r.s.data.versions {
		if version.Status == models.StatusPending && version.IsDraft() {
			pending = append(pending, version)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ModifiedAt.Before(pending[j].ModifiedAt)
	})
	var ids []int64
	for _, version := range pending {
		if len(ids) == limit {
			break
		}
		ids = append(ids, version.ID)
	}
	return ids, nil
}
