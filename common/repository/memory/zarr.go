package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/models"
)

type blobRepo struct{ s *Store }

func copyBlob(b *models.AssetBlob) *models.AssetBlob {
	copied := *b
	if b.Digest != nil {
		digest := *b.Digest
		copied.Digest = &digest
	}
	if b.DandisetID != nil {
		id := *b.DandisetID
		copied.DandisetID = &id
	}
	return &copied
}

func (r *blobRepo) Create(ctx context.Context, blob *models.AssetBlob) error {
	defer r.s.lock()()
	if _, exists := r.s.data.blobs[blob.BlobID]; exists {
		return fmt.Errorf("blob %s already exists", blob.BlobID)
	}
	r.s.data.nextBlobID++
	blob.ID = r.s.data.nextBlobID
	blob.CreatedAt = time.Now()
	r.s.data.blobs[blob.BlobID] = copyBlob(blob)
	return nil
}

func (r *blobRepo) GetByBlobID(ctx context.Context, blobID uuid.UUID) (*models.AssetBlob, error) {
	defer r.s.lock()()
	blob, ok := r.s.data.blobs[blobID]
	if !ok {
		return nil, fmt.Errorf("asset blob %s: %w", blobID, models.ErrNotFound)
	}
	return copyBlob(blob), nil
}

func (r *blobRepo) GetByDigest(ctx context.Context, digest string) (*models.AssetBlob, error) {
	defer r.s.lock()()
	for _, blob := range r.s.data.blobs {
		if blob.Digest != nil && *blob.Digest == digest {
			return copyBlob(blob), nil
		}
	}
	return nil, fmt.Errorf("asset blob with digest %s: %w", digest, models.ErrNotFound)
}

func (r *blobRepo) SetDigest(ctx context.Context, blobID uuid.UUID, digest string) error {
	defer r.s.lock()()
	blob, ok := r.s.data.blobs[blobID]
	if !ok {
		return fmt.Errorf("asset blob %s: %w", blobID, models.ErrNotFound)
	}
	// Write-once
	if blob.Digest != nil {
		return nil
	}
	blob.Digest = &digest
	return nil
}

type zarrRepo struct{ s *Store }

func copyZarr(z *models.ZarrArchive) *models.ZarrArchive {
	copied := *z
	if z.Checksum != nil {
		checksum := *z.Checksum
		copied.Checksum = &checksum
	}
	return &copied
}

func (r *zarrRepo) Create(ctx context.Context, archive *models.ZarrArchive) error {
	defer r.s.lock()()
	if _, exists := r.s.data.zarrs[archive.ZarrID]; exists {
		return fmt.Errorf("zarr archive %s already exists", archive.ZarrID)
	}
	r.s.data.nextZarrID++
	archive.ID = r.s.data.nextZarrID
	now := time.Now()
	archive.CreatedAt = now
	archive.ModifiedAt = now
	copied := copyZarr(archive)
	r.s.data.zarrs[archive.ZarrID] = copied
	r.s.data.zarrsByRow[archive.ID] = copied
	r.s.data.zarrFiles[archive.ID] = make(map[string]*models.ZarrFile)
	return nil
}

func (r *zarrRepo) GetByZarrID(ctx context.Context, zarrID uuid.UUID) (*models.ZarrArchive, error) {
	defer r.s.lock()()
	archive, ok := r.s.data.zarrs[zarrID]
	if !ok {
		return nil, fmt.Errorf("zarr archive %s: %w", zarrID, models.ErrNotFound)
	}
	return copyZarr(archive), nil
}

func (r *zarrRepo) UpsertFile(ctx context.Context, archiveID int64, file *models.ZarrFile) error {
	defer r.s.lock()()
	archive, ok := r.s.data.zarrsByRow[archiveID]
	if !ok {
		return fmt.Errorf("zarr archive row %d: %w", archiveID, models.ErrNotFound)
	}
	files := r.s.data.zarrFiles[archiveID]

	var oldSize int64
	fileDelta := int64(1)
	if existing, exists := files[file.Path]; exists {
		oldSize = existing.Size
		fileDelta = 0
		file.ID = existing.ID
	} else {
		r.s.data.nextZarrFileID++
		file.ID = r.s.data.nextZarrFileID
	}
	file.ZarrArchiveID = archiveID
	file.ModifiedAt = time.Now()
	copied := *file
	files[file.Path] = &copied

	archive.FileCount += fileDelta
	archive.Size += file.Size - oldSize
	archive.ModifiedAt = time.Now()
	return nil
}

func (r *zarrRepo) DeleteFiles(ctx context.Context, archiveID int64, paths []string) error {
	defer r.s.lock()()
	archive, ok := r.s.data.zarrsByRow[archiveID]
	if !ok {
		return fmt.Errorf("zarr archive row %d: %w", archiveID, models.ErrNotFound)
	}
	files := r.s.data.zarrFiles[archiveID]
	for _, path := range paths {
		if file, exists := files[path]; exists {
			archive.FileCount--
			archive.Size -= file.Size
			delete(files, path)
		}
	}
	archive.ModifiedAt = time.Now()
	return nil
}

func (r *zarrRepo) ListFiles(ctx context.Context, archiveID int64) ([]*models.ZarrFile, error) {
	defer r.s.lock()()
	files := r.s.data.zarrFiles[archiveID]
	out := make([]*models.ZarrFile, 0, len(files))
	for _, file := range files {
		copied := *file
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *zarrRepo) SetStatus(ctx context.Context, archiveID int64, status models.ZarrStatus, checksum *string) error {
	defer r.s.lock()()
	archive, ok := r.s.data.zarrsByRow[archiveID]
	if !ok {
		return fmt.Errorf("zarr archive row %d: %w", archiveID, models.ErrNotFound)
	}
	archive.Status = status
	if checksum != nil {
		value := *checksum
		archive.Checksum = &value
	} else {
		archive.Checksum = nil
	}
	archive.ModifiedAt = time.Now()
	return nil
}
