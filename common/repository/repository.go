package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/models"
)

// Store bundles the per-entity repositories behind one transactional
// boundary. All relationship traversal goes through explicit lookups here;
// nothing in the core joins implicitly.
type Store interface {
	Dandisets() DandisetRepository
	Versions() VersionRepository
	Assets() AssetRepository
	Blobs() BlobRepository
	Zarrs() ZarrRepository
	Paths() PathRepository
	Uploads() UploadRepository

	// WithTx runs fn against a transactional view of the store. The
	// postgres store opens a serializable transaction and rolls back on
	// error; the memory store serializes callers on a store-wide lock.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// DandisetRepository handles dandiset lookups
type DandisetRepository interface {
	Create(ctx context.Context, dandiset *models.Dandiset) error
	GetByID(ctx context.Context, id int) (*models.Dandiset, error)
}

// VersionRepository handles version lookups and the modification token
type VersionRepository interface {
	Create(ctx context.Context, version *models.Version) error
	GetByID(ctx context.Context, id int64) (*models.Version, error)
	GetByDandisetAndVersion(ctx context.Context, dandisetID int, version string) (*models.Version, error)

	// MarkPending flags the version for revalidation and bumps the seq
	// token. Called inside the same transaction as the asset mutation.
	MarkPending(ctx context.Context, versionID int64) error

	// SetStatus records the validation outcome
	SetStatus(ctx context.Context, versionID int64, status models.ValidationStatus, verrs []models.ValidationError) error

	// CompareAndSwapMetadata writes the aggregated metadata only if the
	// seq token still matches expectedSeq. Returns false when the
	// version was concurrently modified.
	CompareAndSwapMetadata(ctx context.Context, versionID int64, expectedSeq int64, metadata models.Metadata) (bool, error)

	// ListPendingDraftIDs returns ids of draft versions awaiting
	// validation, oldest first
	ListPendingDraftIDs(ctx context.Context, limit int) ([]int64, error)
}

// AssetRepository handles asset records and their live version associations
type AssetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetByRowID(ctx context.Context, id int64) (*models.Asset, error)

	// GetLiveByAssetID resolves the live record for an external asset id
	// within one version
	GetLiveByAssetID(ctx context.Context, versionID int64, assetID uuid.UUID) (*models.Asset, error)

	// PathExists reports whether a live asset occupies path in the
	// version, ignoring excludeRowID (0 to exclude nothing)
	PathExists(ctx context.Context, versionID int64, path string, excludeRowID int64) (bool, error)

	AddToVersion(ctx context.Context, versionID, assetRowID int64) error
	RemoveFromVersion(ctx context.Context, versionID, assetRowID int64) error

	// ListLiveByVersion returns the live asset set ordered by creation
	ListLiveByVersion(ctx context.Context, versionID int64) ([]*models.Asset, error)

	// ListByContentRef returns every asset backed by the given content,
	// live or not, for revalidation after content processing finishes
	ListByContentRef(ctx context.Context, ref models.ContentRef) ([]*models.Asset, error)

	// ListPendingValidatableIDs returns row ids of PENDING assets whose
	// backing content is ready (blob digest computed, or zarr COMPLETE
	// with checksum), oldest first
	ListPendingValidatableIDs(ctx context.Context, limit int) ([]int64, error)

	// SetStatus records the validation outcome
	SetStatus(ctx context.Context, assetRowID int64, status models.ValidationStatus, verrs []models.ValidationError) error
}

// BlobRepository handles single-object blob records
type BlobRepository interface {
	Create(ctx context.Context, blob *models.AssetBlob) error
	GetByBlobID(ctx context.Context, blobID uuid.UUID) (*models.AssetBlob, error)
	GetByDigest(ctx context.Context, digest string) (*models.AssetBlob, error)

	// SetDigest fills in the computed digest; write-once, a no-op if a
	// digest is already present
	SetDigest(ctx context.Context, blobID uuid.UUID, digest string) error
}

// ZarrRepository handles zarr archives and their per-file records
type ZarrRepository interface {
	Create(ctx context.Context, archive *models.ZarrArchive) error
	GetByZarrID(ctx context.Context, zarrID uuid.UUID) (*models.ZarrArchive, error)

	// UpsertFile adds or overwrites a per-file record and adjusts the
	// archive's running file count and size atomically
	UpsertFile(ctx context.Context, archiveID int64, file *models.ZarrFile) error

	// DeleteFiles removes per-file records and adjusts running totals
	DeleteFiles(ctx context.Context, archiveID int64, paths []string) error

	// ListFiles returns all files ordered by path, for tree digesting
	ListFiles(ctx context.Context, archiveID int64) ([]*models.ZarrFile, error)

	SetStatus(ctx context.Context, archiveID int64, status models.ZarrStatus, checksum *string) error
}

// PathRepository maintains the per-version path index
type PathRepository interface {
	// CreateLeaf inserts the leaf node for a newly attached asset
	CreateLeaf(ctx context.Context, versionID int64, path string, assetRowID int64, size int64) error

	// DeleteLeaf removes the leaf node for a detached asset
	DeleteLeaf(ctx context.Context, versionID int64, path string) error

	// AdjustDirectories applies fileDelta/sizeDelta to every directory
	// node in dirs, creating nodes as needed and dropping nodes whose
	// file count reaches zero
	AdjustDirectories(ctx context.Context, versionID int64, dirs []string, fileDelta, sizeDelta int64) error

	// Children returns the immediate children of a directory node in
	// lexicographic order. prefix is the directory path without trailing
	// separator, "" for the root.
	Children(ctx context.Context, versionID int64, prefix string, limit, offset int) ([]models.PathChild, error)

	// Exists reports whether any node lives at or directly under prefix
	Exists(ctx context.Context, versionID int64, prefix string) (bool, error)
}

// UploadRepository handles upload-validation records keyed by digest
type UploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	GetByDigest(ctx context.Context, digest string) (*models.Upload, error)
	SetState(ctx context.Context, id int64, state models.UploadState, errMsg *string) error
}
