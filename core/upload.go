package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository"
	"github.com/dandihub/archive/common/storage"
)

// UploadService verifies uploaded objects against their claimed digest.
// Verification is asynchronous: StartValidation records the claim and the
// worker calls Verify, which streams the object, compares digests and mints
// the asset blob on success. Records are keyed by digest, so re-verifying
// the same content reuses the record.
type UploadService struct {
	store  repository.Store
	blobs  storage.BlobStore
	engine *Engine
	log    *logger.Logger
}

// NewUploadService creates an upload service
func NewUploadService(store repository.Store, blobs storage.BlobStore, engine *Engine, log *logger.Logger) *UploadService {
	return &UploadService{store: store, blobs: blobs, engine: engine, log: log}
}

// StartValidation records an upload-verification request for the object at
// objectKey claiming the given sha256 digest. A second request for a digest
// already being verified is rejected; a finished record is reset and
// re-verified.
func (s *UploadService) StartValidation(ctx context.Context, digest, objectKey string) (*models.Upload, error) {
	digest = strings.ToLower(digest)
	if !models.DigestRegex.MatchString(digest) {
		return nil, models.ErrInvalidDigest
	}

	exists, err := s.blobs.Exists(ctx, objectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check object %q: %w", objectKey, err)
	}
	if !exists {
		return nil, models.ErrObjectMissing
	}

	upload, err := s.store.Uploads().GetByDigest(ctx, digest)
	switch {
	case err == nil:
		if upload.State == models.UploadInProgress {
			return nil, models.ErrUploadInProgress
		}
		if err := s.store.Uploads().SetState(ctx, upload.ID, models.UploadInProgress, nil); err != nil {
			return nil, fmt.Errorf("failed to restart upload validation: %w", err)
		}
		upload.State = models.UploadInProgress
		upload.Error = nil
	case errors.Is(err, models.ErrNotFound):
		upload = &models.Upload{
			Digest:    digest,
			ObjectKey: objectKey,
			State:     models.UploadInProgress,
		}
		if err := s.store.Uploads().Create(ctx, upload); err != nil {
			return nil, fmt.Errorf("failed to create upload record: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up upload record: %w", err)
	}

	s.log.Info("upload validation started", "digest", digest, "object_key", objectKey)
	return upload, nil
}

// Status returns the verification record for a digest
func (s *UploadService) Status(ctx context.Context, digest string) (*models.Upload, error) {
	return s.store.Uploads().GetByDigest(ctx, strings.ToLower(digest))
}

// Verify streams the object and compares its sha256 against the claim. On a
// match the asset blob record is created (or reused) with the digest
// already filled in; on a mismatch the record is marked FAILED with the
// reason.
func (s *UploadService) Verify(ctx context.Context, digest string) error {
	upload, err := s.store.Uploads().GetByDigest(ctx, digest)
	if err != nil {
		return fmt.Errorf("failed to load upload record: %w", err)
	}

	computed, err := BlobDigest(ctx, s.blobs, upload.ObjectKey)
	if err != nil {
		msg := fmt.Sprintf("failed to read object: %v", err)
		if serr := s.store.Uploads().SetState(ctx, upload.ID, models.UploadFailed, &msg); serr != nil {
			return fmt.Errorf("failed to record upload failure: %w", serr)
		}
		return nil
	}

	if computed != upload.Digest {
		msg := fmt.Sprintf("digest mismatch: object is %s", computed)
		if serr := s.store.Uploads().SetState(ctx, upload.ID, models.UploadFailed, &msg); serr != nil {
			return fmt.Errorf("failed to record upload failure: %w", serr)
		}
		s.log.Info("upload verification failed",
			"digest", upload.Digest,
			"computed", computed)
		return nil
	}

	if err := s.ensureBlob(ctx, upload); err != nil {
		return err
	}

	if err := s.store.Uploads().SetState(ctx, upload.ID, models.UploadSucceeded, nil); err != nil {
		return fmt.Errorf("failed to record upload success: %w", err)
	}

	s.log.Info("upload verified", "digest", digest)
	return nil
}

// ComputeBlobDigest fills in the digest of a blob created without one, then
// revalidates the pending assets it backs
func (s *UploadService) ComputeBlobDigest(ctx context.Context, blobID uuid.UUID) error {
	blob, err := s.store.Blobs().GetByBlobID(ctx, blobID)
	if err != nil {
		return fmt.Errorf("failed to load blob %s: %w", blobID, err)
	}
	if blob.Ready() {
		return nil
	}

	digest, err := BlobDigest(ctx, s.blobs, blob.StorageKey)
	if err != nil {
		return err
	}
	if err := s.store.Blobs().SetDigest(ctx, blobID, digest); err != nil {
		return fmt.Errorf("failed to record blob digest: %w", err)
	}

	s.log.Info("blob digest computed", "blob_id", blobID, "digest", digest)
	return s.engine.RevalidateContent(ctx, blob.Ref())
}

// ensureBlob creates the asset blob for a verified upload unless one with
// the same digest already exists
func (s *UploadService) ensureBlob(ctx context.Context, upload *models.Upload) error {
	_, err := s.store.Blobs().GetByDigest(ctx, upload.Digest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to look up blob by digest: %w", err)
	}

	size, err := s.blobs.Size(ctx, upload.ObjectKey)
	if err != nil {
		return fmt.Errorf("failed to size object %q: %w", upload.ObjectKey, err)
	}

	digest := upload.Digest
	blob := &models.AssetBlob{
		BlobID:     uuid.New(),
		StorageKey: upload.ObjectKey,
		Etag:       digest[:32],
		Size:       size,
		Digest:     &digest,
	}
	if err := s.store.Blobs().Create(ctx, blob); err != nil {
		return fmt.Errorf("failed to create asset blob: %w", err)
	}
	return nil
}
