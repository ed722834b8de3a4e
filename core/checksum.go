package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/storage"
)

// ZarrTreeDigest computes the deterministic checksum of a zarr archive from
// its per-file records. Files arrive ordered by path; the digest covers
// path, etag and size of every file, so any file change changes the digest.
func ZarrTreeDigest(files []*models.ZarrFile) string {
	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00%s\x00%d\n", f.Path, f.Etag, f.Size)
	}
	return fmt.Sprintf("%s-%d--%d", hex.EncodeToString(h.Sum(nil)), len(files), totalSize(files))
}

func totalSize(files []*models.ZarrFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// BlobDigest streams the object at key through sha256 and returns the hex
// digest
func BlobDigest(ctx context.Context, store storage.BlobStore, key string) (string, error) {
	r, err := store.Reader(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to open object %q: %w", key, err)
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to digest object %q: %w", key, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
