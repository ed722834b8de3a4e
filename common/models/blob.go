package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// DigestRegex matches a SHA-256 digest in lowercase hex
var DigestRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ETagRegex matches an S3-style entity tag, optionally with a part count
var ETagRegex = regexp.MustCompile(`^[0-9a-f]{32}(-[1-9][0-9]*)?$`)

// AssetBlob records a single-object upload: storage handle, size, and the
// SHA-256 digest which is computed asynchronously after upload and never
// mutated once set.
// Maps to: asset_blob table
type AssetBlob struct {
	ID int64 `db:"id" json:"-"`

	BlobID uuid.UUID `db:"blob_id" json:"blob_id"`

	// StorageKey is the object key in the backing object store
	StorageKey string `db:"storage_key" json:"storage_key"`

	Etag string `db:"etag" json:"etag"`
	Size int64  `db:"size" json:"size"`

	// Digest is the 64-hex-character SHA-256, nil until the checksum
	// worker has read the object back and computed it
	Digest *string `db:"digest" json:"digest,omitempty"`

	// Embargoed blobs belong to a single dandiset until unembargo
	Embargoed  bool `db:"embargoed" json:"embargoed"`
	DandisetID *int `db:"dandiset_id" json:"dandiset_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Ready reports whether the blob digest has been computed, making assets
// that reference it eligible for metadata validation
func (b *AssetBlob) Ready() bool {
	return b.Digest != nil && *b.Digest != ""
}

// Ref returns the content reference for this blob
func (b *AssetBlob) Ref() ContentRef {
	if b.Embargoed {
		return NewEmbargoedBlobRef(b.BlobID)
	}
	return NewBlobRef(b.BlobID)
}
