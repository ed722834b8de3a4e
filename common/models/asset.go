package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// MaxPathLength bounds asset path strings, matching the storage column width
const MaxPathLength = 512

// Asset is one immutable path+metadata+content record. Any change to path,
// metadata or backing content mints a successor record linked via PreviousID;
// the old record is detached from the live version but never destroyed.
// Maps to: asset table
type Asset struct {
	ID int64 `db:"id" json:"-"`

	// Stable external identifier, carried across replacement so that
	// consumers can follow one logical file through its history
	AssetID uuid.UUID `db:"asset_id" json:"asset_id"`

	Path string `db:"path" json:"path"`

	Metadata Metadata `db:"metadata" json:"metadata"`

	// Content is the single backing content reference (blob, embargoed
	// blob or zarr)
	Content ContentRef `db:"-" json:"content"`

	Status           ValidationStatus  `db:"status" json:"status"`
	ValidationErrors []ValidationError `db:"validation_errors" json:"validation_errors"`

	// PreviousID is the row id of the asset this one replaced, nil for
	// the first record in a chain. The chain is retained indefinitely.
	PreviousID *int64 `db:"previous_id" json:"-"`

	// Size is the content size in bytes, denormalized from the backing
	// blob or zarr at creation time for path-index accounting
	Size int64 `db:"size" json:"size"`

	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`
}

// SameContent reports whether the asset would be unchanged by a replacement
// with the given path, metadata and content reference. Used for the
// idempotent-replace optimization.
func (a *Asset) SameContent(path string, metadata Metadata, content ContentRef) bool {
	return a.Path == path && a.Content == content && a.Metadata.Equal(metadata)
}

// ValidatePath checks an asset path for safety: forward-slash separated,
// no empty segments, no "." or ".." segments, no control characters,
// no leading or trailing slash, bounded length.
func ValidatePath(path string) error {
	if path == "" || len(path) > MaxPathLength {
		return ErrInvalidPath
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return ErrInvalidPath
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return ErrInvalidPath
		}
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return ErrInvalidPath
		}
	}
	return nil
}
