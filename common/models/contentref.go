package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ContentKind discriminates the backing content of an asset
type ContentKind string

const (
	ContentBlob          ContentKind = "blob"
	ContentEmbargoedBlob ContentKind = "embargoed_blob"
	ContentZarr          ContentKind = "zarr"
)

// ContentRef is a tagged reference to exactly one backing content record:
// a blob, an embargoed blob, or a zarr archive. The zero value is invalid;
// construct through NewBlobRef, NewEmbargoedBlobRef or NewZarrRef so that
// "zero or more than one reference" is unrepresentable.
type ContentRef struct {
	kind ContentKind
	id   uuid.UUID
}

// NewBlobRef references a plain asset blob
func NewBlobRef(blobID uuid.UUID) ContentRef {
	return ContentRef{kind: ContentBlob, id: blobID}
}

// NewEmbargoedBlobRef references an embargoed asset blob
func NewEmbargoedBlobRef(blobID uuid.UUID) ContentRef {
	return ContentRef{kind: ContentEmbargoedBlob, id: blobID}
}

// NewZarrRef references a zarr archive
func NewZarrRef(zarrID uuid.UUID) ContentRef {
	return ContentRef{kind: ContentZarr, id: zarrID}
}

// NewContentRef reconstructs a reference from persisted kind and id columns
func NewContentRef(kind ContentKind, id uuid.UUID) (ContentRef, error) {
	switch kind {
	case ContentBlob, ContentEmbargoedBlob, ContentZarr:
	default:
		return ContentRef{}, fmt.Errorf("unknown content kind %q: %w", kind, ErrContentRefConflict)
	}
	if id == uuid.Nil {
		return ContentRef{}, fmt.Errorf("nil content id: %w", ErrContentRefConflict)
	}
	return ContentRef{kind: kind, id: id}, nil
}

// Kind returns the content discriminator
func (r ContentRef) Kind() ContentKind { return r.kind }

// ID returns the external identifier of the referenced content
func (r ContentRef) ID() uuid.UUID { return r.id }

// IsZero reports whether the reference was never constructed
func (r ContentRef) IsZero() bool { return r.kind == "" || r.id == uuid.Nil }

// IsZarr reports whether the asset is backed by a zarr archive
func (r ContentRef) IsZarr() bool { return r.kind == ContentZarr }

// IsBlob reports whether the asset is backed by a blob, embargoed or not
func (r ContentRef) IsBlob() bool {
	return r.kind == ContentBlob || r.kind == ContentEmbargoedBlob
}

func (r ContentRef) String() string {
	return fmt.Sprintf("%s:%s", r.kind, r.id)
}
