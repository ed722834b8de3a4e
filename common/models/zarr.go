package models

import (
	"time"

	"github.com/google/uuid"
)

// ZarrStatus is the completion state machine of a zarr archive
type ZarrStatus string

const (
	// ZarrPending: files may still be registered or removed
	ZarrPending ZarrStatus = "PENDING"
	// ZarrIngesting: upload finished, tree checksum computation running
	ZarrIngesting ZarrStatus = "INGESTING"
	// ZarrComplete: checksum computed, archive eligible for validation
	ZarrComplete ZarrStatus = "COMPLETE"
)

// ZarrArchive tracks a multi-object logical blob: many small files under one
// prefix, with incrementally maintained file count, total size and an
// aggregate checksum computed once no uploads remain outstanding.
// Maps to: zarr_archive table
type ZarrArchive struct {
	ID int64 `db:"id" json:"-"`

	ZarrID uuid.UUID `db:"zarr_id" json:"zarr_id"`
	Name   string    `db:"name" json:"name"`

	// DandisetID is the owning dandiset; assets in other dandisets may
	// not reference this archive
	DandisetID int `db:"dandiset_id" json:"dandiset_id"`

	FileCount int64 `db:"file_count" json:"file_count"`
	Size      int64 `db:"size" json:"size"`

	// Checksum is the aggregate tree digest, nil until a completeness
	// scan finishes
	Checksum *string `db:"checksum" json:"checksum,omitempty"`

	Status ZarrStatus `db:"status" json:"status"`

	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`
}

// Ready reports whether assets referencing this archive are eligible for
// metadata validation
func (z *ZarrArchive) Ready() bool {
	return z.Status == ZarrComplete && z.Checksum != nil && *z.Checksum != ""
}

// Ref returns the content reference for this archive
func (z *ZarrArchive) Ref() ContentRef {
	return NewZarrRef(z.ZarrID)
}

// ZarrFile is one object within a zarr archive, registered individually as
// multipart uploads complete
// Maps to: zarr_file table
type ZarrFile struct {
	ID int64 `db:"id" json:"-"`

	ZarrArchiveID int64 `db:"zarr_archive_id" json:"-"`

	Path string `db:"path" json:"path"`
	Etag string `db:"etag" json:"etag"`
	Size int64  `db:"size" json:"size"`

	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`
}
