package models

import "errors"

// Structural errors rejected synchronously at the mutation boundary.
var (
	// ErrVersionImmutable: attempted mutation of a non-draft version
	ErrVersionImmutable = errors.New("only draft versions can be modified")

	// ErrDuplicatePath: another live asset already occupies the path
	ErrDuplicatePath = errors.New("an asset with that path already exists")

	// ErrInvalidPath: the path fails the safety pattern
	ErrInvalidPath = errors.New("invalid asset path")

	// ErrContentRefConflict: zero or more than one backing content reference
	ErrContentRefConflict = errors.New("exactly one of blob_id or zarr_id must be specified")

	// ErrCrossDandisetZarr: the zarr archive belongs to a different dandiset
	ErrCrossDandisetZarr = errors.New("zarr archive belongs to a different dandiset")
)

// Upload-validation errors.
var (
	// ErrInvalidDigest: digest is not 64 lowercase hex characters
	ErrInvalidDigest = errors.New("invalid sha256 digest format")

	// ErrObjectMissing: no such object in the blob store
	ErrObjectMissing = errors.New("object does not exist")

	// ErrUploadInProgress: a validation for that digest is already running
	ErrUploadInProgress = errors.New("validation already in progress")
)

var (
	// ErrNotFound: no record matched the lookup
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification: an optimistic write-back found the base
	// state changed under it. Retried internally; surfaced only after the
	// retry budget is exhausted.
	ErrConcurrentModification = errors.New("record concurrently modified")

	// ErrZarrNotPending: file registration against a completed archive
	ErrZarrNotPending = errors.New("zarr archive is no longer accepting uploads")
)
