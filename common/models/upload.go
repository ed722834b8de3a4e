package models

import "time"

// UploadState is the lifecycle of an upload-validation record
type UploadState string

const (
	UploadInProgress UploadState = "IN_PROGRESS"
	UploadSucceeded  UploadState = "SUCCEEDED"
	UploadFailed     UploadState = "FAILED"
)

// Upload is a pending content-validation record, keyed by claimed digest.
// Created (or reused) when a client reports an object-storage upload has
// finished; the checksum worker verifies the digest and mints the blob.
// Maps to: upload table
type Upload struct {
	ID int64 `db:"id" json:"-"`

	// Digest is the claimed SHA-256 in lowercase hex, unique
	Digest string `db:"digest" json:"digest"`

	ObjectKey string `db:"object_key" json:"object_key"`

	State UploadState `db:"state" json:"state"`

	// Error holds the failure reason when State is FAILED
	Error *string `db:"error" json:"error,omitempty"`

	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`
}
