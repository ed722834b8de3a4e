package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AssetWork asks a worker to validate one asset record
type AssetWork struct {
	AssetRowID int64 `json:"asset_row_id"`
}

// VersionWork asks a worker to validate a version's metadata and, when
// Aggregate is set, recompute its assets summary first
type VersionWork struct {
	VersionID int64 `json:"version_id"`
	Aggregate bool  `json:"aggregate"`
}

// UploadWork asks a worker to verify an upload claim
type UploadWork struct {
	Digest string `json:"digest"`
}

// ZarrWork asks a worker to ingest a zarr archive
type ZarrWork struct {
	ZarrID uuid.UUID `json:"zarr_id"`
}

// EncodeWork marshals a work payload for the queue
func EncodeWork(work interface{}) ([]byte, error) {
	payload, err := json.Marshal(work)
	if err != nil {
		return nil, fmt.Errorf("failed to encode work payload: %w", err)
	}
	return payload, nil
}

// DecodeWork unmarshals a queue payload into the given work struct
func DecodeWork(payload []byte, work interface{}) error {
	if err := json.Unmarshal(payload, work); err != nil {
		return fmt.Errorf("failed to decode work payload: %w", err)
	}
	return nil
}
