package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/repository"
	"github.com/dandihub/archive/common/schema"
)

// Digest algorithm keys recorded in asset metadata
const (
	digestKeyBlob = "dandi:sha2-256"
	digestKeyZarr = "dandi:dandi-zarr-checksum"
)

// Engine runs metadata validation and version-level aggregation. Validation
// of an asset whose backing content is still being processed is a no-op;
// the sweep picks the asset up again once the content digest lands.
type Engine struct {
	store            repository.Store
	assetValidator   schema.Validator
	versionValidator schema.Validator
	maxRetries       int
	backoff          time.Duration
	log              *logger.Logger
}

// NewEngine creates a validation engine. maxRetries and backoff bound the
// aggregation retry loop.
func NewEngine(store repository.Store, assetValidator, versionValidator schema.Validator, maxRetries int, backoff time.Duration, log *logger.Logger) *Engine {
	return &Engine{
		store:            store,
		assetValidator:   assetValidator,
		versionValidator: versionValidator,
		maxRetries:       maxRetries,
		backoff:          backoff,
		log:              log,
	}
}

// ValidateAsset validates one asset record and stores the outcome. Returns
// without touching the record when the backing content is not ready.
func (e *Engine) ValidateAsset(ctx context.Context, assetRowID int64) error {
	asset, err := e.store.Assets().GetByRowID(ctx, assetRowID)
	if err != nil {
		return fmt.Errorf("failed to load asset %d: %w", assetRowID, err)
	}

	digestKey, digest, ready, err := e.contentDigest(ctx, asset.Content)
	if err != nil {
		return err
	}
	if !ready {
		e.log.Debug("asset content not ready, skipping validation",
			"asset_row_id", assetRowID,
			"content", asset.Content.String())
		return nil
	}

	document, err := mergeDocument(asset.Metadata, models.Metadata{
		"id":          fmt.Sprintf("dandiasset:%s", asset.AssetID),
		"path":        asset.Path,
		"contentSize": asset.Size,
		"digest":      map[string]interface{}{digestKey: digest},
	})
	if err != nil {
		return fmt.Errorf("failed to build asset document: %w", err)
	}

	verrs, err := e.assetValidator.Validate(document, document.String("schemaVersion"))
	if err != nil {
		return fmt.Errorf("asset validation failed: %w", err)
	}

	status := models.StatusValid
	if len(verrs) > 0 {
		status = models.StatusInvalid
	}
	if err := e.store.Assets().SetStatus(ctx, assetRowID, status, verrs); err != nil {
		return fmt.Errorf("failed to record asset validation outcome: %w", err)
	}

	e.log.Info("asset validated",
		"asset_row_id", assetRowID,
		"asset_id", asset.AssetID,
		"status", status,
		"error_count", len(verrs))
	return nil
}

// ValidateVersion validates the version-level metadata document and stores
// the outcome
func (e *Engine) ValidateVersion(ctx context.Context, versionID int64) error {
	version, err := e.store.Versions().GetByID(ctx, versionID)
	if err != nil {
		return fmt.Errorf("failed to load version %d: %w", versionID, err)
	}

	document, err := mergeDocument(version.Metadata, models.Metadata{
		"id":      fmt.Sprintf("DANDI:%06d/%s", version.DandisetID, version.Version),
		"version": version.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to build version document: %w", err)
	}

	verrs, err := e.versionValidator.Validate(document, document.String("schemaVersion"))
	if err != nil {
		return fmt.Errorf("version validation failed: %w", err)
	}

	status := models.StatusValid
	if len(verrs) > 0 {
		status = models.StatusInvalid
	}
	if err := e.store.Versions().SetStatus(ctx, versionID, status, verrs); err != nil {
		return fmt.Errorf("failed to record version validation outcome: %w", err)
	}

	e.log.Info("version validated",
		"version_id", versionID,
		"status", status,
		"error_count", len(verrs))
	return nil
}

// AggregateAssetsSummary recomputes the version's assets summary from its
// live asset set and writes it back, guarded by the version's seq token. A
// concurrent asset mutation invalidates the snapshot; the loop retries with
// backoff and gives up after the configured budget, leaving the version
// PENDING for the next sweep.
func (e *Engine) AggregateAssetsSummary(ctx context.Context, versionID int64) error {
	for attempt := 0; ; attempt++ {
		version, err := e.store.Versions().GetByID(ctx, versionID)
		if err != nil {
			return fmt.Errorf("failed to load version %d: %w", versionID, err)
		}

		assets, err := e.store.Assets().ListLiveByVersion(ctx, versionID)
		if err != nil {
			return fmt.Errorf("failed to list assets of version %d: %w", versionID, err)
		}

		metadata := version.Metadata.Clone()
		metadata["assetsSummary"] = AssetsSummary(assets)

		swapped, err := e.store.Versions().CompareAndSwapMetadata(ctx, versionID, version.Seq, metadata)
		if err != nil {
			return fmt.Errorf("failed to write assets summary: %w", err)
		}
		if swapped {
			e.log.Info("assets summary aggregated",
				"version_id", versionID,
				"asset_count", len(assets),
				"attempts", attempt+1)
			return nil
		}

		if attempt >= e.maxRetries {
			return fmt.Errorf("assets summary for version %d lost %d update races: %w",
				versionID, attempt+1, models.ErrConcurrentModification)
		}

		e.log.Debug("stale assets summary snapshot, retrying",
			"version_id", versionID,
			"attempt", attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.backoff << uint(attempt)):
		}
	}
}

// AssetsSummary folds the live asset set into the version-level summary
// document. Output is deterministic for a given asset set.
func AssetsSummary(assets []*models.Asset) map[string]interface{} {
	var totalBytes int64
	formats := make(map[string]struct{})
	for _, a := range assets {
		totalBytes += a.Size
		if f := a.Metadata.String("encodingFormat"); f != "" {
			formats[f] = struct{}{}
		}
	}

	encodingFormats := make([]string, 0, len(formats))
	for f := range formats {
		encodingFormats = append(encodingFormats, f)
	}
	sort.Strings(encodingFormats)

	return map[string]interface{}{
		"schemaKey":            "AssetsSummary",
		"numberOfBytes":        totalBytes,
		"numberOfFiles":        int64(len(assets)),
		"encodingFormats":      encodingFormats,
		"approach":             unionField(assets, "approach"),
		"measurementTechnique": unionField(assets, "measurementTechnique"),
		"variableMeasured":     unionField(assets, "variableMeasured"),
		"species":              unionField(assets, "species"),
	}
}

// unionField collects the distinct values of a list-valued metadata field
// across assets, deduplicated and ordered by canonical JSON encoding.
func unionField(assets []*models.Asset, field string) []interface{} {
	seen := make(map[string]interface{})
	for _, a := range assets {
		values, ok := a.Metadata[field].([]interface{})
		if !ok {
			continue
		}
		for _, v := range values {
			encoded, err := json.Marshal(v)
			if err != nil {
				continue
			}
			seen[string(encoded)] = v
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	union := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		union = append(union, seen[k])
	}
	return union
}

// RevalidateContent validates every pending asset backed by the given
// content. Called after a blob digest lands or a zarr archive completes
// ingest, so deferred validations run without waiting for the next sweep.
func (e *Engine) RevalidateContent(ctx context.Context, content models.ContentRef) error {
	assets, err := e.store.Assets().ListByContentRef(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to list assets for %s: %w", content.String(), err)
	}
	for _, asset := range assets {
		if asset.Status != models.StatusPending {
			continue
		}
		if err := e.ValidateAsset(ctx, asset.ID); err != nil {
			return err
		}
	}
	return nil
}

// contentDigest resolves the digest of the asset's backing content. ready
// is false while the digest is still being computed.
func (e *Engine) contentDigest(ctx context.Context, content models.ContentRef) (key, digest string, ready bool, err error) {
	if content.IsZarr() {
		zarr, err := e.store.Zarrs().GetByZarrID(ctx, content.ID())
		if err != nil {
			return "", "", false, fmt.Errorf("failed to resolve zarr %s: %w", content.ID(), err)
		}
		if !zarr.Ready() {
			return "", "", false, nil
		}
		return digestKeyZarr, *zarr.Checksum, true, nil
	}

	blob, err := e.store.Blobs().GetByBlobID(ctx, content.ID())
	if err != nil {
		return "", "", false, fmt.Errorf("failed to resolve blob %s: %w", content.ID(), err)
	}
	if !blob.Ready() {
		return "", "", false, nil
	}
	return digestKeyBlob, *blob.Digest, true, nil
}

// mergeDocument overlays computed fields onto user metadata with an RFC
// 7386 merge patch, so computed values win without disturbing unrelated
// user fields.
func mergeDocument(base, computed models.Metadata) (models.Metadata, error) {
	if base == nil {
		base = models.Metadata{}
	}
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	patchJSON, err := json.Marshal(computed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode computed fields: %w", err)
	}

	mergedJSON, err := jsonpatch.MergePatch(baseJSON, patchJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to merge computed fields: %w", err)
	}

	var merged models.Metadata
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, fmt.Errorf("failed to decode merged document: %w", err)
	}
	return merged, nil
}
