package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/models"
	"github.com/dandihub/archive/common/queue"
	"github.com/dandihub/archive/common/repository"
)

// Orchestrator drives the asset lifecycle end to end: it resolves versions,
// delegates the mutation to the asset chain and schedules the follow-up
// validation work. With eager checks enabled the asset is also validated
// inline, which is a no-op while its content is still processing.
type Orchestrator struct {
	store         repository.Store
	chain         *AssetChain
	engine        *Engine
	queue         queue.Queue
	eager         bool
	schemaVersion string
	log           *logger.Logger
}

// NewOrchestrator creates an orchestrator. schemaVersion is filled into
// submitted metadata that carries none; empty disables the defaulting.
func NewOrchestrator(store repository.Store, chain *AssetChain, engine *Engine, q queue.Queue, eager bool, schemaVersion string, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:         store,
		chain:         chain,
		engine:        engine,
		queue:         q,
		eager:         eager,
		schemaVersion: schemaVersion,
		log:           log,
	}
}

// ResolveVersion loads a version by dandiset identifier and version name
func (o *Orchestrator) ResolveVersion(ctx context.Context, dandisetID int, versionName string) (*models.Version, error) {
	return o.store.Versions().GetByDandisetAndVersion(ctx, dandisetID, versionName)
}

// CreateAsset attaches a new asset to the draft version and schedules
// validation
func (o *Orchestrator) CreateAsset(ctx context.Context, dandisetID int, versionName, path string, metadata models.Metadata, content models.ContentRef) (*models.Asset, error) {
	version, err := o.ResolveVersion(ctx, dandisetID, versionName)
	if err != nil {
		return nil, err
	}

	asset, err := o.chain.Attach(ctx, version, path, o.withSchemaVersion(metadata), content)
	if err != nil {
		return nil, err
	}

	o.afterMutation(ctx, version.ID, asset)
	return asset, nil
}

// UpdateAsset replaces an asset within the draft version and schedules
// validation. An update that changes nothing returns the current record
// without scheduling anything.
func (o *Orchestrator) UpdateAsset(ctx context.Context, dandisetID int, versionName string, assetID uuid.UUID, path string, metadata models.Metadata, content models.ContentRef) (*models.Asset, error) {
	version, err := o.ResolveVersion(ctx, dandisetID, versionName)
	if err != nil {
		return nil, err
	}

	old, err := o.store.Assets().GetLiveByAssetID(ctx, version.ID, assetID)
	if err != nil {
		return nil, err
	}

	replacement, err := o.chain.Replace(ctx, version, old, path, o.withSchemaVersion(metadata), content)
	if err != nil {
		return nil, err
	}
	if replacement.ID == old.ID {
		return replacement, nil
	}

	o.afterMutation(ctx, version.ID, replacement)
	return replacement, nil
}

// DeleteAsset detaches an asset from the draft version and schedules the
// version revalidation
func (o *Orchestrator) DeleteAsset(ctx context.Context, dandisetID int, versionName string, assetID uuid.UUID) error {
	version, err := o.ResolveVersion(ctx, dandisetID, versionName)
	if err != nil {
		return err
	}

	asset, err := o.store.Assets().GetLiveByAssetID(ctx, version.ID, assetID)
	if err != nil {
		return err
	}

	if err := o.chain.Detach(ctx, version, asset); err != nil {
		return err
	}

	o.scheduleVersion(ctx, version.ID)
	return nil
}

// GetAsset resolves the live record for an external asset id
func (o *Orchestrator) GetAsset(ctx context.Context, dandisetID int, versionName string, assetID uuid.UUID) (*models.Asset, error) {
	version, err := o.ResolveVersion(ctx, dandisetID, versionName)
	if err != nil {
		return nil, err
	}
	return o.store.Assets().GetLiveByAssetID(ctx, version.ID, assetID)
}

// ListAssets returns the live asset set of a version
func (o *Orchestrator) ListAssets(ctx context.Context, dandisetID int, versionName string) ([]*models.Asset, error) {
	version, err := o.ResolveVersion(ctx, dandisetID, versionName)
	if err != nil {
		return nil, err
	}
	return o.store.Assets().ListLiveByVersion(ctx, version.ID)
}

// withSchemaVersion fills in the configured schema version when the client
// omitted one, so the document can pass the version pin
func (o *Orchestrator) withSchemaVersion(metadata models.Metadata) models.Metadata {
	if o.schemaVersion == "" {
		return metadata
	}
	if _, ok := metadata["schemaVersion"]; ok {
		return metadata
	}
	defaulted := metadata.Clone()
	if defaulted == nil {
		defaulted = models.Metadata{}
	}
	defaulted["schemaVersion"] = o.schemaVersion
	return defaulted
}

// afterMutation schedules asset and version validation work. Scheduling
// failures are logged, not surfaced: the sweep redelivers anything missed.
func (o *Orchestrator) afterMutation(ctx context.Context, versionID int64, asset *models.Asset) {
	if err := o.publish(ctx, queue.TopicAssetValidate,
		strconv.FormatInt(asset.ID, 10), AssetWork{AssetRowID: asset.ID}); err != nil {
		o.log.Warn("failed to schedule asset validation", "asset_row_id", asset.ID, "error", err)
	}
	o.scheduleVersion(ctx, versionID)

	if o.eager {
		if err := o.engine.ValidateAsset(ctx, asset.ID); err != nil {
			o.log.Warn("eager asset validation failed", "asset_row_id", asset.ID, "error", err)
		}
	}
}

func (o *Orchestrator) scheduleVersion(ctx context.Context, versionID int64) {
	if err := o.publish(ctx, queue.TopicVersionValidate,
		strconv.FormatInt(versionID, 10), VersionWork{VersionID: versionID, Aggregate: true}); err != nil {
		o.log.Warn("failed to schedule version validation", "version_id", versionID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, topic, key string, work interface{}) error {
	payload, err := EncodeWork(work)
	if err != nil {
		return err
	}
	if err := o.queue.Publish(ctx, topic, key, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
