package container

import (
	"github.com/dandihub/archive/common/bootstrap"
	"github.com/dandihub/archive/common/ratelimit"
	"github.com/dandihub/archive/common/repository"
	"github.com/dandihub/archive/common/repository/postgres"
	"github.com/dandihub/archive/common/schema"
	"github.com/dandihub/archive/common/search"
	"github.com/dandihub/archive/common/storage"
	"github.com/dandihub/archive/core"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Persistence and collaborators
	Store repository.Store
	Blobs storage.BlobStore

	// Services
	Paths        *core.PathIndex
	Chain        *core.AssetChain
	Engine       *core.Engine
	Zarrs        *core.ZarrService
	Uploads      *core.UploadService
	Orchestrator *core.Orchestrator
	Filter       *search.Filter
	Limiter      *ratelimit.RateLimiter
}

// NewContainer initializes all services once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	store := postgres.NewStore(components.DB)

	// Local object store stand-in; production wires the bucket client here
	blobs := storage.NewMemoryStore()

	cfg := components.Config.Validation
	paths := core.NewPathIndex(store, components.Logger)
	chain := core.NewAssetChain(store, paths, components.Logger)
	engine := core.NewEngine(
		store,
		schema.NewAssetValidator(cfg.AllowedSchemaVersions),
		schema.NewVersionValidator(cfg.AllowedSchemaVersions),
		cfg.AggregateMaxRetries,
		cfg.AggregateBackoff,
		components.Logger,
	)
	zarrs := core.NewZarrService(store, engine, components.Logger)
	uploads := core.NewUploadService(store, blobs, engine, components.Logger)
	orchestrator := core.NewOrchestrator(
		store,
		chain,
		engine,
		components.Queue,
		components.Config.Features.EnableEagerChecks,
		cfg.CurrentSchemaVersion,
		components.Logger,
	)

	var limiter *ratelimit.RateLimiter
	if components.Redis != nil {
		limiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)
	}

	return &Container{
		Components:   components,
		Store:        store,
		Blobs:        blobs,
		Paths:        paths,
		Chain:        chain,
		Engine:       engine,
		Zarrs:        zarrs,
		Uploads:      uploads,
		Orchestrator: orchestrator,
		Filter:       search.NewFilter(),
		Limiter:      limiter,
	}, nil
}
