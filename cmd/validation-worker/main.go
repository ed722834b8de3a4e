package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/dandihub/archive/cmd/validation-worker/consumer"
	"github.com/dandihub/archive/cmd/validation-worker/sweeper"
	"github.com/dandihub/archive/common/bootstrap"
	"github.com/dandihub/archive/common/db"
	"github.com/dandihub/archive/common/ratelimit"
	"github.com/dandihub/archive/common/repository/postgres"
	"github.com/dandihub/archive/common/schema"
	"github.com/dandihub/archive/common/server"
	"github.com/dandihub/archive/common/storage"
	"github.com/dandihub/archive/core"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap service components
	components, err := bootstrap.Setup(ctx, "validation-worker",
		bootstrap.WithDBInitHook(func(database *db.DB) error {
			return db.InitSchema(ctx, database)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	components.Logger.Info("validation-worker starting")

	store := postgres.NewStore(components.DB)

	// Local object store stand-in; production wires the bucket client here
	blobs := storage.NewMemoryStore()

	cfg := components.Config.Validation
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

	// Start work consumers
	workConsumer := consumer.New(components.Queue, engine, zarrs, uploads, cfg.TimeBudget, components.Logger)
	if err := workConsumer.Start(ctx); err != nil {
		components.Logger.Error("failed to start consumer", "error", err)
		os.Exit(1)
	}

	// Start the pending sweep
	var shared *ratelimit.RateLimiter
	if components.Redis != nil {
		shared = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)
	}
	go sweeper.New(store, components.Queue, shared, cfg, components.Logger).Run(ctx)

	// Health endpoints; blocks until shutdown signal
	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HealthHandler("validation-worker"))
	mux.HandleFunc("/health/system", server.SystemHandler())
	srv := server.New("validation-worker", components.Config.Service.Port, mux, components.Logger)
	srv.OnShutdown(func(context.Context) {
		// Stop consumers and the sweeper before the listener closes
		cancel()
	})
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}

	components.Logger.Info("validation-worker shutting down gracefully")
}
