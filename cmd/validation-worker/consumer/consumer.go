// Package consumer processes validation work from the queue. Each message
// runs under the configured time budget so one slow document cannot stall
// the worker.
package consumer

import (
	"context"
	"time"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/queue"
	"github.com/dandihub/archive/core"
)

// Consumer subscribes to the validation topics and dispatches work to the
// core services
type Consumer struct {
	queue   queue.Queue
	engine  *core.Engine
	zarrs   *core.ZarrService
	uploads *core.UploadService
	budget  time.Duration
	log     *logger.Logger
}

// New creates a consumer
func New(q queue.Queue, engine *core.Engine, zarrs *core.ZarrService, uploads *core.UploadService, budget time.Duration, log *logger.Logger) *Consumer {
	return &Consumer{
		queue:   q,
		engine:  engine,
		zarrs:   zarrs,
		uploads: uploads,
		budget:  budget,
		log:     log,
	}
}

// Start subscribes to all work topics. Subscriptions run until ctx is
// cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.queue.Subscribe(ctx, queue.TopicAssetValidate, c.handleAsset); err != nil {
		return err
	}
	if err := c.queue.Subscribe(ctx, queue.TopicVersionValidate, c.handleVersion); err != nil {
		return err
	}
	if err := c.queue.Subscribe(ctx, queue.TopicZarrIngest, c.handleZarr); err != nil {
		return err
	}
	if err := c.queue.Subscribe(ctx, queue.TopicUploadVerify, c.handleUpload); err != nil {
		return err
	}

	c.log.Info("consumer subscribed",
		"topics", []string{
			queue.TopicAssetValidate,
			queue.TopicVersionValidate,
			queue.TopicZarrIngest,
			queue.TopicUploadVerify,
		},
		"time_budget", c.budget)
	return nil
}

func (c *Consumer) handleAsset(ctx context.Context, key string, payload []byte) error {
	var work core.AssetWork
	if err := core.DecodeWork(payload, &work); err != nil {
		c.log.Error("dropping malformed asset work", "key", key, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()
	return c.engine.ValidateAsset(ctx, work.AssetRowID)
}

func (c *Consumer) handleVersion(ctx context.Context, key string, payload []byte) error {
	var work core.VersionWork
	if err := core.DecodeWork(payload, &work); err != nil {
		c.log.Error("dropping malformed version work", "key", key, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	if work.Aggregate {
		if err := c.engine.AggregateAssetsSummary(ctx, work.VersionID); err != nil {
			// The version stays PENDING; the sweep retries later
			c.log.Warn("assets summary aggregation gave up",
				"version_id", work.VersionID, "error", err)
			return nil
		}
	}
	return c.engine.ValidateVersion(ctx, work.VersionID)
}

func (c *Consumer) handleZarr(ctx context.Context, key string, payload []byte) error {
	var work core.ZarrWork
	if err := core.DecodeWork(payload, &work); err != nil {
		c.log.Error("dropping malformed zarr work", "key", key, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()
	return c.zarrs.Ingest(ctx, work.ZarrID)
}

func (c *Consumer) handleUpload(ctx context.Context, key string, payload []byte) error {
	var work core.UploadWork
	if err := core.DecodeWork(payload, &work); err != nil {
		c.log.Error("dropping malformed upload work", "key", key, "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()
	return c.uploads.Verify(ctx, work.Digest)
}
