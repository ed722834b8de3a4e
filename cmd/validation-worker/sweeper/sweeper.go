// Package sweeper periodically rounds up records stuck in PENDING and
// re-dispatches them to the validation queue. The sweep is the safety net
// behind eager validation and queue delivery: anything missed by either
// gets picked up on the next pass.
package sweeper

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/dandihub/archive/common/config"
	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/queue"
	"github.com/dandihub/archive/common/ratelimit"
	"github.com/dandihub/archive/common/repository"
	"github.com/dandihub/archive/core"
)

// Sweeper dispatches pending validation work at a bounded rate. A local
// token bucket paces this process; the shared Redis counter caps the
// combined rate of all sweeper instances.
type Sweeper struct {
	store   repository.Store
	queue   queue.Queue
	shared  *ratelimit.RateLimiter
	local   *rate.Limiter
	cfg     config.ValidationConfig
	log     *logger.Logger
}

// New creates a sweeper. shared may be nil when running single-node.
func New(store repository.Store, q queue.Queue, shared *ratelimit.RateLimiter, cfg config.ValidationConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		queue:  q,
		shared: shared,
		local:  rate.NewLimiter(rate.Limit(cfg.DispatchPerSecond), cfg.DispatchPerSecond),
		cfg:    cfg,
		log:    log,
	}
}

// Run sweeps on the configured interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("sweeper starting",
		"interval", s.cfg.SweepInterval,
		"dispatch_per_second", s.cfg.DispatchPerSecond)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over pending assets and pending draft versions
func (s *Sweeper) Sweep(ctx context.Context) {
	if n, err := s.sweepAssets(ctx); err != nil {
		s.log.Error("asset sweep failed", "error", err)
	} else if n > 0 {
		s.log.Info("asset sweep dispatched", "count", n)
	}

	if n, err := s.sweepVersions(ctx); err != nil {
		s.log.Error("version sweep failed", "error", err)
	} else if n > 0 {
		s.log.Info("version sweep dispatched", "count", n)
	}
}

// sweepAssets dispatches pending assets whose content is ready
func (s *Sweeper) sweepAssets(ctx context.Context) (int, error) {
	ids, err := s.store.Assets().ListPendingValidatableIDs(ctx, s.cfg.DispatchBatchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, id := range ids {
		ok, err := s.allow(ctx)
		if err != nil {
			return dispatched, err
		}
		if !ok {
			// Shared budget exhausted; the rest waits for the next pass
			return dispatched, nil
		}

		payload, err := core.EncodeWork(core.AssetWork{AssetRowID: id})
		if err != nil {
			return dispatched, err
		}
		if err := s.queue.Publish(ctx, queue.TopicAssetValidate,
			strconv.FormatInt(id, 10), payload); err != nil {
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

// sweepVersions dispatches pending draft versions for aggregation and
// validation
func (s *Sweeper) sweepVersions(ctx context.Context) (int, error) {
	ids, err := s.store.Versions().ListPendingDraftIDs(ctx, s.cfg.DispatchBatchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, id := range ids {
		ok, err := s.allow(ctx)
		if err != nil {
			return dispatched, err
		}
		if !ok {
			return dispatched, nil
		}

		payload, err := core.EncodeWork(core.VersionWork{VersionID: id, Aggregate: true})
		if err != nil {
			return dispatched, err
		}
		if err := s.queue.Publish(ctx, queue.TopicVersionValidate,
			strconv.FormatInt(id, 10), payload); err != nil {
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

// allow waits for the local pacer, then consults the shared counter
func (s *Sweeper) allow(ctx context.Context) (bool, error) {
	if err := s.local.Wait(ctx); err != nil {
		return false, err
	}
	if s.shared == nil {
		return true, nil
	}
	res, err := s.shared.CheckDispatchLimit(ctx, int64(s.cfg.DispatchPerSecond))
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
