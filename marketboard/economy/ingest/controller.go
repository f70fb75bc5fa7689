// Package ingest walks the item catalog against the trade history API and
// stores aggregated market statistics.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
	"github.com/xivmarket/market-calculator/marketboard/metrics"
	"github.com/xivmarket/market-calculator/marketboard/services/universalis"
	"golang.org/x/time/rate"
)

// HistoryClient fetches an item's trade history, newest trade first.
type HistoryClient interface {
	History(ctx context.Context, location string, itemID int64, entries int) (*universalis.History, error)
}

// RunStats summarises one Refresh call.
type RunStats struct {
	Started   time.Time
	Duration  time.Duration
	Processed int
	Updated   int
	Skipped   int
	Refetched int
	// LastID is the last item id that was attempted.
	LastID int64
}

// Options tunes a Controller. Zero values fall back to defaults.
type Options struct {
	RequestDelay time.Duration
	Metrics      *metrics.Registry
	Logger       *slog.Logger
	Now          func() time.Time
}

// Controller refreshes item statistics from the trade history API, pacing
// requests and checkpointing progress per scope.
type Controller struct {
	items   repositories.ItemRepository
	states  repositories.StateRepository
	history HistoryClient
	limiter *rate.Limiter
	metrics *metrics.Registry
	logger  *slog.Logger
	now     func() time.Time
}

func NewController(items repositories.ItemRepository, states repositories.StateRepository, history HistoryClient, opts Options) *Controller {
	if opts.RequestDelay <= 0 {
		opts.RequestDelay = config.DefaultRequestDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		items:   items,
		states:  states,
		history: history,
		// One token per delay with no burst: fetch starts are at least one
		// delay apart, and the wait overlaps with processing of the previous item.
		limiter: rate.NewLimiter(rate.Every(opts.RequestDelay), 1),
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// Refresh processes items in ascending id order starting at startID. count 0
// processes every remaining item. Per-item failures are logged and skipped.
// Cancellation of ctx or an open circuit breaker ends the run early, leaving
// the current item unrecorded. Aggregated statistics are written in one batch
// at the end, even when the run ended early.
func (c *Controller) Refresh(ctx context.Context, scope models.Scope, startID int64, count int) (*RunStats, error) {
	stats := &RunStats{Started: c.now()}

	maxID, err := c.items.MaxID(ctx)
	if err != nil {
		return stats, err
	}
	ids, err := c.items.ListIDs(ctx, startID, count)
	if err != nil {
		return stats, err
	}

	c.logger.Info("Refresh started",
		slog.String("type", "ingest"),
		slog.String("scope", scope.String()),
		slog.Int64("start_id", startID),
		slog.Int("count", count),
		slog.Int("items", len(ids)),
	)

	batch := make([]models.ItemStats, 0, len(ids))
	var runErr error

	for _, id := range ids {
		if err := c.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}

		itemStats, refetched, err := c.processItem(ctx, scope.Location, id)
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		if errors.Is(err, universalis.ErrUnavailable) {
			c.logger.Warn("Trade history unavailable, ending refresh early",
				slog.String("type", "ingest"),
				slog.String("scope", scope.String()),
				slog.Int64("item_id", id),
				slog.Int("processed", stats.Processed),
			)
			runErr = err
			break
		}

		stats.Processed++
		stats.LastID = id
		if refetched {
			stats.Refetched++
		}

		if err != nil {
			stats.Skipped++
			c.metrics.ObserveFetch("skipped")
			if err := c.states.MarkAttempted(ctx, scope, id); err != nil {
				c.logger.Error("Failed to record attempt",
					slog.String("type", "db"),
					slog.Int64("item_id", id),
					slog.Any("error", err),
				)
			}
			continue
		}

		batch = append(batch, itemStats)
		c.metrics.ObserveFetch("updated")
		if err := c.states.MarkSucceeded(ctx, scope, id, maxID); err != nil {
			c.logger.Error("Failed to advance checkpoint",
				slog.String("type", "db"),
				slog.Int64("item_id", id),
				slog.Any("error", err),
			)
		}
	}

	writeCtx := ctx
	if runErr != nil {
		writeCtx = context.WithoutCancel(ctx)
	}
	updated, err := c.items.BulkUpdateStats(writeCtx, batch)
	stats.Updated = updated
	stats.Duration = c.now().Sub(stats.Started)

	if err != nil {
		c.logger.Error("Failed to write item statistics",
			slog.String("type", "db"),
			slog.Int("batch", len(batch)),
			slog.Any("error", err),
		)
		return stats, errors.Join(runErr, err)
	}

	c.logger.Info("Refresh finished",
		slog.String("type", "ingest"),
		slog.String("scope", scope.String()),
		slog.Int("processed", stats.Processed),
		slog.Int("updated", stats.Updated),
		slog.Int("skipped", stats.Skipped),
		slog.Int("refetched", stats.Refetched),
		slog.Duration("took", stats.Duration),
	)
	return stats, runErr
}

// processItem fetches and aggregates one item. A non-nil error means the
// item has no usable data and must be left unchanged.
func (c *Controller) processItem(ctx context.Context, location string, id int64) (stats models.ItemStats, refetched bool, err error) {
	h, err := c.fetch(ctx, location, id, config.DefaultHistoryEntries)
	if err != nil {
		return stats, false, err
	}

	if needsRefetch(h) {
		if err := c.limiter.Wait(ctx); err != nil {
			return stats, false, err
		}
		refetched = true
		// A failed re-fetch falls back to the first response.
		if larger, err := c.fetch(ctx, location, id, config.RefetchHistoryEntries); err == nil {
			h = larger
		}
	}

	return Aggregate(id, h, c.now()), refetched, nil
}

func (c *Controller) fetch(ctx context.Context, location string, id int64, entries int) (*universalis.History, error) {
	h, err := c.history.History(ctx, location, id, entries)
	if err == nil && h == nil {
		err = universalis.ErrNoData
	}
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, universalis.ErrNotFound) || errors.Is(err, universalis.ErrNoData) {
			level = slog.LevelDebug
		}
		c.logger.Log(ctx, level, "No usable history for item",
			slog.String("type", "ingest"),
			slog.Int64("item_id", id),
			slog.Int("entries", entries),
			slog.Any("error", err),
		)
		return nil, err
	}
	return h, nil
}
