// Package ranking answers paginated "most profitable" queries.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/uptrace/bun"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
	"github.com/xivmarket/market-calculator/marketboard/metrics"
)

const (
	MetricCraftProfit       = "craft_profit"
	MetricCraftProfitPerDay = "craft_profit_per_day"
	MetricRawProfitPerDay   = "raw_profit_per_day"

	velocityColumn = "regular_sale_velocity"
)

var ErrUnknownMetric = errors.New("ranking: unknown metric")

// Metrics lists the sortable metrics.
var Metrics = []string{MetricCraftProfit, MetricCraftProfitPerDay, MetricRawProfitPerDay}

// Query describes one ranking page.
type Query struct {
	Metric            string
	VelocityThreshold float64
	Limit             int
	Offset            int
	// Gatherable, when set, keeps only items whose gatherable flag matches.
	Gatherable *bool
	// MaxRecipeLevel, when set, keeps only items with a producing recipe at or below this level.
	MaxRecipeLevel *int
}

// Validate rejects unknown metrics and negative paging.
func (q Query) Validate() error {
	if !ValidMetric(q.Metric) {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, q.Metric)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("ranking: limit and offset must not be negative")
	}
	return nil
}

// ValidMetric reports whether metric is one of Metrics.
func ValidMetric(metric string) bool {
	for _, m := range Metrics {
		if m == metric {
			return true
		}
	}
	return false
}

// Row is one ranked item.
type Row struct {
	ItemID      int64
	Name        string
	Metric      float64
	Velocity    float64
	AveCost     *int64
	CostToCraft *int64
}

// Engine answers tiered ranking queries against the catalog.
type Engine struct {
	db      bun.IDB
	base    *repositories.BaseRepository
	metrics *metrics.Registry
	logger  *slog.Logger
}

func NewEngine(db bun.IDB, reg *metrics.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:      db,
		base:    repositories.NewBaseRepository(db),
		metrics: reg,
		logger:  logger,
	}
}

// tier is a velocity predicate applied on top of the shared filters.
type tier func(q *bun.SelectQuery) *bun.SelectQuery

// Rank returns up to q.Limit rows sorted by metric descending, then item id.
// Items meeting the velocity threshold are preferred; when they cannot fill
// the page, slower items and finally any item with a known velocity are used
// as backfill. Rows with a null metric or velocity never appear.
func (e *Engine) Rank(ctx context.Context, q Query) ([]Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Limit == 0 {
		return []Row{}, nil
	}

	tiers := []tier{
		func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("? >= ?", bun.Ident(velocityColumn), q.VelocityThreshold)
		},
		func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("? >= 0", bun.Ident(velocityColumn)).
				Where("? < ?", bun.Ident(velocityColumn), q.VelocityThreshold)
		},
		func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq
		},
	}

	seen := make(map[int64]struct{}, q.Limit)
	rows := make([]Row, 0, q.Limit)
	queried := 0

	for i, t := range tiers {
		deficit := q.Limit - len(rows)
		if deficit <= 0 {
			break
		}
		limit := deficit
		if i == len(tiers)-1 {
			// The fallback overlaps the earlier tiers; over-fetch by what is
			// already collected so duplicates cannot leave the page short.
			limit += len(rows)
		}

		items, err := e.fetchTier(ctx, q, t, limit)
		if err != nil {
			return nil, err
		}
		queried++

		for _, item := range items {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			rows = append(rows, toRow(item, q.Metric))
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Metric != rows[j].Metric {
			return rows[i].Metric > rows[j].Metric
		}
		return rows[i].ItemID < rows[j].ItemID
	})
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	e.metrics.ObserveRanking(q.Metric, queried)
	e.logger.Debug("Ranking served",
		slog.String("type", "db"),
		slog.String("metric", q.Metric),
		slog.Float64("threshold", q.VelocityThreshold),
		slog.Int("limit", q.Limit),
		slog.Int("offset", q.Offset),
		slog.Int("tiers", queried),
		slog.Int("rows", len(rows)),
	)
	return rows, nil
}

func (e *Engine) fetchTier(ctx context.Context, q Query, t tier, limit int) ([]*models.Item, error) {
	var items []*models.Item
	err := e.base.SelectWithTimeout(ctx, "rank", "item", func(ctx context.Context) error {
		sq := e.db.NewSelect().
			Model(&items).
			Column("id", "name", "ave_cost", "cost_to_craft", velocityColumn, q.Metric).
			Where("? IS NOT NULL", bun.Ident(q.Metric)).
			Where("? IS NOT NULL", bun.Ident(velocityColumn))

		sq = t(sq)

		if q.Gatherable != nil {
			sq = sq.Where("gatherable = ?", *q.Gatherable)
		}
		if q.MaxRecipeLevel != nil {
			sq = sq.Where("EXISTS (SELECT 1 FROM recipes AS r WHERE r.item_result = i.id AND r.recipe_level <= ?)", *q.MaxRecipeLevel)
		}

		return sq.
			OrderExpr("? DESC", bun.Ident(q.Metric)).
			Order("id ASC").
			Limit(limit).
			Offset(q.Offset).
			Scan(ctx)
	})
	return items, err
}

func toRow(item *models.Item, metric string) Row {
	row := Row{
		ItemID:      item.ID,
		Name:        item.Name,
		AveCost:     item.AveCost,
		CostToCraft: item.CostToCraft,
	}
	if item.RegularSaleVelocity != nil {
		row.Velocity = *item.RegularSaleVelocity
	}
	switch metric {
	case MetricCraftProfit:
		if item.CraftProfit != nil {
			row.Metric = float64(*item.CraftProfit)
		}
	case MetricCraftProfitPerDay:
		if item.CraftProfitPerDay != nil {
			row.Metric = *item.CraftProfitPerDay
		}
	case MetricRawProfitPerDay:
		if item.RawProfitPerDay != nil {
			row.Metric = *item.RawProfitPerDay
		}
	}
	return row
}
