// Package pricing derives crafting costs and profit metrics from item averages.
package pricing

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
	"github.com/xivmarket/market-calculator/marketboard/metrics"
)

// PropagationStats summarises one PropagateCosts pass.
type PropagationStats struct {
	Items          int
	Recipes        int
	ItemsChanged   int
	RecipesChanged int
	Duration       time.Duration
}

// Propagator recomputes every derived cost field in a single transaction.
type Propagator struct {
	db      bun.IDB
	metrics *metrics.Registry
	logger  *slog.Logger
}

func NewPropagator(db bun.IDB, reg *metrics.Registry, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{db: db, metrics: reg, logger: logger}
}

// PropagateCosts recomputes ingredient costs, recipe costs, item costs to
// craft and profit metrics, in that order, from the current item averages.
// All values are recomputed from scratch; only rows that changed are written.
// Readers never observe a partially propagated catalog.
func (p *Propagator) PropagateCosts(ctx context.Context, scope models.Scope) (*PropagationStats, error) {
	start := time.Now()
	stats := &PropagationStats{}

	ctx, cancel := context.WithTimeout(ctx, config.PropagationTimeout)
	defer cancel()

	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		itemRepo := repositories.NewItemRepository(tx)
		recipeRepo := repositories.NewRecipeRepository(tx)

		items, err := itemRepo.All(ctx)
		if err != nil {
			return err
		}
		recipes, err := recipeRepo.All(ctx)
		if err != nil {
			return err
		}
		stats.Items, stats.Recipes = len(items), len(recipes)

		changedRecipes, recipeCosts := propagateRecipes(items, recipes)
		changedItems := propagateItems(items, recipeCosts)
		stats.RecipesChanged, stats.ItemsChanged = len(changedRecipes), len(changedItems)

		if err := recipeRepo.UpdateCosts(ctx, changedRecipes); err != nil {
			return err
		}
		return itemRepo.UpdateDerived(ctx, changedItems)
	})
	stats.Duration = time.Since(start)
	p.metrics.ObserveStage("propagate", stats.Duration, err)

	if err != nil {
		p.logger.Error("Cost propagation failed",
			slog.String("type", "db"),
			slog.String("scope", scope.String()),
			slog.Any("error", err),
		)
		return stats, err
	}

	p.logger.Info("Cost propagation finished",
		slog.String("type", "sys"),
		slog.String("scope", scope.String()),
		slog.Int("items", stats.Items),
		slog.Int("recipes", stats.Recipes),
		slog.Int("items_changed", stats.ItemsChanged),
		slog.Int("recipes_changed", stats.RecipesChanged),
		slog.Duration("took", stats.Duration),
	)
	return stats, nil
}

// propagateRecipes fills ingredient and recipe costs and groups recipe costs
// by result item.
func propagateRecipes(items []*models.Item, recipes []*models.Recipe) ([]*models.Recipe, map[int64][]int64) {
	aveCosts := make(map[int64]*int64, len(items))
	for _, item := range items {
		aveCosts[item.ID] = item.AveCost
	}

	var changed []*models.Recipe
	byResult := make(map[int64][]int64)
	for _, r := range recipes {
		beforeSlots, beforeCost := r.Slots(), r.CostToCraft
		FillRecipe(r, aveCosts)
		if beforeSlots != r.Slots() || beforeCost != r.CostToCraft {
			changed = append(changed, r)
		}
		byResult[r.ItemResult] = append(byResult[r.ItemResult], r.CostToCraft)
	}
	return changed, byResult
}

func propagateItems(items []*models.Item, recipeCosts map[int64][]int64) []*models.Item {
	var changed []*models.Item
	for _, item := range items {
		costToCraft := ItemCostToCraft(item.AveCost, recipeCosts[item.ID])
		profit := ComputeProfit(item.AveCost, costToCraft, item.RegularSaleVelocity)
		if profit.Apply(item, costToCraft) {
			changed = append(changed, item)
		}
	}
	return changed
}
