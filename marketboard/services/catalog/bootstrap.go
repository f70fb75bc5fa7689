// Package catalog builds the item and recipe tables from the game's
// datamining exports and the market board's marketable item list.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
	"golang.org/x/sync/errgroup"
)

const datamining = "https://raw.githubusercontent.com/xivapi/ffxiv-datamining/master/csv/"

const (
	DefaultItemCSVURL       = datamining + "Item.csv"
	DefaultRecipeCSVURL     = datamining + "Recipe.csv"
	DefaultGatheringCSVURL  = datamining + "GatheringItem.csv"
	DefaultWorldCSVURL      = datamining + "World.csv"
	DefaultDatacentreCSVURL = datamining + "WorldDCGroupType.csv"
)

// MarketableSource lists the item ids that can be traded on the market board.
type MarketableSource interface {
	Marketable(ctx context.Context) ([]int64, error)
}

type Sources struct {
	ItemCSVURL       string
	RecipeCSVURL     string
	GatheringCSVURL  string
	WorldCSVURL      string
	DatacentreCSVURL string
	Timeout          time.Duration
}

// Result summarises a bootstrap.
type Result struct {
	Items       int
	Recipes     int
	Gatherable  int
	Worlds      int
	Datacentres int
	Duration    time.Duration
}

type Bootstrapper struct {
	http       *resty.Client
	sources    Sources
	marketable MarketableSource
	items      repositories.ItemRepository
	recipes    repositories.RecipeRepository
	states     repositories.StateRepository
	locations  repositories.LocationRepository
	logger     *slog.Logger
}

func NewBootstrapper(
	sources Sources,
	marketable MarketableSource,
	items repositories.ItemRepository,
	recipes repositories.RecipeRepository,
	states repositories.StateRepository,
	locations repositories.LocationRepository,
	logger *slog.Logger,
) *Bootstrapper {
	if sources.ItemCSVURL == "" {
		sources.ItemCSVURL = DefaultItemCSVURL
	}
	if sources.RecipeCSVURL == "" {
		sources.RecipeCSVURL = DefaultRecipeCSVURL
	}
	if sources.GatheringCSVURL == "" {
		sources.GatheringCSVURL = DefaultGatheringCSVURL
	}
	if sources.WorldCSVURL == "" {
		sources.WorldCSVURL = DefaultWorldCSVURL
	}
	if sources.DatacentreCSVURL == "" {
		sources.DatacentreCSVURL = DefaultDatacentreCSVURL
	}
	if sources.Timeout <= 0 {
		// Item.csv is tens of megabytes.
		sources.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{
		http:       resty.New().SetTimeout(sources.Timeout),
		sources:    sources,
		marketable: marketable,
		items:      items,
		recipes:    recipes,
		states:     states,
		locations:  locations,
		logger:     logger,
	}
}

// Run downloads every source, then upserts the marketable items, the recipes
// producing them and the public worlds and datacentres. The scope must name
// one of those locations before its checkpoint row is created.
func (b *Bootstrapper) Run(ctx context.Context, scope models.Scope) (*Result, error) {
	start := time.Now()

	var (
		marketableIDs                    []int64
		itemCSV, recipeCSV, gatheringCSV []byte
		worldCSV, datacentreCSV          []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := b.marketable.Marketable(gctx)
		marketableIDs = ids
		return err
	})
	g.Go(func() (err error) {
		itemCSV, err = b.download(gctx, b.sources.ItemCSVURL)
		return err
	})
	g.Go(func() (err error) {
		recipeCSV, err = b.download(gctx, b.sources.RecipeCSVURL)
		return err
	})
	g.Go(func() (err error) {
		gatheringCSV, err = b.download(gctx, b.sources.GatheringCSVURL)
		return err
	})
	g.Go(func() (err error) {
		worldCSV, err = b.download(gctx, b.sources.WorldCSVURL)
		return err
	})
	g.Go(func() (err error) {
		datacentreCSV, err = b.download(gctx, b.sources.DatacentreCSVURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("catalog download failed: %w", err)
	}

	marketable := make(map[int64]struct{}, len(marketableIDs))
	for _, id := range marketableIDs {
		marketable[id] = struct{}{}
	}

	items, err := ParseItems(itemCSV, marketable)
	if err != nil {
		return nil, err
	}
	recipes, err := ParseRecipes(recipeCSV, marketable)
	if err != nil {
		return nil, err
	}
	gatherable, err := ParseGathering(gatheringCSV)
	if err != nil {
		return nil, err
	}
	worlds, err := ParseWorlds(worldCSV)
	if err != nil {
		return nil, err
	}
	datacentres, err := ParseDatacentres(datacentreCSV)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Items:       len(items),
		Recipes:     len(recipes),
		Worlds:      len(worlds),
		Datacentres: len(datacentres),
	}
	for _, item := range items {
		if _, ok := gatherable[item.ID]; ok {
			item.Gatherable = true
			result.Gatherable++
		}
	}

	if err := b.items.Upsert(ctx, items); err != nil {
		return nil, fmt.Errorf("failed to store items: %w", err)
	}
	if err := b.recipes.Upsert(ctx, recipes); err != nil {
		return nil, fmt.Errorf("failed to store recipes: %w", err)
	}
	if err := b.locations.Upsert(ctx, append(worlds, datacentres...)); err != nil {
		return nil, fmt.Errorf("failed to store locations: %w", err)
	}
	if err := CheckScope(ctx, b.locations, scope); err != nil {
		return nil, err
	}
	if _, err := b.states.Get(ctx, scope); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint: %w", err)
	}

	result.Duration = time.Since(start)
	b.logger.Info("Catalog bootstrapped",
		slog.String("type", "db"),
		slog.String("scope", scope.String()),
		slog.Int("marketable", len(marketable)),
		slog.Int("items", result.Items),
		slog.Int("recipes", result.Recipes),
		slog.Int("gatherable", result.Gatherable),
		slog.Int("worlds", result.Worlds),
		slog.Int("datacentres", result.Datacentres),
		slog.Duration("took", result.Duration),
	)
	return result, nil
}

func (b *Bootstrapper) download(ctx context.Context, url string) ([]byte, error) {
	b.logger.Debug("Downloading catalog source", slog.String("type", "api"), slog.String("url", url))

	resp, err := b.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}
