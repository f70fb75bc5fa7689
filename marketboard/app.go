// Package marketboard wires configuration, storage and services into a
// running market calculator.
package marketboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xivmarket/market-calculator/marketboard/database"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
	"github.com/xivmarket/market-calculator/marketboard/economy"
	"github.com/xivmarket/market-calculator/marketboard/economy/ingest"
	"github.com/xivmarket/market-calculator/marketboard/economy/pricing"
	"github.com/xivmarket/market-calculator/marketboard/economy/ranking"
	"github.com/xivmarket/market-calculator/marketboard/metrics"
	"github.com/xivmarket/market-calculator/marketboard/services"
	"github.com/xivmarket/market-calculator/marketboard/services/catalog"
	"github.com/xivmarket/market-calculator/marketboard/services/notify"
	"github.com/xivmarket/market-calculator/marketboard/services/universalis"
)

func New(cfg Config, version string, commit string, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
		Logger:    logger,
	}
}

type App struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	Logger    *slog.Logger

	DB        *database.DB
	Items     repositories.ItemRepository
	Recipes   repositories.RecipeRepository
	States    repositories.StateRepository
	Locations repositories.LocationRepository
	Registry  *prometheus.Registry
	Metrics   *metrics.Registry

	Universalis *universalis.Client
	Engine      *ranking.Engine
	Search      *services.SearchService
	Spaces      *services.SpacesService
	Notifier    *notify.Notifier
	Pipeline    *economy.Pipeline
}

// Init opens the database and builds every service the configuration enables.
func (a *App) Init(ctx context.Context) error {
	start := time.Now()
	db, err := database.New(ctx, a.Cfg.DB, a.Logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.InitializeSchema(ctx); err != nil {
		db.Close()
		return fmt.Errorf("initialize schema: %w", err)
	}
	a.Logger.Info("Database ready",
		slog.String("type", "db"),
		slog.String("driver", db.Driver()),
		slog.Duration("took", time.Since(start)),
	)
	return a.InitWithDB(ctx, db)
}

// InitWithDB builds the services on an already initialized database.
func (a *App) InitWithDB(ctx context.Context, db *database.DB) error {
	a.DB = db
	a.Items = repositories.NewItemRepository(db.BunDB())
	a.Recipes = repositories.NewRecipeRepository(db.BunDB())
	a.States = repositories.NewStateRepository(db.BunDB())
	a.Locations = repositories.NewLocationRepository(db.BunDB())

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	client, err := universalis.New(a.Cfg.UniversalisClientConfig(), a.Metrics, a.Logger)
	if err != nil {
		return fmt.Errorf("create universalis client: %w", err)
	}
	a.Universalis = client
	a.Engine = ranking.NewEngine(db.BunDB(), a.Metrics, a.Logger)
	a.Search = services.NewSearchService(a.Items)

	deps := economy.PipelineDeps{
		Items:  a.Items,
		States: a.States,
		Controller: ingest.NewController(a.Items, a.States, client, ingest.Options{
			RequestDelay: a.Cfg.Main.RequestDelay.Duration,
			Metrics:      a.Metrics,
			Logger:       a.Logger,
		}),
		Propagator: pricing.NewPropagator(db.BunDB(), a.Metrics, a.Logger),
		Engine:     a.Engine,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	}

	if a.Cfg.Discord.Enabled {
		webhookClient, err := notify.NewWebhookClient(a.Cfg.Discord.WebhookID, a.Cfg.Discord.WebhookToken)
		if err != nil {
			return fmt.Errorf("create webhook client: %w", err)
		}
		a.Notifier = notify.New(webhookClient, a.Logger)
		deps.Publisher = a.Notifier
	}

	if a.Cfg.Spaces.Enabled() {
		spaces, err := services.NewSpacesService(ctx,
			a.Cfg.Spaces.Key,
			a.Cfg.Spaces.Secret,
			a.Cfg.Spaces.Region,
			a.Cfg.Spaces.Bucket,
			a.Cfg.Spaces.ReportRoot,
		)
		if err != nil {
			return fmt.Errorf("create spaces client: %w", err)
		}
		a.Spaces = spaces
		deps.Archiver = spaces
		a.Logger.Info("Report archive enabled",
			slog.String("type", "sys"),
			slog.String("bucket", spaces.GetBucket()),
			slog.String("region", spaces.GetRegion()),
		)
	}

	a.Pipeline = economy.NewPipeline(a.PipelineConfig(), deps)
	return nil
}

func (a *App) PipelineConfig() economy.PipelineConfig {
	main := a.Cfg.Main
	return economy.PipelineConfig{
		Scope:          a.Cfg.Scope(),
		UpdateQuantity: main.UpdateQuantity,
		Threshold:      main.MinAvgSalesPerDay,
		Tables: economy.Tables(
			a.Cfg.Discord.MessageIDs,
			a.Cfg.Discord.NoCraftMessageIDs,
			a.Cfg.Discord.GatheringMessageIDs,
			main.DisplayWithoutCraftCost,
			main.DisplayGatheringProfit,
		),
	}
}

func (a *App) Bootstrapper() *catalog.Bootstrapper {
	return catalog.NewBootstrapper(a.Cfg.CatalogSources(), a.Universalis, a.Items, a.Recipes, a.States, a.Locations, a.Logger)
}

// CheckScope fails when the configured world or datacentre is not a seeded
// location.
func (a *App) CheckScope(ctx context.Context) error {
	return catalog.CheckScope(ctx, a.Locations, a.Cfg.Scope())
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

func (a *App) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(a.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(a.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	a.Client = client
	return nil
}

func (a *App) OnReady(_ *events.Ready) {
	a.Logger.Info("Market calculator bot is now ready",
		slog.String("type", "sys"),
		slog.String("version", a.Version),
		slog.String("commit", a.Commit),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Client.SetPresence(ctx,
		gateway.WithWatchingActivity(a.Cfg.Scope().Location+" market board"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		a.Logger.Error("Failed to set presence",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
	}
}
