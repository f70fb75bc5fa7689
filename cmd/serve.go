package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/spf13/cobra"
	"github.com/xivmarket/market-calculator/marketboard"
	"github.com/xivmarket/market-calculator/marketboard/api"
	"github.com/xivmarket/market-calculator/marketboard/commands"
	"golang.org/x/sync/errgroup"
)

var syncCommands bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the update loop, the HTTP API and the Discord bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.CheckScope(ctx); err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(ctx)

		server := api.NewServer(api.Deps{
			Ranker:      app.Engine,
			Items:       app.Items,
			Search:      app.Search,
			DB:          app.DB,
			Gatherer:    app.Registry,
			MinSales:    cfg.Main.MinAvgSalesPerDay,
			ResultLimit: cfg.Main.ResultQuantity,
			Logger:      appLogger,
		})
		g.Go(func() error {
			return server.Run(ctx, cfg.HTTP.Addr)
		})

		if cfg.Main.EndlessLoop {
			g.Go(func() error {
				app.Pipeline.Start(ctx, cfg.Main.LoopInterval.Duration)
				return nil
			})
		} else {
			g.Go(func() error {
				_, err := app.Pipeline.RunOnce(ctx)
				if err != nil {
					appLogger.Error("Pipeline run failed",
						slog.String("type", "sys"),
						slog.Any("error", err),
					)
				}
				return nil
			})
		}

		if cfg.Bot.Token != "" {
			g.Go(func() error {
				return runBot(ctx, app)
			})
		}

		appLogger.Info("Market calculator is running. Press CTRL-C to exit.",
			slog.String("type", "sys"),
			slog.String("version", version),
			slog.String("scope", app.Cfg.Scope().String()),
		)
		return g.Wait()
	},
}

func runBot(ctx context.Context, app *marketboard.App) error {
	if err := app.SetupBot(commands.Router(app), bot.NewListenerFunc(app.OnReady)); err != nil {
		return fmt.Errorf("setup bot: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		app.Client.Close(closeCtx)
	}()

	if syncCommands {
		appLogger.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err := handler.SyncCommands(app.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			appLogger.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
			)
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.Client.OpenGateway(openCtx); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	<-ctx.Done()
	appLogger.Info("Shutting down bot...", slog.String("type", "sys"))
	return nil
}

func init() {
	serveCmd.Flags().BoolVar(&syncCommands, "sync-commands", false, "sync slash commands to Discord")
	rootCmd.AddCommand(serveCmd)
}
