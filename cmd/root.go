// Package cmd holds the market calculator command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/xivmarket/market-calculator/marketboard"
	"github.com/xivmarket/market-calculator/marketboard/logger"
)

var (
	version = "dev"
	commit  = "unknown"

	configPath string
	envFile    string

	cfg       *marketboard.Config
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "market-calculator",
	Short:         "Rank profitable crafts on the FFXIV market board",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		marketboard.LoadEnv(envFile)

		loaded, err := marketboard.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		appLogger = logger.New(cfg.Log.Format, cfg.Log.Level, cfg.Log.AddSource)
		slog.SetDefault(appLogger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to an optional .env file")
}

// Execute runs the command line with the build's version information.
func Execute(ctx context.Context, v, c string) error {
	version, commit = v, c
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)

	start := time.Now()
	ran, err := rootCmd.ExecuteContextC(ctx)
	if appLogger != nil {
		logger.LogCommand(appLogger, ran.Name(), time.Since(start), err)
	}
	return err
}

// openApp connects the database and builds every configured service.
func openApp(ctx context.Context) (*marketboard.App, error) {
	app := marketboard.New(*cfg, version, commit, appLogger)
	if err := app.Init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}
