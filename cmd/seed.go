package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var seedReset bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Download the item, recipe, gathering and world tables into the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if seedReset {
			if err := app.DB.ResetTables(ctx); err != nil {
				return err
			}
		}

		result, err := app.Bootstrapper().Run(ctx, app.Cfg.Scope())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d items (%d gatherable), %d recipes, %d worlds and %d datacentres in %s\n",
			result.Items, result.Gatherable, result.Recipes, result.Worlds, result.Datacentres,
			result.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "empty the catalog and checkpoint before seeding")
	rootCmd.AddCommand(seedCmd)
}
