package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refresh, propagate and publish once, printing every report",
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

		report, err := app.Pipeline.RunOnce(ctx)
		if report != nil {
			for _, table := range app.PipelineConfig().Tables {
				for _, page := range report.Reports[table.Name] {
					fmt.Fprintln(cmd.OutOrStdout(), page)
				}
				if ids := report.Created[table.Name]; len(ids) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "New %s message ids: %v\n", table.Name, ids)
				}
			}
		}
		if err != nil {
			return err
		}

		appLogger.Info("Run complete",
			slog.String("type", "sys"),
			slog.String("run_id", report.RunID),
			slog.Duration("took", report.Duration),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
