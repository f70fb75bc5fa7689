package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xivmarket/market-calculator/marketboard/economy/ranking"
	"github.com/xivmarket/market-calculator/marketboard/utils"
)

var rankFlags struct {
	metric     string
	limit      int
	offset     int
	minSales   float64
	gatherable bool
	maxLevel   int
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print a ranking from the current catalog without refreshing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		q, err := rankQuery(cmd)
		if err != nil {
			return err
		}
		rows, err := app.Engine.Rank(ctx, q)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), utils.FormatRanking(utils.RankingTable{
			Location:  app.Cfg.Scope().Location,
			Threshold: q.VelocityThreshold,
			NoCraft:   q.Metric == ranking.MetricRawProfitPerDay && q.Gatherable == nil,
			Gathering: q.Gatherable != nil && *q.Gatherable,
			UpdatedAt: time.Now(),
			Rows:      rows,
		}))
		return nil
	},
}

// rankQuery builds a query from flags, defaulting to the configuration.
func rankQuery(cmd *cobra.Command) (ranking.Query, error) {
	flags := cmd.Flags()
	q := ranking.Query{
		Metric:            rankFlags.metric,
		VelocityThreshold: cfg.Main.MinAvgSalesPerDay,
		Limit:             cfg.Main.ResultQuantity,
		Offset:            rankFlags.offset,
	}
	if flags.Changed("limit") {
		q.Limit = rankFlags.limit
	}
	if flags.Changed("min-sales") {
		q.VelocityThreshold = rankFlags.minSales
	}
	if flags.Changed("gatherable") {
		q.Gatherable = &rankFlags.gatherable
	}
	if flags.Changed("max-level") {
		q.MaxRecipeLevel = &rankFlags.maxLevel
	}
	return q, q.Validate()
}

func addRankFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rankFlags.metric, "metric", ranking.MetricCraftProfitPerDay, "craft_profit, craft_profit_per_day or raw_profit_per_day")
	cmd.Flags().IntVar(&rankFlags.limit, "limit", 0, "rows to print (default result_quantity)")
	cmd.Flags().IntVar(&rankFlags.offset, "offset", 0, "rows to skip")
	cmd.Flags().Float64Var(&rankFlags.minSales, "min-sales", 0, "velocity threshold (default min_avg_sales_per_day)")
	cmd.Flags().BoolVar(&rankFlags.gatherable, "gatherable", false, "only gatherable (true) or non-gatherable (false) items")
	cmd.Flags().IntVar(&rankFlags.maxLevel, "max-level", 0, "only items craftable at or below this recipe level")
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write every metric's ranking to an xlsx workbook",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		path := "rankings.xlsx"
		if len(args) == 1 {
			path = args[0]
		}

		q, err := rankQuery(cmd)
		if err != nil {
			return err
		}
		tables := make(map[string][]ranking.Row, len(ranking.Metrics))
		for _, metric := range ranking.Metrics {
			mq := q
			mq.Metric = metric
			if tables[metric], err = app.Engine.Rank(ctx, mq); err != nil {
				return err
			}
		}

		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := utils.ExportRankings(f, tables); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	addRankFlags(rankCmd)
	addRankFlags(exportCmd)
	rootCmd.AddCommand(rankCmd, exportCmd)
}
