package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xivmarket/market-calculator/marketboard/utils"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Find catalog items by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		query := strings.Join(args, " ")
		items, err := app.Search.Search(ctx, query, searchLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("no items match %q", query)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tName\tAvg-Cost\tAvg-Cft-Cost")
		for _, item := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
				item.ID, item.Name,
				utils.FormatOptionalCost(item.AveCost),
				utils.FormatOptionalCost(item.CostToCraft),
			)
		}
		return tw.Flush()
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	rootCmd.AddCommand(searchCmd)
}
