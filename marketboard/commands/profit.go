package commands

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/xivmarket/market-calculator/marketboard"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/economy/ranking"
	"github.com/xivmarket/market-calculator/marketboard/utils"
)

var Profit = discord.SlashCommandCreate{
	Name:        "profit",
	Description: "Rank the most profitable items on the market board",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "metric",
			Description: "What to rank by",
			Required:    false,
			Choices: []discord.ApplicationCommandOptionChoiceString{
				{Name: "Craft profit per day", Value: ranking.MetricCraftProfitPerDay},
				{Name: "Craft profit per item", Value: ranking.MetricCraftProfit},
				{Name: "Sale value per day", Value: ranking.MetricRawProfitPerDay},
			},
		},
		discord.ApplicationCommandOptionFloat{
			Name:        "min_sales",
			Description: "Minimum average sales per day",
			Required:    false,
			MinValue:    utils.Ptr(0.0),
		},
		discord.ApplicationCommandOptionBool{
			Name:        "gatherable",
			Description: "Only gatherable items (true) or only non-gatherable items (false)",
			Required:    false,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "max_level",
			Description: "Only items craftable at or below this recipe level",
			Required:    false,
			MinValue:    utils.Ptr(1),
		},
	},
}

// profitOptions are the user's /profit arguments.
type profitOptions struct {
	Metric     string
	MinSales   *float64
	Gatherable *bool
	MaxLevel   *int
}

func readProfitOptions(data discord.SlashCommandInteractionData) profitOptions {
	opts := profitOptions{Metric: data.String("metric")}
	if v, ok := data.OptFloat("min_sales"); ok {
		opts.MinSales = &v
	}
	if v, ok := data.OptBool("gatherable"); ok {
		opts.Gatherable = &v
	}
	if v, ok := data.OptInt("max_level"); ok {
		opts.MaxLevel = &v
	}
	return opts
}

// buildProfitQuery fills unset options from the deployment configuration.
func buildProfitQuery(opts profitOptions, cfg marketboard.MainConfig) ranking.Query {
	q := ranking.Query{
		Metric:            opts.Metric,
		VelocityThreshold: cfg.MinAvgSalesPerDay,
		Limit:             cfg.ResultQuantity,
		Gatherable:        opts.Gatherable,
		MaxRecipeLevel:    opts.MaxLevel,
	}
	if q.Metric == "" {
		q.Metric = ranking.MetricCraftProfitPerDay
	}
	if opts.MinSales != nil {
		q.VelocityThreshold = *opts.MinSales
	}
	if q.Limit <= 0 {
		q.Limit = config.DefaultResultLimit
	}
	return q
}

func metricTitle(metric string) string {
	switch metric {
	case ranking.MetricCraftProfit:
		return "Craft profit per item"
	case ranking.MetricRawProfitPerDay:
		return "Sale value per day"
	default:
		return "Craft profit per day"
	}
}

// profitPage renders rows for one paginator page.
func profitPage(rows []ranking.Row, page int, threshold float64) string {
	start := page * config.RowsPerPage
	end := min(start+config.RowsPerPage, len(rows))

	var sb strings.Builder
	fmt.Fprintf(&sb, "Items selling at least %s per day rank first.\n\n", formatThreshold(threshold))
	for i := start; i < end; i++ {
		sb.WriteString(utils.FormatItemLine(i+1, rows[i]))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatThreshold(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func ProfitHandler(a *marketboard.App) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
		defer cancel()

		q := buildProfitQuery(readProfitOptions(e.SlashCommandInteractionData()), a.Cfg.Main)
		if err := q.Validate(); err != nil {
			return utils.EH.CreateClassifiedError(e, utils.ClassifyError(err.Error()), err.Error())
		}

		rows, err := a.Engine.Rank(ctx, q)
		if err != nil {
			return utils.EH.CreateSystemError(e, "Failed to rank items")
		}
		if len(rows) == 0 {
			return utils.EH.CreateClassifiedError(e, utils.NotFoundError, "No items have market data yet")
		}

		totalPages := int(math.Ceil(float64(len(rows)) / float64(config.RowsPerPage)))
		title := fmt.Sprintf("%s on %s", metricTitle(q.Metric), a.Cfg.Scope().Location)

		return a.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				embed.
					SetTitle(title).
					SetDescription(profitPage(rows, page, q.VelocityThreshold)).
					SetColor(config.EmbedDefaultColor).
					SetFooter(fmt.Sprintf("Page %d/%d • %d items", page+1, totalPages, len(rows)), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}
