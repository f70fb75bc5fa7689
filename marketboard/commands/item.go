package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/xivmarket/market-calculator/marketboard"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/utils"
)

const maxAutocompleteChoices = 25

var Item = discord.SlashCommandCreate{
	Name:        "item",
	Description: "Show market statistics for an item",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:         "name",
			Description:  "Item name",
			Required:     true,
			Autocomplete: true,
		},
	},
}

func ItemHandler(a *marketboard.App) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
		defer cancel()

		query := strings.TrimSpace(e.SlashCommandInteractionData().String("name"))
		matches, err := a.Search.Search(ctx, query, 4)
		if err != nil {
			return utils.EH.CreateSystemError(e, "Failed to search items")
		}
		if len(matches) == 0 {
			return utils.EH.CreateNotFoundError(e, "Item", query)
		}

		item := matches[0]
		recipes, err := a.Recipes.ByResult(ctx, item.ID)
		if err != nil {
			a.Logger.Warn("Failed to load recipes",
				slog.String("type", "db"),
				slog.Int64("item_id", item.ID),
				slog.Any("error", err),
			)
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{itemEmbed(item, recipes, matches[1:], a.Cfg.Scope().Location)},
		})
	}
}

// ItemAutocompleteHandler suggests catalog names while the user types.
func ItemAutocompleteHandler(a *marketboard.App) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), config.SearchTimeout)
		defer cancel()

		matches, err := a.Search.Search(ctx, e.Data.String("name"), maxAutocompleteChoices)
		if err != nil {
			a.Logger.Error("Failed to search items",
				slog.String("type", "cmd"),
				slog.Any("error", err),
			)
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}

		choices := make([]discord.AutocompleteChoice, 0, len(matches))
		for _, m := range matches {
			choices = append(choices, discord.AutocompleteChoiceString{Name: m.Name, Value: m.Name})
		}
		return e.AutocompleteResult(choices)
	}
}

func itemEmbed(item *models.Item, recipes []*models.Recipe, alternatives []*models.Item, location string) discord.Embed {
	inline := true
	fields := []discord.EmbedField{
		{Name: "Average price", Value: utils.FormatOptionalCost(item.AveCost) + " gil", Inline: &inline},
		{Name: "NQ / HQ", Value: utils.FormatOptionalCost(item.AveNQCost) + " / " + utils.FormatOptionalCost(item.AveHQCost), Inline: &inline},
		{Name: "Sales per day", Value: formatVelocity(item.RegularSaleVelocity), Inline: &inline},
		{Name: "Cost to craft", Value: utils.FormatOptionalCost(item.CostToCraft), Inline: &inline},
		{Name: "Craft profit", Value: utils.FormatOptionalCost(item.CraftProfit), Inline: &inline},
		{Name: "Craft profit per day", Value: formatPerDay(item.CraftProfitPerDay), Inline: &inline},
		{Name: "Sale value per day", Value: formatPerDay(item.RawProfitPerDay), Inline: &inline},
	}

	if len(recipes) > 0 {
		var sb strings.Builder
		for _, r := range recipes {
			fmt.Fprintf(&sb, "Recipe %d (level %d) makes %d for %s gil\n",
				r.ID, r.RecipeLevel, r.AmountResult, utils.FormatNumber(r.CostToCraft))
		}
		fields = append(fields, discord.EmbedField{Name: "Recipes", Value: sb.String()})
	}

	if len(alternatives) > 0 {
		names := make([]string, len(alternatives))
		for i, alt := range alternatives {
			names[i] = alt.Name
		}
		fields = append(fields, discord.EmbedField{Name: "Did you mean", Value: strings.Join(names, ", ")})
	}

	description := fmt.Sprintf("Item #%d on %s", item.ID, location)
	if item.Gatherable {
		description += " • gatherable"
	}

	embed := discord.Embed{
		Title:       item.Name,
		Description: description,
		Color:       config.EmbedDefaultColor,
		Fields:      fields,
	}
	if !item.UpdatedAt.IsZero() {
		embed.Footer = &discord.EmbedFooter{Text: "Updated " + item.UpdatedAt.UTC().Format("2006-01-02 15:04 MST")}
	}
	return embed
}

func formatVelocity(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func formatPerDay(v *float64) string {
	if v == nil {
		return "-"
	}
	return utils.FormatNumber(int64(*v)) + " gil"
}
