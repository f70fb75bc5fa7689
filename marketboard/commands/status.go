package commands

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/xivmarket/market-calculator/marketboard"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/utils"
)

var Version = discord.SlashCommandCreate{
	Name:        "version",
	Description: "Show the running version",
}

var Status = discord.SlashCommandCreate{
	Name:        "status",
	Description: "Show catalog size and ingestion progress",
}

func VersionHandler(a *marketboard.App) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Version: %s\nCommit: %s", a.Version, a.Commit),
		})
	}
}

func StatusHandler(a *marketboard.App) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
		defer cancel()

		scope := a.Cfg.Scope()
		items, err := a.Items.Count(ctx)
		if err != nil {
			return utils.EH.UpdateWithError(e, utils.SystemError, "Failed to count items")
		}
		recipes, err := a.Recipes.Count(ctx)
		if err != nil {
			return utils.EH.UpdateWithError(e, utils.SystemError, "Failed to count recipes")
		}
		state, err := a.States.Get(ctx, scope)
		if err != nil {
			return utils.EH.UpdateWithError(e, utils.SystemError, "Failed to load checkpoint")
		}

		description := fmt.Sprintf("```md\n"+
			"# %s\n"+
			"* Items: %d\n"+
			"* Recipes: %d\n"+
			"* Next item id: %d\n"+
			"* Last attempted id: %d\n"+
			"```",
			scope, items, recipes, state.LastID, state.LastAttemptedID,
		)

		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Title:       "Market calculator status",
				Description: description,
				Color:       config.EmbedDefaultColor,
			}},
		})
		return err
	}
}
