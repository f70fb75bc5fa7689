package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/xivmarket/market-calculator/marketboard"
	"github.com/xivmarket/market-calculator/marketboard/handlers"
)

var Commands = []discord.ApplicationCommandCreate{
	Profit,
	Item,
	Status,
	Version,
}

// Router registers every command handler.
func Router(a *marketboard.App) *handler.Mux {
	h := handler.New()

	h.Command("/version", VersionHandler(a))
	h.Command("/profit", handlers.WrapWithLogging(a.Logger, "profit", ProfitHandler(a)))
	h.Command("/item", handlers.WrapWithLogging(a.Logger, "item", ItemHandler(a)))
	h.Autocomplete("/item", ItemAutocompleteHandler(a))
	h.Command("/status", handlers.WrapWithLogging(a.Logger, "status", StatusHandler(a)))

	return h
}
