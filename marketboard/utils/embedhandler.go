package utils

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/xivmarket/market-calculator/marketboard/config"
)

// ResponseHandler provides standardized error replies for commands.
type ResponseHandler struct{}

var EH = &ResponseHandler{}

type ErrorType int

const (
	UserError ErrorType = iota
	SystemError
	NotFoundError
)

func errorPrefix(t ErrorType) string {
	switch t {
	case UserError:
		return "⚠️"
	case NotFoundError:
		return "🔍"
	default:
		return "🔧"
	}
}

func errorColor(t ErrorType) int {
	switch t {
	case UserError:
		return config.WarningColor
	case NotFoundError:
		return config.InfoColor
	default:
		return config.ErrorColor
	}
}

// ErrorEmbed builds the embed used for a classified error.
func ErrorEmbed(t ErrorType, message string) discord.Embed {
	return discord.Embed{
		Description: errorPrefix(t) + " " + message,
		Color:       errorColor(t),
	}
}

func (h *ResponseHandler) CreateClassifiedError(event *handler.CommandEvent, t ErrorType, message string) error {
	return event.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{ErrorEmbed(t, message)},
		Flags:  discord.MessageFlagEphemeral,
	})
}

func (h *ResponseHandler) CreateSystemError(event *handler.CommandEvent, message string) error {
	return h.CreateClassifiedError(event, SystemError, message)
}

func (h *ResponseHandler) CreateNotFoundError(event *handler.CommandEvent, resource, identifier string) error {
	return h.CreateClassifiedError(event, NotFoundError, fmt.Sprintf("%s '%s' not found", resource, identifier))
}

// UpdateWithError replaces a deferred response with an error embed.
func (h *ResponseHandler) UpdateWithError(event *handler.CommandEvent, t ErrorType, message string) error {
	_, err := event.UpdateInteractionResponse(discord.MessageUpdate{
		Embeds: &[]discord.Embed{ErrorEmbed(t, message)},
	})
	return err
}

// ClassifyError picks the reply style for an error message.
func ClassifyError(message string) ErrorType {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "not found"), strings.Contains(lower, "no results"):
		return NotFoundError
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "unknown"),
		strings.Contains(lower, "must"), strings.Contains(lower, "required"):
		return UserError
	default:
		return SystemError
	}
}

func Ptr[T any](v T) *T {
	return &v
}
