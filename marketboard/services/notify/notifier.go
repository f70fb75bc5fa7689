// Package notify publishes ranking tables to a Discord webhook, editing
// existing messages in place when their ids are configured.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"
	"github.com/xivmarket/market-calculator/marketboard/config"
)

var ErrNotConfigured = errors.New("notify: webhook id or token missing")

// WebhookClient is the subset of the disgo webhook client the notifier needs.
type WebhookClient interface {
	CreateContent(content string, opts ...rest.RequestOpt) (*discord.Message, error)
	UpdateContent(messageID snowflake.ID, content string, opts ...rest.RequestOpt) (*discord.Message, error)
}

// NewWebhookClient builds a disgo webhook client.
func NewWebhookClient(id snowflake.ID, token string) (webhook.Client, error) {
	if id == 0 || token == "" {
		return nil, ErrNotConfigured
	}
	return webhook.New(id, token), nil
}

// Page is one message's slice of a ranking table.
type Page struct {
	MessageID snowflake.ID
	Offset    int
	Limit     int
}

// Pages maps configured message ids to consecutive row windows. With no ids
// a single page is posted as a new message.
func Pages(messageIDs []snowflake.ID) []Page {
	if len(messageIDs) == 0 {
		return []Page{{Limit: config.RowsPerMessage}}
	}
	pages := make([]Page, len(messageIDs))
	for i, id := range messageIDs {
		pages[i] = Page{MessageID: id, Offset: i * config.RowsPerMessage, Limit: config.RowsPerMessage}
	}
	return pages
}

// Render produces the message body for a page.
type Render func(ctx context.Context, page Page) (string, error)

type Notifier struct {
	client WebhookClient
	logger *slog.Logger
}

func New(client WebhookClient, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, logger: logger}
}

// Publish renders and sends every page. A page with message id 0 is posted
// as a new message; the ids of created messages are returned so they can be
// added to the configuration. A failing page does not stop the others.
func (n *Notifier) Publish(ctx context.Context, table string, pages []Page, render Render) ([]snowflake.ID, error) {
	var created []snowflake.ID
	var errs []error

	for i, page := range pages {
		content, err := render(ctx, page)
		if err != nil {
			errs = append(errs, fmt.Errorf("render %s page %d: %w", table, i+1, err))
			continue
		}
		content = truncate(content)

		if page.MessageID == 0 {
			msg, err := n.client.CreateContent(content, rest.WithCtx(ctx))
			if err != nil {
				errs = append(errs, fmt.Errorf("create %s page %d: %w", table, i+1, err))
				continue
			}
			created = append(created, msg.ID)
			n.logger.Info("Ranking message created",
				slog.String("type", "api"),
				slog.String("table", table),
				slog.Int("page", i+1),
				slog.String("message_id", msg.ID.String()),
			)
			continue
		}

		if _, err := n.client.UpdateContent(page.MessageID, content, rest.WithCtx(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("update %s page %d: %w", table, i+1, err))
			continue
		}
		n.logger.Debug("Ranking message updated",
			slog.String("type", "api"),
			slog.String("table", table),
			slog.Int("page", i+1),
			slog.String("message_id", page.MessageID.String()),
		)
	}

	return created, errors.Join(errs...)
}

const (
	codeFence  = "```"
	closeFence = "\n" + codeFence
)

// truncate cuts content to the Discord limit on a rune boundary. A code block
// left open by the cut loses its partial last line and is closed again.
func truncate(content string) string {
	limit := config.DiscordMessageLimit
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	cut := runePrefix(content, limit)
	if strings.Count(cut, codeFence)%2 == 0 {
		return cut
	}

	cut = runePrefix(content, limit-len(closeFence))
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	if strings.Count(cut, codeFence)%2 == 1 {
		cut += closeFence
	}
	return cut
}

func runePrefix(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
