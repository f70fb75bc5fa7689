package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/dbtest"
)

type sent struct {
	messageID snowflake.ID
	content   string
}

type fakeWebhook struct {
	nextID  snowflake.ID
	created []sent
	updated []sent
	failOn  snowflake.ID
}

func (f *fakeWebhook) CreateContent(content string, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.nextID++
	f.created = append(f.created, sent{messageID: f.nextID, content: content})
	return &discord.Message{ID: f.nextID, Content: content}, nil
}

func (f *fakeWebhook) UpdateContent(messageID snowflake.ID, content string, _ ...rest.RequestOpt) (*discord.Message, error) {
	if messageID == f.failOn {
		return nil, errors.New("unknown message")
	}
	f.updated = append(f.updated, sent{messageID: messageID, content: content})
	return &discord.Message{ID: messageID, Content: content}, nil
}

func pageRender(_ context.Context, p Page) (string, error) {
	return fmt.Sprintf("rows %d-%d", p.Offset, p.Offset+p.Limit), nil
}

func TestPages(t *testing.T) {
	assert.Equal(t, []Page{{Limit: 20}}, Pages(nil))
	assert.Equal(t, []Page{
		{MessageID: 11, Offset: 0, Limit: 20},
		{MessageID: 12, Offset: 20, Limit: 20},
		{MessageID: 13, Offset: 40, Limit: 20},
	}, Pages([]snowflake.ID{11, 12, 13}))
}

func TestPublish_UpdatesConfiguredMessages(t *testing.T) {
	hook := &fakeWebhook{}
	n := New(hook, dbtest.Logger())

	created, err := n.Publish(context.Background(), "default", Pages([]snowflake.ID{11, 12}), pageRender)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, hook.created)
	assert.Equal(t, []sent{{11, "rows 0-20"}, {12, "rows 20-40"}}, hook.updated)
}

func TestPublish_CreatesWhenUnconfigured(t *testing.T) {
	hook := &fakeWebhook{nextID: 500}
	n := New(hook, dbtest.Logger())

	created, err := n.Publish(context.Background(), "default", Pages(nil), pageRender)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{501}, created)
	assert.Equal(t, []sent{{501, "rows 0-20"}}, hook.created)
}

func TestPublish_ContinuesPastFailures(t *testing.T) {
	hook := &fakeWebhook{failOn: 11}
	n := New(hook, dbtest.Logger())

	_, err := n.Publish(context.Background(), "default", Pages([]snowflake.ID{11, 12}), pageRender)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update default page 1")
	assert.Equal(t, []sent{{12, "rows 20-40"}}, hook.updated)
}

func TestPublish_RenderError(t *testing.T) {
	hook := &fakeWebhook{}
	n := New(hook, dbtest.Logger())

	_, err := n.Publish(context.Background(), "gathering", Pages([]snowflake.ID{7}), func(context.Context, Page) (string, error) {
		return "", errors.New("db closed")
	})
	assert.ErrorContains(t, err, "render gathering page 1: db closed")
	assert.Empty(t, hook.updated)
}

func TestPublish_TruncatesContent(t *testing.T) {
	hook := &fakeWebhook{}
	n := New(hook, dbtest.Logger())

	_, err := n.Publish(context.Background(), "default", Pages(nil), func(context.Context, Page) (string, error) {
		return strings.Repeat("x", 2500), nil
	})
	require.NoError(t, err)
	assert.Len(t, hook.created[0].content, config.DiscordMessageLimit)
}

func TestTruncate(t *testing.T) {
	var table strings.Builder
	table.WriteString("```\n")
	for i := 0; table.Len() < 3000; i++ {
		fmt.Fprintf(&table, "%04d Rarefied Ørichalcum Ingot  12,345\n", i)
	}
	table.WriteString("```")

	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, got string)
	}{
		{
			name:    "short content untouched",
			content: "```\nrow\n```",
			check: func(t *testing.T, got string) {
				assert.Equal(t, "```\nrow\n```", got)
			},
		},
		{
			name:    "multibyte cut on a rune boundary",
			content: strings.Repeat("é", 2500),
			check: func(t *testing.T, got string) {
				assert.True(t, utf8.ValidString(got))
				assert.Equal(t, config.DiscordMessageLimit, utf8.RuneCountInString(got))
			},
		},
		{
			name:    "code block closed again",
			content: table.String(),
			check: func(t *testing.T, got string) {
				assert.True(t, utf8.ValidString(got))
				assert.LessOrEqual(t, utf8.RuneCountInString(got), config.DiscordMessageLimit)
				assert.True(t, strings.HasSuffix(got, "  12,345\n```"), "last row is whole")
				assert.Zero(t, strings.Count(got, "```")%2)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, truncate(tt.content))
		})
	}
}

func TestNewWebhookClient_RequiresCredentials(t *testing.T) {
	_, err := NewWebhookClient(0, "token")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewWebhookClient(123, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
