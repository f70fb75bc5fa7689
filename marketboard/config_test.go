package marketboard

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
[main]
world = "Zalera"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, models.Scope{Type: models.MarketboardWorld, Location: "Zalera"}, cfg.Scope())
	assert.Equal(t, 50, cfg.Main.ResultQuantity)
	assert.Equal(t, 20.0, cfg.Main.MinAvgSalesPerDay)
	assert.Equal(t, 300*time.Second, cfg.Main.LoopInterval.Duration)
	assert.Equal(t, 70*time.Millisecond, cfg.Main.RequestDelay.Duration)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "market.db", cfg.DB.Path)
	assert.Equal(t, "https://universalis.app", cfg.Universalis.BaseURL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadConfig_Values(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "DEBUG"
format = "json"

[main]
marketboard_type = "Datacentre"
datacentre = "Aether"
update_quantity = 500
min_avg_sales_per_day = 2.5
endless_loop = true
loop_interval = "10m"
request_delay = "100ms"

[db]
driver = "postgres"
host = "localhost"
port = 5432

[universalis]
timeout = "15s"
not_found_ttl = "6h"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, models.Scope{Type: models.MarketboardDatacentre, Location: "Aether"}, cfg.Scope())
	assert.Equal(t, 500, cfg.Main.UpdateQuantity)
	assert.Equal(t, 2.5, cfg.Main.MinAvgSalesPerDay)
	assert.True(t, cfg.Main.EndlessLoop)
	assert.Equal(t, 10*time.Minute, cfg.Main.LoopInterval.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.Main.RequestDelay.Duration)
	assert.Equal(t, "postgres", cfg.DB.Driver)

	uc := cfg.UniversalisClientConfig()
	assert.Equal(t, 15*time.Second, uc.Timeout)
	assert.Equal(t, 6*time.Hour, uc.NotFoundTTL)
}

func TestLoadConfig_EnvOverridesWebhook(t *testing.T) {
	t.Setenv(EnvWebhookID, "123456789012345678")
	t.Setenv(EnvWebhookToken, "secret")

	path := writeConfig(t, `
[main]
world = "Zalera"

[discord]
enabled = true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(123456789012345678), cfg.Discord.WebhookID)
	assert.Equal(t, "secret", cfg.Discord.WebhookToken)
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	t.Setenv(EnvWebhookID, "not-a-number")

	_, err := LoadConfig(writeConfig(t, "[main]\nworld = \"Zalera\"\n"))
	assert.ErrorContains(t, err, EnvWebhookID)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "failed to open config")

	_, err = LoadConfig(writeConfig(t, "[main\n"))
	assert.ErrorContains(t, err, "failed to decode config")

	_, err = LoadConfig(writeConfig(t, "[main]\nworld = \"Zalera\"\nloop_interval = \"soon\"\n"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := Config{Main: MainConfig{World: "Zalera"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "unknown marketboard type",
			mutate:  func(c *Config) { c.Main.MarketboardType = "Region" },
			wantErr: "marketboard_type",
		},
		{
			name:    "missing world",
			mutate:  func(c *Config) { c.Main.World = "" },
			wantErr: "main.world",
		},
		{
			name: "missing datacentre",
			mutate: func(c *Config) {
				c.Main.MarketboardType = models.MarketboardDatacentre
			},
			wantErr: "main.datacentre",
		},
		{
			name:    "negative update quantity",
			mutate:  func(c *Config) { c.Main.UpdateQuantity = -1 },
			wantErr: "update_quantity",
		},
		{
			name:    "result quantity too large",
			mutate:  func(c *Config) { c.Main.ResultQuantity = 10000 },
			wantErr: "result_quantity",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.DB.Driver = "mysql" },
			wantErr: "db.driver",
		},
		{
			name:    "discord without credentials",
			mutate:  func(c *Config) { c.Discord.Enabled = true },
			wantErr: "DISCORDID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
