package marketboard

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/services/catalog"
	"github.com/xivmarket/market-calculator/marketboard/services/universalis"
)

// Environment variables that override the webhook credentials.
const (
	EnvWebhookID    = "DISCORDID"
	EnvWebhookToken = "DISCORDTOKEN"
)

// LoadEnv loads .env files into the environment. Missing files are ignored.
func LoadEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Duration decodes TOML strings such as "70ms" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Log         LogConfig         `toml:"log"`
	Main        MainConfig        `toml:"main"`
	DB          database.DBConfig `toml:"db"`
	Universalis UniversalisConfig `toml:"universalis"`
	Discord     DiscordConfig     `toml:"discord"`
	Bot         BotConfig         `toml:"bot"`
	HTTP        HTTPConfig        `toml:"http"`
	Spaces      SpacesConfig      `toml:"spaces"`
	Bootstrap   BootstrapConfig   `toml:"bootstrap"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type MainConfig struct {
	MarketboardType string `toml:"marketboard_type"`
	Datacentre      string `toml:"datacentre"`
	World           string `toml:"world"`
	// ResultQuantity is the row count of console and export rankings.
	ResultQuantity int `toml:"result_quantity"`
	// UpdateQuantity bounds items refreshed per run; 0 refreshes the whole catalog.
	UpdateQuantity          int      `toml:"update_quantity"`
	MinAvgSalesPerDay       float64  `toml:"min_avg_sales_per_day"`
	DisplayWithoutCraftCost bool     `toml:"display_without_craft_cost"`
	DisplayGatheringProfit  bool     `toml:"display_gathering_profit"`
	EndlessLoop             bool     `toml:"endless_loop"`
	LoopInterval            Duration `toml:"loop_interval"`
	RequestDelay            Duration `toml:"request_delay"`
}

type UniversalisConfig struct {
	BaseURL           string   `toml:"base_url"`
	UserAgent         string   `toml:"user_agent"`
	Timeout           Duration `toml:"timeout"`
	NotFoundTTL       Duration `toml:"not_found_ttl"`
	NotFoundCacheSize int      `toml:"not_found_cache_size"`
}

type DiscordConfig struct {
	Enabled             bool           `toml:"enabled"`
	WebhookID           snowflake.ID   `toml:"webhook_id"`
	WebhookToken        string         `toml:"webhook_token"`
	MessageIDs          []snowflake.ID `toml:"message_ids"`
	NoCraftMessageIDs   []snowflake.ID `toml:"no_craft_message_ids"`
	GatheringMessageIDs []snowflake.ID `toml:"gathering_message_ids"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type SpacesConfig struct {
	Key        string `toml:"key"`
	Secret     string `toml:"secret"`
	Region     string `toml:"region"`
	Bucket     string `toml:"bucket"`
	ReportRoot string `toml:"report_root"`
}

// Enabled reports whether report archiving is configured.
func (s SpacesConfig) Enabled() bool {
	return s.Bucket != "" && s.Key != "" && s.Secret != ""
}

type BootstrapConfig struct {
	ItemCSVURL       string   `toml:"item_csv_url"`
	RecipeCSVURL     string   `toml:"recipe_csv_url"`
	GatheringCSVURL  string   `toml:"gathering_csv_url"`
	WorldCSVURL      string   `toml:"world_csv_url"`
	DatacentreCSVURL string   `toml:"datacentre_csv_url"`
	Timeout          Duration `toml:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Main.MarketboardType == "" {
		c.Main.MarketboardType = models.MarketboardWorld
	}
	if c.Main.ResultQuantity == 0 {
		c.Main.ResultQuantity = config.DefaultResultLimit
	}
	if c.Main.MinAvgSalesPerDay == 0 {
		c.Main.MinAvgSalesPerDay = config.DefaultMinSales
	}
	if c.Main.LoopInterval.Duration == 0 {
		c.Main.LoopInterval.Duration = config.DefaultLoopInterval
	}
	if c.Main.RequestDelay.Duration == 0 {
		c.Main.RequestDelay.Duration = config.DefaultRequestDelay
	}
	if c.DB.Driver == "" {
		c.DB.Driver = database.DriverSQLite
	}
	if c.DB.Driver == database.DriverSQLite && c.DB.Path == "" {
		c.DB.Path = "market.db"
	}
	if c.Universalis.BaseURL == "" {
		c.Universalis.BaseURL = universalis.DefaultBaseURL
	}
	if c.Universalis.Timeout.Duration == 0 {
		c.Universalis.Timeout.Duration = config.DefaultHTTPTimeout
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

func (c *Config) applyEnv() error {
	if id := os.Getenv(EnvWebhookID); id != "" {
		parsed, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWebhookID, err)
		}
		c.Discord.WebhookID = snowflake.ID(parsed)
	}
	if token := os.Getenv(EnvWebhookToken); token != "" {
		c.Discord.WebhookToken = token
	}
	return nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Main.MarketboardType {
	case models.MarketboardWorld:
		if c.Main.World == "" {
			errs = append(errs, errors.New("main.world is required for a World market board"))
		}
	case models.MarketboardDatacentre:
		if c.Main.Datacentre == "" {
			errs = append(errs, errors.New("main.datacentre is required for a Datacentre market board"))
		}
	default:
		errs = append(errs, fmt.Errorf("main.marketboard_type %q must be %s or %s",
			c.Main.MarketboardType, models.MarketboardWorld, models.MarketboardDatacentre))
	}

	if c.Main.ResultQuantity < 0 || c.Main.ResultQuantity > config.MaxResultLimit {
		errs = append(errs, fmt.Errorf("main.result_quantity must be between 0 and %d", config.MaxResultLimit))
	}
	if c.Main.UpdateQuantity < 0 {
		errs = append(errs, errors.New("main.update_quantity must not be negative"))
	}
	if c.Main.MinAvgSalesPerDay < 0 {
		errs = append(errs, errors.New("main.min_avg_sales_per_day must not be negative"))
	}

	switch c.DB.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not supported", c.DB.Driver))
	}

	if c.Discord.Enabled && (c.Discord.WebhookID == 0 || c.Discord.WebhookToken == "") {
		errs = append(errs, fmt.Errorf("discord is enabled but %s or %s is missing", EnvWebhookID, EnvWebhookToken))
	}

	return errors.Join(errs...)
}

// Scope is the market board this deployment tracks.
func (c *Config) Scope() models.Scope {
	if c.Main.MarketboardType == models.MarketboardDatacentre {
		return models.Scope{Type: models.MarketboardDatacentre, Location: c.Main.Datacentre}
	}
	return models.Scope{Type: models.MarketboardWorld, Location: c.Main.World}
}

func (c *Config) UniversalisClientConfig() universalis.Config {
	return universalis.Config{
		BaseURL:           c.Universalis.BaseURL,
		UserAgent:         c.Universalis.UserAgent,
		Timeout:           c.Universalis.Timeout.Duration,
		NotFoundTTL:       c.Universalis.NotFoundTTL.Duration,
		NotFoundCacheSize: c.Universalis.NotFoundCacheSize,
	}
}

func (c *Config) CatalogSources() catalog.Sources {
	return catalog.Sources{
		ItemCSVURL:       c.Bootstrap.ItemCSVURL,
		RecipeCSVURL:     c.Bootstrap.RecipeCSVURL,
		GatheringCSVURL:  c.Bootstrap.GatheringCSVURL,
		WorldCSVURL:      c.Bootstrap.WorldCSVURL,
		DatacentreCSVURL: c.Bootstrap.DatacentreCSVURL,
		Timeout:          c.Bootstrap.Timeout.Duration,
	}
}
