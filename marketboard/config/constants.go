package config

import "time"

// Market data constants
const (
	// Unit prices at or above this are treated as listing errors and ignored.
	PriceCeiling = 1_000_000

	// SentinelCost stands in for an ingredient whose price is unknown.
	SentinelCost = 9_999_999

	// Trades older than this are not aggregated.
	HistoryLookback = 28 * 24 * time.Hour

	// Above this velocity the default history window is too short to cover the lookback.
	RefetchVelocity = 142

	DefaultHistoryEntries = 5000
	RefetchHistoryEntries = 10000

	// Universalis allows roughly 15 requests per second per client.
	DefaultRequestDelay = 70 * time.Millisecond

	IngredientSlots = 10
)

// Ranking and display constants
const (
	RowsPerMessage      = 20
	RowsPerPage         = 20
	DefaultResultLimit  = 50
	MaxResultLimit      = 500
	DefaultMinSales     = 20
	DiscordMessageLimit = 2000

	EmbedDefaultColor = 0x2B2D31
	ErrorColor        = 0xFF0000
	WarningColor      = 0xFFA500
	InfoColor         = 0x3498DB
	SuccessColor      = 0x2ECC71
)

// Database and performance constants
const (
	DefaultQueryTimeout     = 30 * time.Second
	BatchQueryTimeout       = 2 * time.Minute
	PropagationTimeout      = 5 * time.Minute
	SearchTimeout           = 10 * time.Second
	CommandExecutionTimeout = 10 * time.Second
	DefaultLoopInterval     = 300 * time.Second
	DefaultHTTPTimeout      = 30 * time.Second

	NotFoundCacheSize = 10000
	NotFoundCacheTTL  = 24 * time.Hour
)
