package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	connectAttempts = 3
	connectBackoff  = time.Second
	pingTimeout     = 5 * time.Second
)

// DBConfig selects the catalog backend. SQLite only reads Path; one file holds
// one marketboard scope.
type DBConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

// dsn builds the Postgres URL shared by pgxpool and pgdriver. PG_SSLMODE
// overrides the default of disable.
func (c DBConfig) dsn() string {
	sslMode := os.Getenv("PG_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslMode}, "connect_timeout": {"5"}}.Encode(),
	}
	return u.String()
}

// DB is the catalog store. Postgres deployments also hold a pgx pool that
// answers health checks without going through bun.
type DB struct {
	bunDB  *bun.DB
	pool   *pgxpool.Pool
	driver string
	logger *slog.Logger
}

func New(ctx context.Context, cfg DBConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite driver requires a path")
		}
		bunDB, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &DB{bunDB: bunDB, driver: DriverSQLite, logger: logger}, nil
	case DriverPostgres, "":
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// FromBun wraps an already opened bun handle.
func FromBun(bunDB *bun.DB, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	driver := DriverPostgres
	if bunDB.Dialect().Name() == dialect.SQLite {
		driver = DriverSQLite
	}
	return &DB{bunDB: bunDB, driver: driver, logger: logger}
}

func openPostgres(ctx context.Context, cfg DBConfig, logger *slog.Logger) (*DB, error) {
	dsn := cfg.dsn()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pingWithRetry(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if cfg.PoolSize > 0 {
		sqldb.SetMaxOpenConns(cfg.PoolSize)
	}
	if cfg.MaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)
	}

	return &DB{
		bunDB:  bun.NewDB(sqldb, pgdialect.New()),
		pool:   pool,
		driver: DriverPostgres,
		logger: logger,
	}, nil
}

func pingWithRetry(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = pool.Ping(pctx)
		cancel()
		if err == nil {
			return nil
		}
		logger.Warn("Postgres not reachable yet",
			slog.String("type", "db"),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return fmt.Errorf("postgres unreachable after %d attempts: %w", connectAttempts, err)
}

// OpenSQLite opens a SQLite database. path may be ":memory:".
func OpenSQLite(path string) (*bun.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqldb, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: SQLite serialises writers and :memory: lives per connection.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func (db *DB) BunDB() *bun.DB { return db.bunDB }

func (db *DB) Driver() string { return db.driver }

func (db *DB) Ping(ctx context.Context) error {
	if db.pool != nil {
		return db.pool.Ping(ctx)
	}
	return db.bunDB.PingContext(ctx)
}

// ExecWithLog runs a raw statement and logs it at debug, or at error on failure.
func (db *DB) ExecWithLog(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := db.bunDB.ExecContext(ctx, query, args...)
	logger.LogQuery(db.logger, query, args, time.Since(start), err)
	return res, err
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

var catalogModels = []any{
	(*models.Item)(nil),
	(*models.Recipe)(nil),
	(*models.State)(nil),
	(*models.Location)(nil),
}

var catalogIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_items_name ON items(name)",
	"CREATE INDEX IF NOT EXISTS idx_items_velocity ON items(regular_sale_velocity)",
	"CREATE INDEX IF NOT EXISTS idx_items_craft_profit ON items(craft_profit)",
	"CREATE INDEX IF NOT EXISTS idx_items_craft_profit_per_day ON items(craft_profit_per_day)",
	"CREATE INDEX IF NOT EXISTS idx_items_raw_profit_per_day ON items(raw_profit_per_day)",
	"CREATE INDEX IF NOT EXISTS idx_recipes_item_result ON recipes(item_result)",
	"CREATE INDEX IF NOT EXISTS idx_recipes_level ON recipes(item_result, recipe_level)",
}

// InitializeSchema creates the catalog tables and their indexes.
func (db *DB) InitializeSchema(ctx context.Context) error {
	for _, model := range catalogModels {
		if _, err := db.bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	for _, stmt := range catalogIndexes {
		if _, err := db.ExecWithLog(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// ResetTables empties the catalog tables, checkpoint included.
func (db *DB) ResetTables(ctx context.Context) error {
	names := []string{"recipes", "items", "state", "locations"}
	if db.driver == DriverPostgres {
		if _, err := db.ExecWithLog(ctx, "TRUNCATE TABLE "+quoteIdents(names...)+" RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("truncate catalog: %w", err)
		}
	} else {
		for _, name := range names {
			if _, err := db.ExecWithLog(ctx, "DELETE FROM "+quoteIdents(name)); err != nil {
				return fmt.Errorf("clear %s: %w", name, err)
			}
		}
	}

	db.logger.Info("Catalog tables reset", slog.String("type", "db"), slog.Any("tables", names))
	return nil
}

func quoteIdents(names ...string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	return strings.Join(quoted, ", ")
}
