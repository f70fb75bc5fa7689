package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

func TestDSN(t *testing.T) {
	t.Setenv("PG_SSLMODE", "")
	cfg := DBConfig{Host: "db", Port: 5432, User: "market", Password: "p@ss", Database: "zalera"}
	assert.Equal(t, "postgres://market:p%40ss@db:5432/zalera?connect_timeout=5&sslmode=disable", cfg.dsn())

	t.Setenv("PG_SSLMODE", "require")
	assert.Contains(t, cfg.dsn(), "sslmode=require")
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), DBConfig{Driver: "mysql"}, nil)
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)

	_, err = New(context.Background(), DBConfig{Driver: DriverSQLite}, nil)
	assert.Error(t, err)
}

func TestSQLiteSchemaAndReset(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := New(ctx, DBConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "market.db")}, logger)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverSQLite, db.Driver())
	require.NoError(t, db.InitializeSchema(ctx))
	require.NoError(t, db.InitializeSchema(ctx), "schema creation is repeatable")
	require.NoError(t, db.Ping(ctx))

	items := []*models.Item{{ID: 1, Name: "Iron Ore"}, {ID: 2, Name: "Iron Ingot"}}
	_, err = db.BunDB().NewInsert().Model(&items).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, db.ResetTables(ctx))
	count, err := db.BunDB().NewSelect().Model((*models.Item)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFromBun(t *testing.T) {
	bunDB, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	db := FromBun(bunDB, nil)
	defer db.Close()
	assert.Equal(t, DriverSQLite, db.Driver())
}
