// Package dbtest provides an in-memory catalog store for tests.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/database"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

// New returns a schema-initialised in-memory SQLite store that is closed when the test ends.
func New(t testing.TB) *database.DB {
	t.Helper()

	bunDB, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)

	db := database.FromBun(bunDB, Logger())
	require.NoError(t, db.InitializeSchema(context.Background()))

	t.Cleanup(db.Close)
	return db
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SeedItems inserts items as given.
func SeedItems(t testing.TB, db *database.DB, items ...*models.Item) {
	t.Helper()
	if len(items) == 0 {
		return
	}
	_, err := db.BunDB().NewInsert().Model(&items).Exec(context.Background())
	require.NoError(t, err)
}

// SeedRecipes inserts recipes as given.
func SeedRecipes(t testing.TB, db *database.DB, recipes ...*models.Recipe) {
	t.Helper()
	if len(recipes) == 0 {
		return
	}
	_, err := db.BunDB().NewInsert().Model(&recipes).Exec(context.Background())
	require.NoError(t, err)
}

func Int64(v int64) *int64 {
	return &v
}

func Float64(v float64) *float64 {
	return &v
}
