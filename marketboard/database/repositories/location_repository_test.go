package repositories_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/database/dbtest"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
)

func TestLocationRepository_UpsertAndNames(t *testing.T) {
	db := dbtest.New(t)
	repo := repositories.NewLocationRepository(db.BunDB())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, []*models.Location{
		{Kind: models.MarketboardDatacentre, Name: "Aether", GameID: 4},
		{Kind: models.MarketboardWorld, Name: "Zalera", GameID: 41, Datacentre: 4},
		{Kind: models.MarketboardWorld, Name: "Jenova", GameID: 40, Datacentre: 4},
	}))
	// Same key again updates in place.
	require.NoError(t, repo.Upsert(ctx, []*models.Location{
		{Kind: models.MarketboardWorld, Name: "Zalera", GameID: 41, Datacentre: 5},
	}))
	require.NoError(t, repo.Upsert(ctx, nil))

	worlds, err := repo.Names(ctx, models.MarketboardWorld)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jenova", "Zalera"}, worlds)

	dcs, err := repo.Names(ctx, models.MarketboardDatacentre)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aether"}, dcs)

	var zalera models.Location
	require.NoError(t, db.BunDB().NewSelect().Model(&zalera).
		Where("kind = ? AND name = ?", models.MarketboardWorld, "Zalera").Scan(ctx))
	assert.Equal(t, int64(5), zalera.Datacentre)
}
