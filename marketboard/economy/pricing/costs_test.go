package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

func i64(v int64) *int64 { return &v }

func f64(v float64) *float64 { return &v }

func TestIngredientCost(t *testing.T) {
	costs := map[int64]*int64{
		1: i64(250),
		2: nil,
		3: i64(0),
		4: i64(-5),
	}

	tests := []struct {
		name string
		id   int64
		want int64
	}{
		{"empty slot", 0, 0},
		{"known cost", 1, 250},
		{"null cost", 2, config.SentinelCost},
		{"zero cost", 3, config.SentinelCost},
		{"negative cost", 4, config.SentinelCost},
		{"missing row", 99, config.SentinelCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IngredientCost(tt.id, costs))
		})
	}
}

func TestFillRecipe(t *testing.T) {
	var r models.Recipe
	r.SetSlot(0, 1, 3)
	r.SetSlot(1, 2, 2)
	r.SetSlot(9, 5, 1)

	FillRecipe(&r, map[int64]*int64{1: i64(10), 2: i64(7), 5: i64(100)})

	assert.Equal(t, int64(10), r.IngredientCost0)
	assert.Equal(t, int64(7), r.IngredientCost1)
	assert.Equal(t, int64(0), r.IngredientCost4)
	assert.Equal(t, int64(100), r.IngredientCost9)
	assert.Equal(t, int64(3*10+2*7+100), r.CostToCraft)
}

func TestFillRecipe_UnknownIngredient(t *testing.T) {
	var r models.Recipe
	r.SetSlot(0, 1, 2)
	r.SetSlot(1, 42, 1)

	FillRecipe(&r, map[int64]*int64{1: i64(10)})
	assert.Equal(t, int64(20+config.SentinelCost), r.CostToCraft)
}

func TestItemCostToCraft(t *testing.T) {
	got := ItemCostToCraft(i64(500), []int64{120, config.SentinelCost, 300})
	require.NotNil(t, got)
	assert.Equal(t, int64(config.SentinelCost), *got)

	got = ItemCostToCraft(i64(500), nil)
	require.NotNil(t, got)
	assert.Equal(t, int64(500), *got)

	assert.Nil(t, ItemCostToCraft(nil, nil))
}

func TestComputeProfit(t *testing.T) {
	tests := []struct {
		name        string
		aveCost     *int64
		costToCraft *int64
		velocity    *float64
		wantProfit  *int64
		wantPerDay  *float64
		wantRaw     *float64
	}{
		{
			name:        "profitable craft",
			aveCost:     i64(1000),
			costToCraft: i64(400),
			velocity:    f64(2.5),
			wantProfit:  i64(600),
			wantPerDay:  f64(1500),
			wantRaw:     f64(2500),
		},
		{
			name:        "losing craft",
			aveCost:     i64(100),
			costToCraft: i64(400),
			velocity:    f64(1),
			wantProfit:  i64(-300),
			wantPerDay:  f64(-300),
			wantRaw:     f64(100),
		},
		{
			name:        "zero cost to craft",
			aveCost:     i64(100),
			costToCraft: i64(0),
			velocity:    f64(4),
			wantProfit:  i64(0),
			wantPerDay:  f64(0),
			wantRaw:     f64(400),
		},
		{
			name:        "zero cost to craft without sales",
			aveCost:     nil,
			costToCraft: i64(0),
			velocity:    nil,
			wantProfit:  i64(0),
		},
		{
			name:        "no average cost",
			aveCost:     nil,
			costToCraft: i64(50),
			velocity:    f64(3),
		},
		{
			name:        "never fetched",
			aveCost:     i64(80),
			costToCraft: i64(50),
			velocity:    nil,
			wantProfit:  i64(30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputeProfit(tt.aveCost, tt.costToCraft, tt.velocity)
			assert.Equal(t, tt.wantProfit, p.CraftProfit)
			assert.Equal(t, tt.wantPerDay, p.CraftProfitPerDay)
			assert.Equal(t, tt.wantRaw, p.RawProfitPerDay)
		})
	}
}

func TestProfitApply_ReportsChanges(t *testing.T) {
	item := &models.Item{AveCost: i64(100), RegularSaleVelocity: f64(2)}
	ctc := i64(40)
	p := ComputeProfit(item.AveCost, ctc, item.RegularSaleVelocity)

	assert.True(t, p.Apply(item, ctc))
	assert.Equal(t, int64(60), *item.CraftProfit)

	again := ComputeProfit(item.AveCost, i64(40), item.RegularSaleVelocity)
	assert.False(t, again.Apply(item, i64(40)))
}
