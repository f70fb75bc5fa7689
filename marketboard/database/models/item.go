package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Item is a tradable item together with its market statistics for one scope.
type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID         int64  `bun:"id,pk,autoincrement:false"`
	Name       string `bun:"name,notnull"`
	Gatherable bool   `bun:"gatherable,notnull"`

	AveCost   *int64 `bun:"ave_cost"`
	AveNQCost *int64 `bun:"ave_nq_cost"`
	AveHQCost *int64 `bun:"ave_hq_cost"`

	RegularSaleVelocity *float64 `bun:"regular_sale_velocity"`
	NQSaleVelocity      *float64 `bun:"nq_sale_velocity"`
	HQSaleVelocity      *float64 `bun:"hq_sale_velocity"`

	// Derived by the cost propagation pass.
	CostToCraft       *int64   `bun:"cost_to_craft"`
	CraftProfit       *int64   `bun:"craft_profit"`
	CraftProfitPerDay *float64 `bun:"craft_profit_per_day"`
	RawProfitPerDay   *float64 `bun:"raw_profit_per_day"`

	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

// ItemStats is the result of aggregating one item's trade history.
type ItemStats struct {
	ItemID int64

	AveCost   *int64
	AveNQCost *int64
	AveHQCost *int64

	RegularSaleVelocity *float64
	NQSaleVelocity      *float64
	HQSaleVelocity      *float64

	FetchedAt time.Time
}

// Apply copies the aggregated statistics onto the item.
func (s ItemStats) Apply(item *Item) {
	item.AveCost = s.AveCost
	item.AveNQCost = s.AveNQCost
	item.AveHQCost = s.AveHQCost
	item.RegularSaleVelocity = s.RegularSaleVelocity
	item.NQSaleVelocity = s.NQSaleVelocity
	item.HQSaleVelocity = s.HQSaleVelocity
	item.UpdatedAt = s.FetchedAt
}

// StatColumns are the columns written by the ingestion controller.
var StatColumns = []string{
	"ave_cost", "ave_nq_cost", "ave_hq_cost",
	"regular_sale_velocity", "nq_sale_velocity", "hq_sale_velocity",
	"updated_at",
}

// DerivedColumns are the columns written by the cost propagation pass.
var DerivedColumns = []string{
	"cost_to_craft", "craft_profit", "craft_profit_per_day", "raw_profit_per_day",
}
