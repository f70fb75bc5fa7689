package pricing

import (
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

// IngredientCost resolves the unit cost of one recipe slot from the current
// average costs. Empty slots cost nothing; ingredients without a known
// positive price cost the sentinel so the recipe sinks in profit rankings.
func IngredientCost(ingredientID int64, aveCosts map[int64]*int64) int64 {
	if ingredientID == 0 {
		return 0
	}
	cost, ok := aveCosts[ingredientID]
	if !ok || cost == nil || *cost <= 0 {
		return config.SentinelCost
	}
	return *cost
}

// FillRecipe assigns every slot's ingredient cost and the recipe's total cost to craft.
func FillRecipe(r *models.Recipe, aveCosts map[int64]*int64) {
	for i, slot := range r.Slots() {
		r.SetIngredientCost(i, IngredientCost(slot.ItemID, aveCosts))
	}
	r.CostToCraft = RecipeCost(r)
}

// RecipeCost sums amount × ingredient cost over all ten slots.
func RecipeCost(r *models.Recipe) int64 {
	var total int64
	for _, slot := range r.Slots() {
		if slot.Empty() {
			continue
		}
		total += slot.Amount * slot.Cost
	}
	return total
}

// ItemCostToCraft is the most expensive recipe producing the item, so that a
// recipe with unknown ingredient prices never makes an item look cheap. Items
// no recipe produces fall back to their own average cost.
func ItemCostToCraft(aveCost *int64, recipeCosts []int64) *int64 {
	if len(recipeCosts) == 0 {
		return copyInt(aveCost)
	}
	highest := recipeCosts[0]
	for _, c := range recipeCosts[1:] {
		if c > highest {
			highest = c
		}
	}
	return &highest
}

// Profit holds the derived profit metrics of one item.
type Profit struct {
	CraftProfit       *int64
	CraftProfitPerDay *float64
	RawProfitPerDay   *float64
}

// ComputeProfit derives the profit metrics. A zero cost to craft yields zero
// profit; any other missing operand yields a null metric.
func ComputeProfit(aveCost, costToCraft *int64, velocity *float64) Profit {
	var p Profit

	switch {
	case costToCraft != nil && *costToCraft == 0:
		zero := int64(0)
		p.CraftProfit = &zero
	case aveCost != nil && costToCraft != nil:
		profit := *aveCost - *costToCraft
		p.CraftProfit = &profit
	}

	if velocity != nil {
		if p.CraftProfit != nil {
			perDay := float64(*p.CraftProfit) * *velocity
			p.CraftProfitPerDay = &perDay
		}
		if aveCost != nil {
			raw := float64(*aveCost) * *velocity
			p.RawProfitPerDay = &raw
		}
	}
	return p
}

// Apply writes the derived fields onto the item and reports whether any changed.
func (p Profit) Apply(item *models.Item, costToCraft *int64) bool {
	changed := !equalInt(item.CostToCraft, costToCraft) ||
		!equalInt(item.CraftProfit, p.CraftProfit) ||
		!equalFloat(item.CraftProfitPerDay, p.CraftProfitPerDay) ||
		!equalFloat(item.RawProfitPerDay, p.RawProfitPerDay)

	item.CostToCraft = costToCraft
	item.CraftProfit = p.CraftProfit
	item.CraftProfitPerDay = p.CraftProfitPerDay
	item.RawProfitPerDay = p.RawProfitPerDay
	return changed
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func equalInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
