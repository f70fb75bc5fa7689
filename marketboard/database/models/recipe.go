package models

import (
	"github.com/uptrace/bun"
)

// Recipe produces AmountResult units of ItemResult from up to ten ingredient slots.
// A slot whose ingredient id is 0 is empty.
type Recipe struct {
	bun.BaseModel `bun:"table:recipes,alias:r"`

	ID           int64 `bun:"id,pk,autoincrement:false"`
	CraftType    int   `bun:"craft_type,notnull"`
	RecipeLevel  int   `bun:"recipe_level,notnull"`
	ItemResult   int64 `bun:"item_result,notnull"`
	AmountResult int   `bun:"amount_result,notnull"`

	ItemIngredient0 int64 `bun:"item_ingredient_0,notnull"`
	ItemIngredient1 int64 `bun:"item_ingredient_1,notnull"`
	ItemIngredient2 int64 `bun:"item_ingredient_2,notnull"`
	ItemIngredient3 int64 `bun:"item_ingredient_3,notnull"`
	ItemIngredient4 int64 `bun:"item_ingredient_4,notnull"`
	ItemIngredient5 int64 `bun:"item_ingredient_5,notnull"`
	ItemIngredient6 int64 `bun:"item_ingredient_6,notnull"`
	ItemIngredient7 int64 `bun:"item_ingredient_7,notnull"`
	ItemIngredient8 int64 `bun:"item_ingredient_8,notnull"`
	ItemIngredient9 int64 `bun:"item_ingredient_9,notnull"`

	AmountIngredient0 int64 `bun:"amount_ingredient_0,notnull"`
	AmountIngredient1 int64 `bun:"amount_ingredient_1,notnull"`
	AmountIngredient2 int64 `bun:"amount_ingredient_2,notnull"`
	AmountIngredient3 int64 `bun:"amount_ingredient_3,notnull"`
	AmountIngredient4 int64 `bun:"amount_ingredient_4,notnull"`
	AmountIngredient5 int64 `bun:"amount_ingredient_5,notnull"`
	AmountIngredient6 int64 `bun:"amount_ingredient_6,notnull"`
	AmountIngredient7 int64 `bun:"amount_ingredient_7,notnull"`
	AmountIngredient8 int64 `bun:"amount_ingredient_8,notnull"`
	AmountIngredient9 int64 `bun:"amount_ingredient_9,notnull"`

	IngredientCost0 int64 `bun:"ingredient_cost_0,notnull"`
	IngredientCost1 int64 `bun:"ingredient_cost_1,notnull"`
	IngredientCost2 int64 `bun:"ingredient_cost_2,notnull"`
	IngredientCost3 int64 `bun:"ingredient_cost_3,notnull"`
	IngredientCost4 int64 `bun:"ingredient_cost_4,notnull"`
	IngredientCost5 int64 `bun:"ingredient_cost_5,notnull"`
	IngredientCost6 int64 `bun:"ingredient_cost_6,notnull"`
	IngredientCost7 int64 `bun:"ingredient_cost_7,notnull"`
	IngredientCost8 int64 `bun:"ingredient_cost_8,notnull"`
	IngredientCost9 int64 `bun:"ingredient_cost_9,notnull"`

	CostToCraft int64 `bun:"cost_to_craft,notnull"`
}

// Slot is one ingredient position of a recipe.
type Slot struct {
	ItemID int64
	Amount int64
	Cost   int64
}

// Empty reports whether the slot holds no ingredient.
func (s Slot) Empty() bool {
	return s.ItemID == 0
}

// Slots returns the ten ingredient slots in order.
func (r *Recipe) Slots() [10]Slot {
	return [10]Slot{
		{r.ItemIngredient0, r.AmountIngredient0, r.IngredientCost0},
		{r.ItemIngredient1, r.AmountIngredient1, r.IngredientCost1},
		{r.ItemIngredient2, r.AmountIngredient2, r.IngredientCost2},
		{r.ItemIngredient3, r.AmountIngredient3, r.IngredientCost3},
		{r.ItemIngredient4, r.AmountIngredient4, r.IngredientCost4},
		{r.ItemIngredient5, r.AmountIngredient5, r.IngredientCost5},
		{r.ItemIngredient6, r.AmountIngredient6, r.IngredientCost6},
		{r.ItemIngredient7, r.AmountIngredient7, r.IngredientCost7},
		{r.ItemIngredient8, r.AmountIngredient8, r.IngredientCost8},
		{r.ItemIngredient9, r.AmountIngredient9, r.IngredientCost9},
	}
}

// SetSlot assigns the ingredient and amount of slot i.
func (r *Recipe) SetSlot(i int, itemID, amount int64) {
	*r.ingredientPtr(i) = itemID
	*r.amountPtr(i) = amount
}

// SetIngredientCost assigns the derived cost of slot i.
func (r *Recipe) SetIngredientCost(i int, cost int64) {
	*r.costPtr(i) = cost
}

func (r *Recipe) ingredientPtr(i int) *int64 {
	return [...]*int64{
		&r.ItemIngredient0, &r.ItemIngredient1, &r.ItemIngredient2, &r.ItemIngredient3, &r.ItemIngredient4,
		&r.ItemIngredient5, &r.ItemIngredient6, &r.ItemIngredient7, &r.ItemIngredient8, &r.ItemIngredient9,
	}[i]
}

func (r *Recipe) amountPtr(i int) *int64 {
	return [...]*int64{
		&r.AmountIngredient0, &r.AmountIngredient1, &r.AmountIngredient2, &r.AmountIngredient3, &r.AmountIngredient4,
		&r.AmountIngredient5, &r.AmountIngredient6, &r.AmountIngredient7, &r.AmountIngredient8, &r.AmountIngredient9,
	}[i]
}

func (r *Recipe) costPtr(i int) *int64 {
	return [...]*int64{
		&r.IngredientCost0, &r.IngredientCost1, &r.IngredientCost2, &r.IngredientCost3, &r.IngredientCost4,
		&r.IngredientCost5, &r.IngredientCost6, &r.IngredientCost7, &r.IngredientCost8, &r.IngredientCost9,
	}[i]
}

// CostColumns are the recipe columns written by the cost propagation pass.
var CostColumns = []string{
	"ingredient_cost_0", "ingredient_cost_1", "ingredient_cost_2", "ingredient_cost_3", "ingredient_cost_4",
	"ingredient_cost_5", "ingredient_cost_6", "ingredient_cost_7", "ingredient_cost_8", "ingredient_cost_9",
	"cost_to_craft",
}
