package repositories

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/xivmarket/market-calculator/marketboard/config"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

type RecipeRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Recipe, error)
	All(ctx context.Context) ([]*models.Recipe, error)
	ByResult(ctx context.Context, itemID int64) ([]*models.Recipe, error)
	Count(ctx context.Context) (int, error)

	UpdateCosts(ctx context.Context, recipes []*models.Recipe) error
	Upsert(ctx context.Context, recipes []*models.Recipe) error
}

type recipeRepository struct {
	*BaseRepository
	db bun.IDB
}

func NewRecipeRepository(db bun.IDB) RecipeRepository {
	return &recipeRepository{BaseRepository: NewBaseRepository(db), db: db}
}

func (r *recipeRepository) GetByID(ctx context.Context, id int64) (*models.Recipe, error) {
	recipe := new(models.Recipe)
	err := r.SelectOneWithTimeout(ctx, "get", "recipe", id, func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(recipe).
			Where("id = ?", id).
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

func (r *recipeRepository) All(ctx context.Context) ([]*models.Recipe, error) {
	var recipes []*models.Recipe
	err := r.SelectWithTimeout(ctx, "list", "recipe", func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(&recipes).
			Order("id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *recipeRepository) ByResult(ctx context.Context, itemID int64) ([]*models.Recipe, error) {
	var recipes []*models.Recipe
	err := r.SelectWithTimeout(ctx, "by_result", "recipe", func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(&recipes).
			Where("item_result = ?", itemID).
			Order("id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *recipeRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.SelectWithTimeout(ctx, "count", "recipe", func(ctx context.Context) (err error) {
		count, err = r.db.NewSelect().Model((*models.Recipe)(nil)).Count(ctx)
		return err
	})
	return count, err
}

func (r *recipeRepository) UpdateCosts(ctx context.Context, recipes []*models.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	return r.Transaction(ctx, "update_costs", "recipe", func(ctx context.Context, tx bun.Tx) error {
		for _, recipe := range recipes {
			_, err := tx.NewUpdate().
				Model(recipe).
				Column(models.CostColumns...).
				WherePK().
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Upsert replaces recipe definitions. Derived costs are left for the next
// propagation pass.
func (r *recipeRepository) Upsert(ctx context.Context, recipes []*models.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	return r.Transaction(ctx, "upsert", "recipe", func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(recipes); start += upsertChunkSize / 4 {
			end := min(start+upsertChunkSize/4, len(recipes))
			chunk := recipes[start:end]
			q := tx.NewInsert().
				Model(&chunk).
				On("CONFLICT (id) DO UPDATE").
				Set("craft_type = EXCLUDED.craft_type").
				Set("recipe_level = EXCLUDED.recipe_level").
				Set("item_result = EXCLUDED.item_result").
				Set("amount_result = EXCLUDED.amount_result")
			for i := 0; i < config.IngredientSlots; i++ {
				q = q.Set(fmt.Sprintf("item_ingredient_%d = EXCLUDED.item_ingredient_%d", i, i)).
					Set(fmt.Sprintf("amount_ingredient_%d = EXCLUDED.amount_ingredient_%d", i, i))
			}
			if _, err := q.Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
