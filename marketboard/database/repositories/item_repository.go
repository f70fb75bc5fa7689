package repositories

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

const upsertChunkSize = 500

type ItemRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Item, error)
	All(ctx context.Context) ([]*models.Item, error)
	Count(ctx context.Context) (int, error)
	MaxID(ctx context.Context) (int64, error)
	// ListIDs returns ascending ids >= startID; count 0 means no limit.
	ListIDs(ctx context.Context, startID int64, count int) ([]int64, error)

	BulkUpdateStats(ctx context.Context, stats []models.ItemStats) (int, error)
	UpdateDerived(ctx context.Context, items []*models.Item) error
	Upsert(ctx context.Context, items []*models.Item) error
}

type itemRepository struct {
	*BaseRepository
	db bun.IDB
}

func NewItemRepository(db bun.IDB) ItemRepository {
	return &itemRepository{BaseRepository: NewBaseRepository(db), db: db}
}

func (r *itemRepository) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	item := new(models.Item)
	err := r.SelectOneWithTimeout(ctx, "get", "item", id, func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(item).
			Where("id = ?", id).
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *itemRepository) All(ctx context.Context) ([]*models.Item, error) {
	var items []*models.Item
	err := r.SelectWithTimeout(ctx, "list", "item", func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(&items).
			Order("id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.SelectWithTimeout(ctx, "count", "item", func(ctx context.Context) (err error) {
		count, err = r.db.NewSelect().Model((*models.Item)(nil)).Count(ctx)
		return err
	})
	return count, err
}

func (r *itemRepository) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	err := r.SelectWithTimeout(ctx, "max_id", "item", func(ctx context.Context) error {
		return r.db.NewSelect().
			Model((*models.Item)(nil)).
			ColumnExpr("COALESCE(MAX(id), 0)").
			Scan(ctx, &maxID)
	})
	return maxID, err
}

func (r *itemRepository) ListIDs(ctx context.Context, startID int64, count int) ([]int64, error) {
	var ids []int64
	err := r.SelectWithTimeout(ctx, "list_ids", "item", func(ctx context.Context) error {
		q := r.db.NewSelect().
			Model((*models.Item)(nil)).
			Column("id").
			Where("id >= ?", startID).
			Order("id ASC")
		if count > 0 {
			q = q.Limit(count)
		}
		return q.Scan(ctx, &ids)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// BulkUpdateStats writes every aggregate in a single transaction and returns
// the number of rows touched.
func (r *itemRepository) BulkUpdateStats(ctx context.Context, stats []models.ItemStats) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	updated := 0
	err := r.Transaction(ctx, "bulk_update_stats", "item", func(ctx context.Context, tx bun.Tx) error {
		for _, s := range stats {
			item := &models.Item{ID: s.ItemID}
			s.Apply(item)

			res, err := tx.NewUpdate().
				Model(item).
				Column(models.StatColumns...).
				WherePK().
				Exec(ctx)
			if err != nil {
				return err
			}
			updated += affected(res)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (r *itemRepository) UpdateDerived(ctx context.Context, items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}
	return r.Transaction(ctx, "update_derived", "item", func(ctx context.Context, tx bun.Tx) error {
		for _, item := range items {
			_, err := tx.NewUpdate().
				Model(item).
				Column(models.DerivedColumns...).
				WherePK().
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Upsert inserts catalog items, refreshing name and gatherable flag of
// existing rows while keeping their market statistics.
func (r *itemRepository) Upsert(ctx context.Context, items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}
	return r.Transaction(ctx, "upsert", "item", func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(items); start += upsertChunkSize {
			end := min(start+upsertChunkSize, len(items))
			chunk := items[start:end]
			_, err := tx.NewInsert().
				Model(&chunk).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Set("gatherable = EXCLUDED.gatherable").
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func affected(res sql.Result) int {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
