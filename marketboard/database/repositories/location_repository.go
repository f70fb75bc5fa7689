package repositories

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

// LocationRepository stores the worlds and datacentres known to the catalog.
type LocationRepository interface {
	Names(ctx context.Context, kind string) ([]string, error)
	Upsert(ctx context.Context, locations []*models.Location) error
}

type locationRepository struct {
	*BaseRepository
	db bun.IDB
}

// NewLocationRepository creates a location repository on db.
func NewLocationRepository(db bun.IDB) LocationRepository {
	return &locationRepository{BaseRepository: NewBaseRepository(db), db: db}
}

// Names lists the locations of one kind in name order.
func (r *locationRepository) Names(ctx context.Context, kind string) ([]string, error) {
	var names []string
	err := r.SelectWithTimeout(ctx, "names", "location", func(ctx context.Context) error {
		return r.db.NewSelect().
			Model((*models.Location)(nil)).
			Column("name").
			Where("kind = ?", kind).
			Order("name ASC").
			Scan(ctx, &names)
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *locationRepository) Upsert(ctx context.Context, locations []*models.Location) error {
	if len(locations) == 0 {
		return nil
	}
	_, err := r.ExecWithTimeout(ctx, "upsert", "location", func(ctx context.Context) (sql.Result, error) {
		return r.db.NewInsert().
			Model(&locations).
			On("CONFLICT (kind, name) DO UPDATE").
			Set("game_id = EXCLUDED.game_id").
			Set("datacentre = EXCLUDED.datacentre").
			Exec(ctx)
	})
	return err
}
