package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

// StateRepository persists ingestion checkpoints. Every write is an upsert so
// a scope's row is created on first use.
type StateRepository interface {
	Get(ctx context.Context, scope models.Scope) (*models.State, error)
	// MarkSucceeded records a processed item. The checkpoint wraps to 0 once
	// the catalog's highest id has been processed.
	MarkSucceeded(ctx context.Context, scope models.Scope, itemID, maxID int64) error
	// MarkAttempted records an item that was tried without success.
	MarkAttempted(ctx context.Context, scope models.Scope, itemID int64) error
	Reset(ctx context.Context, scope models.Scope) error
}

type stateRepository struct {
	*BaseRepository
	db  bun.IDB
	now func() time.Time
}

func NewStateRepository(db bun.IDB) StateRepository {
	return &stateRepository{BaseRepository: NewBaseRepository(db), db: db, now: time.Now}
}

func (r *stateRepository) Get(ctx context.Context, scope models.Scope) (*models.State, error) {
	state := &models.State{MarketboardType: scope.Type, Location: scope.Location}

	_, err := r.ExecWithTimeout(ctx, "ensure", "state", func(ctx context.Context) (sql.Result, error) {
		return r.db.NewInsert().
			Model(state).
			On("CONFLICT (marketboard_type, location) DO NOTHING").
			Exec(ctx)
	})
	if err != nil {
		return nil, err
	}

	err = r.SelectOneWithTimeout(ctx, "get", "state", scope.String(), func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(state).
			WherePK().
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *stateRepository) MarkSucceeded(ctx context.Context, scope models.Scope, itemID, maxID int64) error {
	lastID := itemID
	if itemID >= maxID {
		lastID = 0
	}
	state := &models.State{
		MarketboardType: scope.Type,
		Location:        scope.Location,
		LastID:          lastID,
		LastAttemptedID: lastID,
		UpdatedAt:       r.now(),
	}
	_, err := r.ExecWithTimeout(ctx, "mark_succeeded", "state", func(ctx context.Context) (sql.Result, error) {
		return r.db.NewInsert().
			Model(state).
			On("CONFLICT (marketboard_type, location) DO UPDATE").
			Set("last_id = EXCLUDED.last_id").
			Set("last_attempted_id = EXCLUDED.last_attempted_id").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
	})
	return err
}

func (r *stateRepository) MarkAttempted(ctx context.Context, scope models.Scope, itemID int64) error {
	state := &models.State{
		MarketboardType: scope.Type,
		Location:        scope.Location,
		LastAttemptedID: itemID,
		UpdatedAt:       r.now(),
	}
	_, err := r.ExecWithTimeout(ctx, "mark_attempted", "state", func(ctx context.Context) (sql.Result, error) {
		return r.db.NewInsert().
			Model(state).
			On("CONFLICT (marketboard_type, location) DO UPDATE").
			Set("last_attempted_id = EXCLUDED.last_attempted_id").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
	})
	return err
}

func (r *stateRepository) Reset(ctx context.Context, scope models.Scope) error {
	state := &models.State{
		MarketboardType: scope.Type,
		Location:        scope.Location,
		UpdatedAt:       r.now(),
	}
	_, err := r.ExecWithTimeout(ctx, "reset", "state", func(ctx context.Context) (sql.Result, error) {
		return r.db.NewInsert().
			Model(state).
			On("CONFLICT (marketboard_type, location) DO UPDATE").
			Set("last_id = 0").
			Set("last_attempted_id = 0").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
	})
	return err
}
