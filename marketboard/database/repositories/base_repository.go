package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/xivmarket/market-calculator/marketboard/config"
)

// BaseRepository carries the query budget and error mapping shared by the
// catalog repositories. db may be a *bun.DB or a bun.Tx.
type BaseRepository struct {
	db             bun.IDB
	defaultTimeout time.Duration
}

func NewBaseRepository(db bun.IDB) *BaseRepository {
	return &BaseRepository{db: db, defaultTimeout: config.DefaultQueryTimeout}
}

// RepositoryError wraps a driver error with the table and operation it came from.
type RepositoryError struct {
	Operation string
	Table     string
	Err       error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Table, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// NotFoundError is returned when a keyed lookup matches no row.
type NotFoundError struct {
	Table string
	Key   any
}

func (e *NotFoundError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("no %s row", e.Table)
	}
	return fmt.Sprintf("no %s row for %v", e.Table, e.Key)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func (br *BaseRepository) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return br.WithCustomTimeout(ctx, br.defaultTimeout)
}

// WithCustomTimeout keeps an earlier caller deadline when it is tighter.
func (br *BaseRepository) WithCustomTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (br *BaseRepository) HandleError(operation, table string, err error) error {
	return br.HandleErrorWithID(operation, table, nil, err)
}

// HandleErrorWithID maps sql.ErrNoRows to NotFoundError and wraps everything else.
func (br *BaseRepository) HandleErrorWithID(operation, table string, key any, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return &NotFoundError{Table: table, Key: key}
	case IsNotFound(err):
		return err
	default:
		return &RepositoryError{Operation: operation, Table: table, Err: err}
	}
}

func (br *BaseRepository) SelectWithTimeout(ctx context.Context, operation, table string, query func(context.Context) error) error {
	return br.SelectOneWithTimeout(ctx, operation, table, nil, query)
}

func (br *BaseRepository) SelectOneWithTimeout(ctx context.Context, operation, table string, key any, query func(context.Context) error) error {
	qctx, cancel := br.WithTimeout(ctx)
	defer cancel()
	return br.HandleErrorWithID(operation, table, key, query(qctx))
}

func (br *BaseRepository) ExecWithTimeout(ctx context.Context, operation, table string, query func(context.Context) (sql.Result, error)) (sql.Result, error) {
	qctx, cancel := br.WithTimeout(ctx)
	defer cancel()
	res, err := query(qctx)
	return res, br.HandleError(operation, table, err)
}

// Transaction runs fn under the batch budget. On a repository already bound to
// a bun.Tx, bun opens a savepoint instead.
func (br *BaseRepository) Transaction(ctx context.Context, operation, table string, fn func(context.Context, bun.Tx) error) error {
	tctx, cancel := br.WithCustomTimeout(ctx, config.BatchQueryTimeout)
	defer cancel()
	return br.HandleError(operation, table, br.db.RunInTx(tctx, nil, fn))
}
