package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// snapshotRead sees a post and its carousel children as of one instant.
var snapshotRead = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly} //nolint:gochecknoglobals // constant options

// TransactionManager runs functions inside a pool transaction.
type TransactionManager struct {
	pool *pgxpool.Pool
}

func NewTransactionManager(pool *pgxpool.Pool) *TransactionManager {
	return &TransactionManager{pool: pool}
}

// WithTransaction runs fn in a read-write transaction with default isolation.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return tm.WithTransactionOptions(ctx, pgx.TxOptions{}, fn)
}

// WithSnapshot runs fn in a read-only repeatable-read transaction.
func (tm *TransactionManager) WithSnapshot(ctx context.Context, fn func(context.Context) error) error {
	return tm.WithTransactionOptions(ctx, snapshotRead, fn)
}

// WithTransactionOptions runs fn with the transaction stored in its context;
// repositories pick it up through GetQueryInterface. The connection goes back
// to the pool before this returns.
func (tm *TransactionManager) WithTransactionOptions(
	ctx context.Context,
	opts pgx.TxOptions,
	fn func(context.Context) error,
) error {
	tx, err := tm.pool.BeginTx(ctx, opts)
	if err != nil {
		return WrapError(err, "begin transaction")
	}

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			return fmt.Errorf("rollback after %w: %w", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return WrapError(err, "commit transaction")
	}
	return nil
}

type txContextKey struct{}

// GetTx returns the transaction carried by ctx, if any.
func GetTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx
}

// QueryInterface is satisfied by both *pgxpool.Pool and pgx.Tx.
type QueryInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQueryInterface prefers the transaction in ctx over the pool.
func GetQueryInterface(ctx context.Context, pool *pgxpool.Pool) QueryInterface {
	if tx := GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
