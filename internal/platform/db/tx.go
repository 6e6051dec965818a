package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DBTxKey contextKey = "db_tx"

var errNoConn = errors.New("no database connection in context")

// TxFromContext returns the transaction carried on ctx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the tenant connection pinned to ctx and
// returns a context carrying it. The caller commits or rolls back.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errNoConn
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// RunInTx runs fn inside a transaction and commits when fn succeeds. The
// tenant connection is used when present, the pool otherwise. A nested call
// joins the outer transaction.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	txCtx, tx, err := WithTx(ctx)
	if errors.Is(err, errNoConn) && pool != nil {
		if tx, err = pool.Begin(ctx); err == nil {
			txCtx = context.WithValue(ctx, DBTxKey, tx)
		}
	}
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
