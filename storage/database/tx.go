package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
)

type contextKey string

const txKey contextKey = "tx"

// DB wraps sqlx.DB and implements core.TxManager.
type DB struct {
	*sqlx.DB
	logger core.Logger
}

var _ core.TxManager = (*DB)(nil) // interface compliance check

func NewDB(db *sqlx.DB, logger core.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// WithTransaction runs fn in a transaction. Nested calls reuse the transaction of ctx.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("transaction panicked, rolled back", fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("rolling back transaction", errors.Wrap(rbErr, "database.WithTransaction"))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func extractTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// Executor returns the transaction carried by ctx, or db when there is none.
func Executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db
}
