package utils

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner hands services a plain connection for reads and a transaction
// boundary for writes.
type TxRunner interface {
	Conn() DBTX
	WithTransaction(ctx context.Context, fn func(tx DBTX) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) Conn() DBTX {
	return r.db
}

func (r *sqlTxRunner) WithTransaction(ctx context.Context, fn func(tx DBTX) error) error {
	return WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		return fn(tx)
	})
}

func WithTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	logrus.Debug("Transaction started")

	defer func() {
		if r := recover(); r != nil {
			logrus.Warn("Panic occurred, rolling back transaction")
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logrus.WithError(rbErr).Error("Failed to roll back transaction")
		}
		logrus.WithError(err).Debug("Error occurred, rolled back transaction")
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	logrus.Debug("Transaction committed successfully")
	return nil
}
