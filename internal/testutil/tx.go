// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"todo_tracker/internal/utils"
)

// TxRunner runs transaction callbacks with a nil connection, for services
// wired to in-memory repositories that ignore the DBTX argument.
type TxRunner struct {
	Begun      int
	RolledBack int
}

func (r *TxRunner) Conn() utils.DBTX {
	return nil
}

func (r *TxRunner) WithTransaction(ctx context.Context, fn func(tx utils.DBTX) error) error {
	r.Begun++
	if err := fn(nil); err != nil {
		r.RolledBack++
		return err
	}
	return nil
}
