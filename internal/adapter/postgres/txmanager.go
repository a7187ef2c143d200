package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxManager runs groups of statements atomically. The document store uses it
// to create a collection's schema and table together, so a half-created
// collection is never left behind. Calls do not nest: RunInTx inside a
// RunInTx callback opens a second, independent transaction.
type TxManager struct {
	db Beginner
}

func NewTxManager(db Beginner) *TxManager {
	return &TxManager{db: db}
}

// ExecAll executes stmts in order in one transaction.
func (m *TxManager) ExecAll(ctx context.Context, stmts ...string) error {
	return m.RunInTx(ctx, func(ctx context.Context) error {
		tx := ctx.Value(txCtxKey{}).(pgx.Tx)
		for i, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i, err)
			}
		}
		return nil
	})
}

// RunInTx calls fn with a context carrying the transaction. It commits when fn
// returns nil and rolls back on an error or a panic, which is re-raised.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
