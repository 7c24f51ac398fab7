package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const DefaultTxTimeout = 15 * time.Second

type TransactionOptions struct {
	IsolationLevel sql.IsolationLevel
	Timeout        time.Duration
}

func StandardTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		IsolationLevel: sql.LevelReadCommitted,
		Timeout:        DefaultTxTimeout,
	}
}

// TxManager runs player-scoped units of work. Engines lock the rows they
// mutate with SELECT ... FOR UPDATE inside fn.
type TxManager struct {
	db *bun.DB
}

func NewTxManager(db *bun.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) DB() *bun.DB {
	return m.db
}

func (m *TxManager) WithTransaction(ctx context.Context, opts *TransactionOptions, fn func(context.Context, bun.Tx) error) error {
	if opts == nil {
		opts = StandardTransactionOptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTxTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var txOpts *sql.TxOptions
	if m.db.Dialect().Name() == dialect.PG {
		txOpts = &sql.TxOptions{Isolation: opts.IsolationLevel}
	}

	tx, err := m.db.BeginTx(timeoutCtx, txOpts)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(timeoutCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
