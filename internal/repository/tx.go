package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
)

// WithTx runs fn inside one transaction. It commits when fn returns nil and
// rolls back otherwise; fn's error is returned unchanged.
func WithTx(ctx context.Context, d *DB, logger *slog.Logger, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", "error", err)
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Error("failed to roll back transaction", "error", rbErr, "cause", err)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", "error", err)
		return err
	}
	return nil
}
