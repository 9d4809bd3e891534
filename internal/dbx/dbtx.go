// Package dbx holds the transaction plumbing behind the Postgres snapshot
// backend. A snapshot is replaced by a delete and an insert; both have to
// land together or not at all, so they run through WithTx.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is what a snapshot write needs from the database. *sql.DB and
// *sql.Tx both satisfy it, so a write can run with or without a
// surrounding transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside one transaction. It commits when fn returns nil
// and rolls back when fn fails or panics; a panic is re-raised after the
// rollback. A failed commit is returned as the error, so the caller never
// believes a snapshot is stored when it is not.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_snapshots WHERE id = $1`, 1); err != nil {
//	        return err
//	    }
//	    _, err := tx.ExecContext(ctx, `INSERT INTO ledger_snapshots (id, version, payload) VALUES ($1, $2, $3)`, 1, 1, doc)
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		// database/sql has already released the tx; Rollback is a no-op
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
