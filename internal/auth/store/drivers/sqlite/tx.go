package sqlite

import (
	"context"
	"database/sql"
)

// withTx runs fn inside a transaction, committing when fn returns nil.
// The DSN sets _txlock=immediate, so the write lock is taken at BEGIN.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
