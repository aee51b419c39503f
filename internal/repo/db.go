package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/studynote/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

type binder interface {
	DriverName() string
}

func finalize(b binder, query string, args []interface{}) (string, []interface{}) {
	return dbutil.Finalize(sqlx.BindType(b.DriverName()), query, args)
}

func getOne(ctx context.Context, db *sqlx.DB, dst interface{}, query string, args []interface{}) error {
	query, args = finalize(db, query, args)
	if err := db.GetContext(ctx, dst, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErr.ErrNotFound
		}
		return err
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
