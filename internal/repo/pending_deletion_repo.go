package repo

import (
	"context"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/studynote/internal/model"
)

type PendingDeletionRepo struct {
	db *sqlx.DB
}

func NewPendingDeletionRepo(db *sqlx.DB) *PendingDeletionRepo {
	return &PendingDeletionRepo{db: db}
}

// Enqueue records a failed removal. Re-enqueueing the same key bumps attempts.
func (r *PendingDeletionRepo) Enqueue(ctx context.Context, fileKey, lastError string, now int64) error {
	sqlStr := `
		INSERT INTO pending_file_deletions (file_key, attempts, last_error, ctime, mtime)
		VALUES (?, 1, ?, ?, ?)
		ON CONFLICT (file_key)
		DO UPDATE SET
			attempts = pending_file_deletions.attempts + 1,
			last_error = EXCLUDED.last_error,
			mtime = EXCLUDED.mtime
	`
	args := []interface{}{fileKey, lastError, now, now}
	sqlStr, args = finalize(r.db, sqlStr, args)
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *PendingDeletionRepo) ListOldest(ctx context.Context, limit uint) ([]model.PendingDeletion, error) {
	where := map[string]interface{}{
		"_orderby": "ctime asc",
		"_limit":   []uint{0, limit},
	}
	sqlStr, args, err := builder.BuildSelect("pending_file_deletions", where, []string{"file_key", "attempts", "last_error", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = finalize(r.db, sqlStr, args)
	items := make([]model.PendingDeletion, 0)
	if err := r.db.SelectContext(ctx, &items, sqlStr, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PendingDeletionRepo) Remove(ctx context.Context, fileKey string) error {
	sqlStr, args, err := builder.BuildDelete("pending_file_deletions", map[string]interface{}{"file_key": fileKey})
	if err != nil {
		return err
	}
	sqlStr, args = finalize(r.db, sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
