package job

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/filestore"
	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/timeutil"
)

const defaultFileGCBatch = 100

type pendingDeletions interface {
	ListOldest(ctx context.Context, limit uint) ([]model.PendingDeletion, error)
	Enqueue(ctx context.Context, fileKey, lastError string, now int64) error
	Remove(ctx context.Context, fileKey string) error
}

// FileGCJob retries storage deletions that failed while removing notes.
type FileGCJob struct {
	pending pendingDeletions
	store   filestore.Store
	batch   uint
}

func NewFileGCJob(pending pendingDeletions, store filestore.Store) *FileGCJob {
	return &FileGCJob{pending: pending, store: store, batch: defaultFileGCBatch}
}

func (j *FileGCJob) Name() string {
	return "file_gc"
}

func (j *FileGCJob) Run(ctx context.Context) error {
	if j.pending == nil || j.store == nil {
		return nil
	}
	items, err := j.pending.ListOldest(ctx, j.batch)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	removed := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := j.store.Delete(ctx, item.FileKey)
		if err != nil && !errors.Is(err, filestore.ErrNotExist) {
			logger.Warn("retry file deletion failed",
				zap.String("key", item.FileKey),
				zap.Int("attempts", item.Attempts+1),
				zap.Error(err),
			)
			if qerr := j.pending.Enqueue(ctx, item.FileKey, err.Error(), timeutil.NowMilli()); qerr != nil {
				return qerr
			}
			continue
		}
		if err := j.pending.Remove(ctx, item.FileKey); err != nil {
			return err
		}
		removed++
	}
	if len(items) > 0 {
		logger.Info("file gc finished", zap.Int("pending", len(items)), zap.Int("removed", removed))
	}
	return nil
}
