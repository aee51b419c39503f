package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/filestore"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/timeutil"
	"github.com/xxxsen/studynote/internal/repo"
)

const maxTitleLen = 200

type NoteService struct {
	notes   *repo.NoteRepo
	pending *repo.PendingDeletionRepo
	uploads *UploadService
	store   filestore.Store
	policy  UploadPolicy
}

func NewNoteService(notes *repo.NoteRepo, pending *repo.PendingDeletionRepo, uploads *UploadService, store filestore.Store, policy UploadPolicy) *NoteService {
	return &NoteService{notes: notes, pending: pending, uploads: uploads, store: store, policy: policy}
}

type NoteCreateInput struct {
	Title   string
	Subject string
	Tags    string
	File    UploadInput
}

// ParseTags splits a comma separated tag list. Blank entries are dropped and
// the original order is kept.
func ParseTags(raw string) []string {
	tags := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (s *NoteService) Create(ctx context.Context, userID string, in NoteCreateInput) (*model.Note, error) {
	if in.File.Reader == nil {
		return nil, appErr.WithMessage(appErr.ErrInvalid, "no file uploaded")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultTitle(in.File.Filename)
	}
	if title == "" {
		return nil, appErr.WithMessage(appErr.ErrInvalid, "title is required")
	}
	if len([]rune(title)) > maxTitleLen {
		return nil, appErr.WithMessage(appErr.ErrInvalid, fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	stored, err := s.uploads.Accept(ctx, s.policy, in.File)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowMilli()
	note := &model.Note{
		ID:          newID(),
		UserID:      userID,
		Title:       title,
		Subject:     strings.TrimSpace(in.Subject),
		Tags:        ParseTags(in.Tags),
		FileKey:     stored.Key,
		FileName:    filepath.Base(stored.Name),
		ContentType: stored.ContentType,
		Size:        stored.Size,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		_ = s.uploads.Discard(ctx, stored.Key)
		return nil, fmt.Errorf("create note: %w", err)
	}
	s.decorate(note)
	logutil.GetLogger(ctx).Info("note uploaded",
		zap.String("user_id", userID),
		zap.String("note_id", note.ID),
		zap.Int64("size", note.Size),
	)
	return note, nil
}

func (s *NoteService) ListMine(ctx context.Context, userID string) ([]model.Note, error) {
	notes, err := s.notes.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		s.decorate(&notes[i])
	}
	return notes, nil
}

func (s *NoteService) Get(ctx context.Context, userID, noteID string) (*model.Note, error) {
	note, err := s.owned(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	s.decorate(note)
	return note, nil
}

// Download opens the stored file of an owned note. The caller closes the reader.
func (s *NoteService) Download(ctx context.Context, userID, noteID string) (*model.Note, io.ReadCloser, error) {
	note, err := s.owned(ctx, userID, noteID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, note.FileKey)
	if err != nil {
		if errors.Is(err, filestore.ErrNotExist) {
			return nil, nil, appErr.WithMessage(appErr.ErrNotFound, "file not found")
		}
		return nil, nil, fmt.Errorf("open note file: %w", err)
	}
	s.decorate(note)
	return note, rc, nil
}

// Delete removes the stored file and then the record. A file that is already
// gone does not block deletion; any other storage failure is queued for the
// file GC job and the record is still removed.
func (s *NoteService) Delete(ctx context.Context, userID, noteID string) error {
	note, err := s.owned(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, note.FileKey); err != nil && !errors.Is(err, filestore.ErrNotExist) {
		logutil.GetLogger(ctx).Warn("delete note file failed, queued for retry",
			zap.String("note_id", note.ID),
			zap.String("key", note.FileKey),
			zap.Error(err),
		)
		if qerr := s.pending.Enqueue(ctx, note.FileKey, err.Error(), timeutil.NowMilli()); qerr != nil {
			logutil.GetLogger(ctx).Error("queue file deletion failed", zap.String("key", note.FileKey), zap.Error(qerr))
		}
	}
	if err := s.notes.Delete(ctx, note.ID); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("note deleted", zap.String("user_id", userID), zap.String("note_id", note.ID))
	return nil
}

func (s *NoteService) owned(ctx context.Context, userID, noteID string) (*model.Note, error) {
	if strings.TrimSpace(noteID) == "" {
		return nil, appErr.WithMessage(appErr.ErrInvalid, "note id is required")
	}
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.WithMessage(appErr.ErrNotFound, "note not found")
		}
		return nil, err
	}
	if err := ensureOwner(note, userID); err != nil {
		return nil, err
	}
	return note, nil
}

func ensureOwner(note *model.Note, callerID string) error {
	if callerID == "" || note.UserID != callerID {
		return appErr.WithMessage(appErr.ErrForbidden, "not authorized")
	}
	return nil
}

func (s *NoteService) decorate(note *model.Note) {
	note.FileURL = s.store.URL(note.FileKey)
}

func defaultTitle(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}
