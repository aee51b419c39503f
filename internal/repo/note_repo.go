package repo

import (
	"context"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/studynote/internal/model"
)

var noteColumns = []string{"id", "user_id", "title", "subject", "file_key", "file_name", "content_type", "size", "ctime", "mtime"}

type NoteRepo struct {
	db   *sqlx.DB
	tags *NoteTagRepo
}

func NewNoteRepo(db *sqlx.DB) *NoteRepo {
	return &NoteRepo{db: db, tags: NewNoteTagRepo(db)}
}

// Create inserts the note row and its tags in one transaction.
func (r *NoteRepo) Create(ctx context.Context, note *model.Note) error {
	data := map[string]interface{}{
		"id":           note.ID,
		"user_id":      note.UserID,
		"title":        note.Title,
		"subject":      note.Subject,
		"file_key":     note.FileKey,
		"file_name":    note.FileName,
		"content_type": note.ContentType,
		"size":         note.Size,
		"ctime":        note.Ctime,
		"mtime":        note.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("notes", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		q, a := finalize(tx, sqlStr, args)
		if _, err := tx.ExecContext(ctx, q, a...); err != nil {
			return err
		}
		return r.tags.replace(ctx, tx, note.ID, note.Tags)
	})
}

func (r *NoteRepo) GetByID(ctx context.Context, noteID string) (*model.Note, error) {
	sqlStr, args, err := builder.BuildSelect("notes", map[string]interface{}{"id": noteID}, noteColumns)
	if err != nil {
		return nil, err
	}
	var note model.Note
	if err := getOne(ctx, r.db, &note, sqlStr, args); err != nil {
		return nil, err
	}
	tags, err := r.tags.ListByNoteIDs(ctx, []string{note.ID})
	if err != nil {
		return nil, err
	}
	note.Tags = orEmpty(tags[note.ID])
	return &note, nil
}

// ListByUser returns the user's notes, newest first.
func (r *NoteRepo) ListByUser(ctx context.Context, userID string) ([]model.Note, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc, id desc",
	}
	sqlStr, args, err := builder.BuildSelect("notes", where, noteColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = finalize(r.db, sqlStr, args)
	notes := make([]model.Note, 0)
	if err := r.db.SelectContext(ctx, &notes, sqlStr, args...); err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return notes, nil
	}
	ids := make([]string, 0, len(notes))
	for _, note := range notes {
		ids = append(ids, note.ID)
	}
	tags, err := r.tags.ListByNoteIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].Tags = orEmpty(tags[notes[i].ID])
	}
	return notes, nil
}

func (r *NoteRepo) Delete(ctx context.Context, noteID string) error {
	sqlStr, args, err := builder.BuildDelete("notes", map[string]interface{}{"id": noteID})
	if err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.tags.replace(ctx, tx, noteID, nil); err != nil {
			return err
		}
		q, a := finalize(tx, sqlStr, args)
		res, err := tx.ExecContext(ctx, q, a...)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

func orEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
