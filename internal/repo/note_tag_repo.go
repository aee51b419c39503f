package repo

import (
	"context"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/studynote/internal/model"
)

type NoteTagRepo struct {
	db *sqlx.DB
}

func NewNoteTagRepo(db *sqlx.DB) *NoteTagRepo {
	return &NoteTagRepo{db: db}
}

// ListByNoteIDs returns tags grouped by note id, each slice in insertion order.
func (r *NoteTagRepo) ListByNoteIDs(ctx context.Context, noteIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(noteIDs))
	if len(noteIDs) == 0 {
		return result, nil
	}
	where := map[string]interface{}{
		"note_id in": noteIDs,
		"_orderby":   "note_id asc, position asc",
	}
	sqlStr, args, err := builder.BuildSelect("note_tags", where, []string{"note_id", "position", "tag"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = finalize(r.db, sqlStr, args)
	var rows []model.NoteTag
	if err := r.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.NoteID] = append(result[row.NoteID], row.Tag)
	}
	return result, nil
}

func (r *NoteTagRepo) replace(ctx context.Context, tx *sqlx.Tx, noteID string, tags []string) error {
	sqlStr, args, err := builder.BuildDelete("note_tags", map[string]interface{}{"note_id": noteID})
	if err != nil {
		return err
	}
	sqlStr, args = finalize(tx, sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(tags))
	for i, tag := range tags {
		data = append(data, map[string]interface{}{
			"note_id":  noteID,
			"position": i,
			"tag":      tag,
		})
	}
	sqlStr, args, err = builder.BuildInsert("note_tags", data)
	if err != nil {
		return err
	}
	sqlStr, args = finalize(tx, sqlStr, args)
	_, err = tx.ExecContext(ctx, sqlStr, args...)
	return err
}
