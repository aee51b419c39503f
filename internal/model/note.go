package model

type Note struct {
	ID          string   `json:"id" db:"id"`
	UserID      string   `json:"user_id" db:"user_id"`
	Title       string   `json:"title" db:"title"`
	Subject     string   `json:"subject" db:"subject"`
	Tags        []string `json:"tags" db:"-"`
	FileKey     string   `json:"file_key" db:"file_key"`
	FileURL     string   `json:"file_url" db:"-"`
	FileName    string   `json:"file_name" db:"file_name"`
	ContentType string   `json:"content_type" db:"content_type"`
	Size        int64    `json:"size" db:"size"`
	Ctime       int64    `json:"ctime" db:"ctime"`
	Mtime       int64    `json:"mtime" db:"mtime"`
}

type NoteTag struct {
	NoteID   string `db:"note_id"`
	Position int    `db:"position"`
	Tag      string `db:"tag"`
}
