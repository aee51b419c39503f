package model

// PendingDeletion is a storage key whose removal failed and is retried by the
// file GC job.
type PendingDeletion struct {
	FileKey   string `db:"file_key"`
	Attempts  int    `db:"attempts"`
	LastError string `db:"last_error"`
	Ctime     int64  `db:"ctime"`
	Mtime     int64  `db:"mtime"`
}
