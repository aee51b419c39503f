package model

// User is a registered account. PasswordHash and AvatarKey never leave the
// server: both are excluded from JSON.
type User struct {
	ID           string `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Avatar       string `json:"avatar" db:"avatar"`
	AvatarKey    string `json:"-" db:"avatar_key"`
	Ctime        int64  `json:"ctime" db:"ctime"`
	Mtime        int64  `json:"mtime" db:"mtime"`
}
