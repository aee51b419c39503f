package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/xxxsen/common/logger"
)

const (
	DefaultJWTTTLHours    = 7 * 24
	DefaultAvatar         = "https://cdn-icons-png.flaticon.com/512/149/149071.png"
	DefaultNoteMaxSize    = 10 * 1024 * 1024
	DefaultAvatarMaxSize  = 5 * 1024 * 1024
	DefaultFileGCSpec     = "*/10 * * * *"
	DefaultUserCacheSize  = 1024
	DefaultUserCacheTTLS  = 60
	DefaultEnvironment    = "development"
	DefaultSQLiteFilename = "studynote.db"
)

var (
	DefaultNoteExts    = []string{".pdf", ".png", ".jpg", ".jpeg", ".txt", ".md", ".doc", ".docx", ".ppt", ".pptx"}
	DefaultAvatarTypes = []string{"image/jpeg", "image/png", "image/jpg"}
)

type Config struct {
	Env                  string           `json:"env" env:"STUDYNOTE_ENV"`
	Port                 int              `json:"port" env:"STUDYNOTE_PORT"`
	JWTSecret            string           `json:"jwt_secret" env:"STUDYNOTE_JWT_SECRET"`
	JWTTTLHours          int              `json:"jwt_ttl_hours" env:"STUDYNOTE_JWT_TTL_HOURS"`
	PasswordCost         int              `json:"password_cost" env:"STUDYNOTE_PASSWORD_COST"`
	DefaultAvatar        string           `json:"default_avatar" env:"STUDYNOTE_DEFAULT_AVATAR"`
	AuthRateLimitSeconds int              `json:"auth_rate_limit_seconds" env:"STUDYNOTE_AUTH_RATE_LIMIT_SECONDS"`
	Database             DatabaseConfig   `json:"database" envPrefix:"STUDYNOTE_DB_"`
	LogConfig            logger.LogConfig `json:"log_config"`
	FileStore            FileStoreConfig  `json:"file_store" envPrefix:"STUDYNOTE_FILE_STORE_"`
	Upload               UploadConfig     `json:"upload"`
	CORS                 CORSConfig       `json:"cors"`
	UserCache            UserCacheConfig  `json:"user_cache"`
	FileGC               FileGCConfig     `json:"file_gc"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver" env:"DRIVER"`
	DSN      string `json:"dsn" env:"DSN"`
	Host     string `json:"host" env:"HOST"`
	Port     int    `json:"port" env:"PORT"`
	User     string `json:"user" env:"USER"`
	Password string `json:"password" env:"PASSWORD"`
	DBName   string `json:"dbname" env:"NAME"`
	SSLMode  string `json:"sslmode" env:"SSLMODE"`
}

type FileStoreConfig struct {
	Type      string      `json:"type" env:"TYPE"`
	Dir       string      `json:"dir" env:"DIR"`
	PublicURL string      `json:"public_url" env:"PUBLIC_URL"`
	S3        S3Config    `json:"s3" envPrefix:"S3_"`
	Minio     MinioConfig `json:"minio" envPrefix:"MINIO_"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint" env:"ENDPOINT"`
	SecretID  string `json:"secret_id" env:"SECRET_ID"`
	SecretKey string `json:"secret_key" env:"SECRET_KEY"`
	Bucket    string `json:"bucket" env:"BUCKET"`
	Region    string `json:"region" env:"REGION"`
	Prefix    string `json:"prefix" env:"PREFIX"`
	PublicURL string `json:"public_url" env:"PUBLIC_URL"`
	UseSSL    bool   `json:"use_ssl" env:"USE_SSL"`
}

type MinioConfig struct {
	Endpoint  string `json:"endpoint" env:"ENDPOINT"`
	AccessKey string `json:"access_key" env:"ACCESS_KEY"`
	SecretKey string `json:"secret_key" env:"SECRET_KEY"`
	Bucket    string `json:"bucket" env:"BUCKET"`
	Prefix    string `json:"prefix" env:"PREFIX"`
	PublicURL string `json:"public_url" env:"PUBLIC_URL"`
}

type UploadPolicyConfig struct {
	MaxSize      int64    `json:"max_size"`
	AllowedExts  []string `json:"allowed_exts"`
	AllowedTypes []string `json:"allowed_types"`
}

type UploadConfig struct {
	Note   UploadPolicyConfig `json:"note"`
	Avatar UploadPolicyConfig `json:"avatar"`
}

// CORSConfig maps a deployment environment to the origins it accepts.
type CORSConfig struct {
	Origins map[string][]string `json:"origins"`
}

func (c CORSConfig) For(environment string) []string {
	return c.Origins[environment]
}

type UserCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type FileGCConfig struct {
	Spec string `json:"spec" env:"STUDYNOTE_FILE_GC_SPEC"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.Env == "" {
		cfg.Env = DefaultEnvironment
	}
	if cfg.JWTTTLHours <= 0 {
		cfg.JWTTTLHours = DefaultJWTTTLHours
	}
	if cfg.DefaultAvatar == "" {
		cfg.DefaultAvatar = DefaultAvatar
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if err := cfg.normalizeDatabase(); err != nil {
		return err
	}
	if err := cfg.normalizeFileStore(); err != nil {
		return err
	}
	cfg.normalizeUpload()
	if cfg.UserCache.Size == 0 {
		cfg.UserCache.Size = DefaultUserCacheSize
	}
	if cfg.UserCache.TTLSeconds == 0 {
		cfg.UserCache.TTLSeconds = DefaultUserCacheTTLS
	}
	if cfg.FileGC.Spec == "" {
		cfg.FileGC.Spec = DefaultFileGCSpec
	}
	if strings.EqualFold(cfg.FileGC.Spec, "off") {
		cfg.FileGC.Spec = ""
	}
	return nil
}

func (cfg *Config) normalizeDatabase() error {
	db := &cfg.Database
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	if db.Driver == "" {
		db.Driver = "postgres"
	}
	switch db.Driver {
	case "postgres":
		if db.DSN == "" && db.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres")
		}
		if db.Port == 0 {
			db.Port = 5432
		}
	case "sqlite":
		if db.DSN == "" {
			db.DSN = DefaultSQLiteFilename
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite")
	}
	return nil
}

func (cfg *Config) normalizeFileStore() error {
	fs := &cfg.FileStore
	if fs.Type == "" {
		fs.Type = "local"
	}
	switch fs.Type {
	case "local":
		if fs.Dir == "" {
			return fmt.Errorf("file_store.dir is required for local store")
		}
	case "s3":
		if fs.S3.Endpoint == "" || fs.S3.Bucket == "" || fs.S3.SecretID == "" || fs.S3.SecretKey == "" {
			return fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if fs.S3.Region == "" {
			fs.S3.Region = "us-east-1"
		}
	case "minio":
		if fs.Minio.Endpoint == "" || fs.Minio.Bucket == "" || fs.Minio.AccessKey == "" || fs.Minio.SecretKey == "" {
			return fmt.Errorf("file_store.minio endpoint/bucket/access_key/secret_key are required for minio store")
		}
	default:
		return fmt.Errorf("file_store.type must be local, s3 or minio")
	}
	return nil
}

func (cfg *Config) normalizeUpload() {
	note := &cfg.Upload.Note
	if note.MaxSize <= 0 {
		note.MaxSize = DefaultNoteMaxSize
	}
	if len(note.AllowedExts) == 0 && len(note.AllowedTypes) == 0 {
		note.AllowedExts = append([]string(nil), DefaultNoteExts...)
	}
	avatar := &cfg.Upload.Avatar
	if avatar.MaxSize <= 0 {
		avatar.MaxSize = DefaultAvatarMaxSize
	}
	if len(avatar.AllowedExts) == 0 && len(avatar.AllowedTypes) == 0 {
		avatar.AllowedTypes = append([]string(nil), DefaultAvatarTypes...)
	}
}
