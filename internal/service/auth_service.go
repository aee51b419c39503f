package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/jwt"
	"github.com/xxxsen/studynote/internal/pkg/password"
	"github.com/xxxsen/studynote/internal/pkg/timeutil"
	"github.com/xxxsen/studynote/internal/repo"
)

const (
	minUsernameLen   = 3
	maxUsernameLen   = 30
	minPasswordLen   = 6
	maxPasswordBytes = 72 // bcrypt input limit
)

var emailRegex = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

type AuthConfig struct {
	DefaultAvatar string
	AvatarPolicy  UploadPolicy
	CacheSize     int
	CacheTTL      time.Duration
}

type AuthService struct {
	users   *repo.UserRepo
	tokens  *jwt.Issuer
	hasher  *password.Hasher
	uploads *UploadService
	cfg     AuthConfig
	cache   *expirable.LRU[string, model.User]
}

func NewAuthService(users *repo.UserRepo, tokens *jwt.Issuer, hasher *password.Hasher, uploads *UploadService, cfg AuthConfig) *AuthService {
	s := &AuthService{users: users, tokens: tokens, hasher: hasher, uploads: uploads, cfg: cfg}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		s.cache = expirable.NewLRU[string, model.User](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, "", appErr.WithMessage(appErr.ErrInvalid, "all fields are required")
	}
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return nil, "", appErr.WithMessage(appErr.ErrInvalid, fmt.Sprintf("username must be %d-%d characters", minUsernameLen, maxUsernameLen))
	}
	if !emailRegex.MatchString(email) {
		return nil, "", appErr.WithMessage(appErr.ErrInvalid, "please provide a valid email address")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return nil, "", appErr.WithMessage(appErr.ErrInvalid, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, "", appErr.WithMessage(appErr.ErrInvalid, fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", appErr.WithMessage(appErr.ErrConflict, "user already exists")
	} else if !appErr.IsNotFound(err) {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	now := timeutil.NowMilli()
	user := &model.User{
		ID:           newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Avatar:       s.cfg.DefaultAvatar,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, "", appErr.WithMessage(appErr.ErrConflict, "user already exists")
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	logutil.GetLogger(ctx).Info("user registered", zap.String("user_id", user.ID))
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || plainPassword == "" {
		return nil, "", appErr.WithMessage(appErr.ErrInvalid, "email and password required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !appErr.IsNotFound(err) {
			return nil, "", fmt.Errorf("lookup user: %w", err)
		}
		_ = s.hasher.CompareDummy(plainPassword)
		return nil, "", appErr.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(userID); ok {
			return &cached, nil
		}
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(userID, *user)
	}
	return user, nil
}

// UpdateAvatar stores the image and points the user at it. The previously
// uploaded avatar, if any, is removed on a best-effort basis.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID string, in UploadInput) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	stored, err := s.uploads.Accept(ctx, s.cfg.AvatarPolicy, in)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdateAvatar(ctx, userID, stored.URL, stored.Key, timeutil.NowMilli()); err != nil {
		_ = s.uploads.Discard(ctx, stored.Key)
		return "", err
	}
	if s.cache != nil {
		s.cache.Remove(userID)
	}
	if user.AvatarKey != "" {
		if err := s.uploads.Discard(ctx, user.AvatarKey); err != nil {
			logutil.GetLogger(ctx).Warn("remove previous avatar failed",
				zap.String("user_id", userID),
				zap.String("key", user.AvatarKey),
				zap.Error(err),
			)
		}
	}
	return stored.URL, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
