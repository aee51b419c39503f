package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/config"
	"github.com/xxxsen/studynote/internal/filestore"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

const (
	NoteNamespace   = "notes"
	AvatarNamespace = "avatars"
)

// UploadPolicy decides which files an operation accepts and where they go.
// An empty allow-list does not restrict that dimension.
type UploadPolicy struct {
	Namespace    string
	MaxSize      int64
	AllowedExts  []string
	AllowedTypes []string
}

func NewUploadPolicy(namespace string, cfg config.UploadPolicyConfig) UploadPolicy {
	policy := UploadPolicy{Namespace: namespace, MaxSize: cfg.MaxSize}
	for _, ext := range cfg.AllowedExts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		policy.AllowedExts = append(policy.AllowedExts, ext)
	}
	for _, typ := range cfg.AllowedTypes {
		if typ = normalizeContentType(typ); typ != "" {
			policy.AllowedTypes = append(policy.AllowedTypes, typ)
		}
	}
	return policy
}

func (p UploadPolicy) check(in UploadInput) error {
	if in.Size < 0 || (p.MaxSize > 0 && in.Size > p.MaxSize) {
		return appErr.WithMessage(appErr.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %s limit", formatUploadLimit(p.MaxSize)))
	}
	if len(p.AllowedExts) > 0 && !slices.Contains(p.AllowedExts, fileExt(in.Filename)) {
		return appErr.WithMessage(appErr.ErrUnsupportedMediaType, "file type not allowed, accepted: "+strings.Join(p.AllowedExts, ", "))
	}
	if len(p.AllowedTypes) > 0 && !slices.Contains(p.AllowedTypes, normalizeContentType(in.ContentType)) {
		return appErr.WithMessage(appErr.ErrUnsupportedMediaType, "file type not allowed, accepted: "+strings.Join(p.AllowedTypes, ", "))
	}
	return nil
}

// UploadInput describes an incoming file. Only the first Size bytes of Reader
// are stored.
type UploadInput struct {
	Reader      io.ReaderAt
	Size        int64
	Filename    string
	ContentType string
}

type StoredFile struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type UploadService struct {
	store  filestore.Store
	keygen func(originalName, declaredType string) string
}

func NewUploadService(store filestore.Store) *UploadService {
	return &UploadService{store: store, keygen: GenerateKey}
}

// Accept validates in against policy and persists it. Nothing is written when
// validation fails. The caller owns the returned file and must Discard it if
// the record referencing it cannot be saved.
func (s *UploadService) Accept(ctx context.Context, policy UploadPolicy, in UploadInput) (*StoredFile, error) {
	if in.Reader == nil {
		return nil, appErr.WithMessage(appErr.ErrInvalid, "file is required")
	}
	if err := policy.check(in); err != nil {
		return nil, err
	}
	key := s.keygen(in.Filename, in.ContentType)
	if policy.Namespace != "" {
		key = policy.Namespace + "/" + key
	}
	contentType := normalizeContentType(in.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.store.Save(ctx, key, io.NewSectionReader(in.Reader, 0, in.Size), in.Size, contentType); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return &StoredFile{
		Key:         key,
		URL:         s.store.URL(key),
		Name:        in.Filename,
		ContentType: contentType,
		Size:        in.Size,
	}, nil
}

// Discard removes a stored file, ignoring files that are already gone.
func (s *UploadService) Discard(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := s.store.Delete(ctx, key)
	if err != nil && !errors.Is(err, filestore.ErrNotExist) {
		logutil.GetLogger(ctx).Warn("discard upload failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return fmt.Sprintf("%dMB", value)
}
