package filestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/xxxsen/studynote/internal/config"
)

type minioStore struct {
	client    *minio.Client
	bucket    string
	prefix    string
	publicURL string
}

func init() {
	Register("minio", createMinioStore)
}

func createMinioStore(cfg config.FileStoreConfig) (Store, error) {
	c := cfg.Minio
	if c.Endpoint == "" || c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return nil, fmt.Errorf("minio endpoint/bucket/access_key/secret_key are required")
	}
	host, secure, err := splitEndpoint(c.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse minio endpoint: %w", err)
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	publicURL := c.PublicURL
	if publicURL == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicURL = scheme + "://" + host + "/" + c.Bucket
	}
	return &minioStore{
		client:    client,
		bucket:    c.Bucket,
		prefix:    strings.Trim(c.Prefix, "/"),
		publicURL: publicURL,
	}, nil
}

func (s *minioStore) Type() string {
	return "minio"
}

func (s *minioStore) URL(key string) string {
	return joinURL(s.publicURL, objectKey(s.prefix, key))
}

func (s *minioStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(s.prefix, key), r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (s *minioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(s.prefix, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before any bytes are sent.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, s.mapErr(err)
	}
	return obj, nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.mapErr(s.client.RemoveObject(ctx, s.bucket, objectKey(s.prefix, key), minio.RemoveObjectOptions{}))
}

func (s *minioStore) mapErr(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || string(resp.Code) == "NoSuchKey" {
		return ErrNotExist
	}
	return err
}

// splitEndpoint accepts "host:port" or a URL with scheme.
func splitEndpoint(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid endpoint")
	}
	return u.Host, u.Scheme == "https", nil
}
