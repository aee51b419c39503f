package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studynote/internal/config"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

func notePolicy() UploadPolicy {
	return NewUploadPolicy(NoteNamespace, config.UploadPolicyConfig{
		MaxSize:     1024,
		AllowedExts: []string{"pdf", ".TXT", " "},
	})
}

func textInput(name, body string) UploadInput {
	return UploadInput{Reader: strings.NewReader(body), Size: int64(len(body)), Filename: name, ContentType: "text/plain"}
}

func TestNewUploadPolicyNormalizes(t *testing.T) {
	policy := notePolicy()
	require.Equal(t, []string{".pdf", ".txt"}, policy.AllowedExts)

	avatar := NewUploadPolicy(AvatarNamespace, config.UploadPolicyConfig{AllowedTypes: []string{"Image/PNG", ""}})
	require.Equal(t, []string{"image/png"}, avatar.AllowedTypes)
}

func TestAcceptStoresFile(t *testing.T) {
	store := newMemStore()
	svc := NewUploadService(store)
	svc.keygen = func(string, string) string { return "fixed.txt" }

	stored, err := svc.Accept(context.Background(), notePolicy(), textInput("a.txt", "hello"))
	require.NoError(t, err)
	require.Equal(t, "notes/fixed.txt", stored.Key)
	require.Equal(t, "/uploads/notes/fixed.txt", stored.URL)
	require.Equal(t, "text/plain", stored.ContentType)
	require.Equal(t, int64(5), stored.Size)
	require.True(t, store.has("notes/fixed.txt"))
}

func TestAcceptRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name string
		in   UploadInput
		want error
	}{
		{name: "too large", in: textInput("a.txt", strings.Repeat("x", 2048)), want: appErr.ErrPayloadTooLarge},
		{name: "bad extension", in: textInput("a.exe", "x"), want: appErr.ErrUnsupportedMediaType},
		{name: "missing file", in: UploadInput{Filename: "a.txt"}, want: appErr.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := NewUploadService(store)
			_, err := svc.Accept(context.Background(), notePolicy(), tt.in)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, 0, store.saves)
		})
	}
}

func TestAcceptTooLargeMessage(t *testing.T) {
	policy := NewUploadPolicy(NoteNamespace, config.UploadPolicyConfig{MaxSize: 10 * 1024 * 1024})
	svc := NewUploadService(newMemStore())
	_, err := svc.Accept(context.Background(), policy, UploadInput{
		Reader:   strings.NewReader(""),
		Size:     11 * 1024 * 1024,
		Filename: "big.pdf",
	})
	msg, ok := appErr.Message(err)
	require.True(t, ok)
	require.Equal(t, "file exceeds 10MB limit", msg)
}

func TestAcceptContentTypeAllowList(t *testing.T) {
	policy := NewUploadPolicy(AvatarNamespace, config.UploadPolicyConfig{AllowedTypes: []string{"image/png"}})
	svc := NewUploadService(newMemStore())

	_, err := svc.Accept(context.Background(), policy, UploadInput{
		Reader: strings.NewReader("x"), Size: 1, Filename: "a.png", ContentType: "image/png; charset=binary",
	})
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), policy, UploadInput{
		Reader: strings.NewReader("x"), Size: 1, Filename: "a.gif", ContentType: "image/gif",
	})
	require.ErrorIs(t, err, appErr.ErrUnsupportedMediaType)
}

func TestDiscard(t *testing.T) {
	store := newMemStore()
	svc := NewUploadService(store)
	stored, err := svc.Accept(context.Background(), notePolicy(), textInput("a.txt", "hello"))
	require.NoError(t, err)

	require.NoError(t, svc.Discard(context.Background(), stored.Key))
	require.False(t, store.has(stored.Key))
	require.NoError(t, svc.Discard(context.Background(), stored.Key))
	require.NoError(t, svc.Discard(context.Background(), ""))

	store.deleteErr = errStoreDown
	require.ErrorIs(t, svc.Discard(context.Background(), "notes/x"), errStoreDown)
}

func TestFormatUploadLimit(t *testing.T) {
	require.Equal(t, "0MB", formatUploadLimit(0))
	require.Equal(t, "1MB", formatUploadLimit(1))
	require.Equal(t, "5MB", formatUploadLimit(5*1024*1024))
}
