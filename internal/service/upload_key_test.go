package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name         string
		originalName string
		declaredType string
		want         string
	}{
		{name: "keeps extension", originalName: "Lecture 1.PDF", want: "1700000000000-42.pdf"},
		{name: "strips whitespace", originalName: "my notes . txt", want: "1700000000000-42.txt"},
		{name: "falls back to type", originalName: "scan", declaredType: "image/png", want: "1700000000000-42.png"},
		{name: "type with params", originalName: "readme", declaredType: "text/plain; charset=utf-8", want: "1700000000000-42.txt"},
		{name: "no hint", originalName: "blob", want: "1700000000000-42"},
		{name: "odd characters dropped", originalName: "x.p$d*f", want: "1700000000000-42.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, buildKey(1700000000000, 42, tt.originalName, tt.declaredType))
		})
	}
}

func TestGenerateKeyIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		key := GenerateKey("a.pdf", "application/pdf")
		require.True(t, strings.HasSuffix(key, ".pdf"))
		require.NotContains(t, key, " ")
		seen[key] = struct{}{}
	}
	require.Greater(t, len(seen), 95)
}
