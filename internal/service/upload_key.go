package service

import (
	"fmt"
	"math/rand/v2"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	extCharsRegex   = regexp.MustCompile(`[^a-z0-9.]`)
)

var preferredExts = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"text/markdown":   ".md",
}

// GenerateKey names a stored file: "<unix millis>-<random><ext>". The extension
// comes from the original name, or from the declared type when the name has none.
func GenerateKey(originalName, declaredType string) string {
	return buildKey(time.Now().UnixMilli(), rand.Int64N(1e9), originalName, declaredType)
}

func buildKey(millis, suffix int64, originalName, declaredType string) string {
	ext := fileExt(originalName)
	if ext == "" {
		ext = extForType(declaredType)
	}
	key := fmt.Sprintf("%d-%d%s", millis, suffix, ext)
	return whitespaceRegex.ReplaceAllString(key, "")
}

func fileExt(name string) string {
	name = whitespaceRegex.ReplaceAllString(name, "")
	ext := strings.ToLower(filepath.Ext(name))
	ext = extCharsRegex.ReplaceAllString(ext, "")
	if ext == "." {
		return ""
	}
	return ext
}

func extForType(declaredType string) string {
	mediaType := normalizeContentType(declaredType)
	if mediaType == "" {
		return ""
	}
	if ext, ok := preferredExts[mediaType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

func normalizeContentType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(declared)
	}
	return strings.ToLower(mediaType)
}
