package upload

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// buildFileName generates a collision-resistant filename that keeps the
// original extension.
func buildFileName(original string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(original)))
	if ext == "" || len(ext) > 10 || !isSafeSegment(ext) {
		ext = ".dat"
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

// Validate checks extension and size against the limits.
func Validate(f File, limits Limits) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(f.Name))), ".")
	if ext == "" {
		return fmt.Errorf("%w: %q has no extension", ErrBadFileType, f.Name)
	}
	if limits.MaxBytes > 0 && f.Size > limits.MaxBytes {
		return fmt.Errorf("%w: %q is larger than %dMB", ErrFileTooBig, f.Name, limits.MaxBytes/(1024*1024))
	}

	allowed := limits.AllowedFormats
	if len(allowed) == 0 {
		allowed = defaultAllowedFormats
	}
	for _, item := range allowed {
		if strings.TrimPrefix(strings.ToLower(strings.TrimSpace(item)), ".") == ext {
			return nil
		}
	}
	return fmt.Errorf("%w: .%s", ErrBadFileType, ext)
}

// readPayload loads the file into memory, refusing more than max bytes.
func readPayload(f File, max int64) ([]byte, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("file %q has no content", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if max > 0 {
		r = io.LimitReader(rc, max+1)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if max > 0 && int64(len(payload)) > max {
		return nil, ErrFileTooBig
	}
	return payload, nil
}

// detectContentType sniffs the MIME type from the header value, extension,
// or raw payload bytes, in that order.
func detectContentType(filename string, payload []byte, fallback string) string {
	if ct := strings.TrimSpace(fallback); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename))); ext != "" {
		if guessed := mime.TypeByExtension(ext); guessed != "" {
			return guessed
		}
	}
	if len(payload) > 0 {
		return http.DetectContentType(payload)
	}
	return "application/octet-stream"
}

// safeName returns raw only when it is a single safe path segment.
func safeName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ""
	}
	if !isSafeSegment(name) {
		return ""
	}
	return name
}

// isSafeSegment returns true when s contains only alphanumerics, hyphens,
// underscores, or dots.
func isSafeSegment(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}
