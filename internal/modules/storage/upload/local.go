package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/komuness/core/internal/models"
)

// LocalStorage keeps uploads on disk and serves them through Handler.
type LocalStorage struct {
	dir     string
	baseURL string
	limits  Limits
}

// NewLocalStorage stores files under root/publicaciones. Public URLs are
// {baseURL}/api/files/{key}.
func NewLocalStorage(root, baseURL string, limits Limits) (*LocalStorage, error) {
	dir := filepath.Join(root, Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		limits:  limits,
	}, nil
}

func (s *LocalStorage) Put(ctx context.Context, f File) (models.Attachment, error) {
	if err := Validate(f, s.limits); err != nil {
		return models.Attachment{}, err
	}
	payload, err := readPayload(f, s.limits.MaxBytes)
	if err != nil {
		return models.Attachment{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Attachment{}, err
	}

	key := buildFileName(f.Name)
	if err := os.WriteFile(filepath.Join(s.dir, key), payload, 0o644); err != nil {
		return models.Attachment{}, fmt.Errorf("write upload: %w", err)
	}
	return models.Attachment{URL: s.baseURL + "/api/files/" + key, Key: key}, nil
}

// Delete removes the file. A missing file is not an error.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete upload %q: %w", key, err)
	}
	return nil
}

// Path resolves a key to its file path, rejecting traversal.
func (s *LocalStorage) Path(key string) (string, error) {
	name := safeName(key)
	if name == "" {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, name), nil
}
