package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"

	"github.com/komuness/core/internal/models"
)

// Folder is the storage folder publication images live in.
const Folder = "publicaciones"

var (
	ErrInvalidKey  = errors.New("invalid storage key")
	ErrNotFound    = errors.New("stored file not found")
	ErrFileTooBig  = errors.New("file exceeds the size limit")
	ErrBadFileType = errors.New("file type is not allowed")
)

// Storage persists uploaded files and removes them by key.
type Storage interface {
	Put(ctx context.Context, f File) (models.Attachment, error)
	Delete(ctx context.Context, key string) error
}

// File is an upload waiting to be stored.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromHeader adapts a multipart file header.
func FromHeader(fh *multipart.FileHeader) File {
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes builds a File backed by an in-memory payload.
func FromBytes(name, contentType string, payload []byte) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(payload)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		},
	}
}

// Limits bounds what an upload may contain.
type Limits struct {
	MaxBytes       int64
	AllowedFormats []string
}

var defaultAllowedFormats = []string{"jpg", "jpeg", "png", "gif", "webp", "avif", "pdf"}
