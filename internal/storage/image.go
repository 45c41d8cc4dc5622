// Package storage persists uploaded images on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Common errors for image storage operations.
var (
	ErrImageRequired    = errors.New("image is required")
	ErrImageTooLarge    = errors.New("image exceeds maximum size")
	ErrUnsupportedImage = errors.New("image must be png or jpeg")
	ErrOutsideUploadDir = errors.New("path is outside the upload directory")
)

// PublicPrefix is prepended to the file name of every saved image. The stored
// path is independent of the upload directory and is served under "/"+PublicPrefix.
const PublicPrefix = "uploads/images/"

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// ImageStore saves images under a single upload directory.
type ImageStore struct {
	dir     string
	maxSize int64
}

// NewImageStore creates the upload directory if needed.
func NewImageStore(dir string, maxSize int64) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &ImageStore{dir: dir, maxSize: maxSize}, nil
}

// Dir returns the upload directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save validates and stores an uploaded image, returning its public path
// (for example uploads/images/<uuid>.png).
func (s *ImageStore) Save(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrImageRequired
	}
	if fh.Size > s.maxSize {
		return "", ErrImageTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to detect image type: %w", err)
	}
	ext, ok := allowedTypes[mtype.String()]
	if !ok {
		return "", ErrUnsupportedImage
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind upload: %w", err)
	}

	name := uuid.NewString() + ext
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, s.maxSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxSize {
		err = ErrImageTooLarge
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		if errors.Is(err, ErrImageTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return PublicPrefix + name, nil
}

// Remove deletes a previously saved image. Paths that do not name a file
// directly inside the upload directory are refused.
func (s *ImageStore) Remove(path string) error {
	if path == "" {
		return nil
	}

	full, err := s.Path(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

// Path resolves a public image path returned by Save to its file on disk.
func (s *ImageStore) Path(image string) (string, error) {
	name, ok := strings.CutPrefix(image, PublicPrefix)
	if !ok || name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrOutsideUploadDir
	}
	return filepath.Join(s.dir, name), nil
}
