package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

const DefaultPrefix = "captured"

// DiskStore writes captured frames under <dir>/<prefix>/ and returns
// references relative to dir, the way the web application stores media
// paths.
type DiskStore struct {
	dir    string
	prefix string
	logger *zap.Logger
}

var _ repositories.ImageStore = (*DiskStore)(nil)

// NewDiskStore creates the media directory if missing
func NewDiskStore(dir, prefix string, logger *zap.Logger) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("media directory is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := os.MkdirAll(filepath.Join(dir, prefix), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &DiskStore{
		dir:    dir,
		prefix: prefix,
		logger: logger.With(zap.String("component", "media")),
	}, nil
}

// Save writes the frame atomically and returns its reference.
func (s *DiskStore) Save(ctx context.Context, image entities.CapturedImage) (string, error) {
	if len(image.Data) == 0 {
		return "", errors.New("empty image")
	}

	ref := s.prefix + "/" + uuid.New().String() + extension(image.MIMEType)
	target := s.path(ref)

	tmp, err := os.CreateTemp(filepath.Dir(target), ".capture-*")
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := tmp.Write(image.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	s.logger.Debug("Image saved", zap.String("ref", ref), zap.Int("bytes", len(image.Data)))
	return ref, nil
}

// Remove deletes a stored frame. Missing files are not an error.
func (s *DiskStore) Remove(ref string) error {
	if ref == "" || strings.Contains(ref, "..") {
		return fmt.Errorf("invalid image reference %q", ref)
	}
	if err := os.Remove(s.path(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path resolves a reference to a file path, for serving stored frames.
func (s *DiskStore) Path(ref string) string {
	return s.path(ref)
}

func (s *DiskStore) path(ref string) string {
	return filepath.Join(s.dir, filepath.FromSlash(ref))
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}
