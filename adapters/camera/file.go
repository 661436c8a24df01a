package camera

import (
	"context"
	"fmt"
	"os"

	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// FileDriver serves a fixed image file as the camera frame. It stands in
// for the camera on bench setups; the file is re-read on every capture.
type FileDriver struct {
	path string
}

var _ repositories.CameraDriver = (*FileDriver)(nil)

type fileHandle string

func (h fileHandle) Device() string { return string(h) }

// NewFileDriver creates a file camera driver
func NewFileDriver(path string) *FileDriver {
	return &FileDriver{path: path}
}

func (d *FileDriver) Init(ctx context.Context) (repositories.CameraHandle, error) {
	if _, err := os.Stat(d.path); err != nil {
		return nil, fmt.Errorf("sample frame %s not available: %w", d.path, err)
	}
	return fileHandle(d.path), nil
}

func (d *FileDriver) Capture(ctx context.Context, handle repositories.CameraHandle) ([]byte, error) {
	return os.ReadFile(handle.Device())
}

func (d *FileDriver) Release(handle repositories.CameraHandle) error {
	return nil
}
