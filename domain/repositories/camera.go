package repositories

import "context"

// CameraHandle is an opened camera device.
type CameraHandle interface {
	Device() string
}

// CameraDriver talks to the physical camera. A handle is never used by two
// goroutines at once; the camera manager guarantees it.
type CameraDriver interface {
	Init(ctx context.Context) (CameraHandle, error)
	Capture(ctx context.Context, handle CameraHandle) ([]byte, error)
	Release(handle CameraHandle) error
}
