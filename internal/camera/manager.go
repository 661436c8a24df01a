package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// Manager owns the single camera handle. The handle is opened lazily on
// first use and kept open across captures; a failed capture releases it so
// the next capture starts from a fresh Init.
type Manager struct {
	driver   repositories.CameraDriver
	mimeType string

	mu     sync.Mutex
	handle repositories.CameraHandle

	logger *zap.Logger
}

// NewManager creates a camera manager around driver
func NewManager(driver repositories.CameraDriver, mimeType string, logger *zap.Logger) *Manager {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return &Manager{
		driver:   driver,
		mimeType: mimeType,
		logger:   logger.With(zap.String("component", "camera")),
	}
}

// Warmup opens the camera ahead of the first capture.
func (m *Manager) Warmup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.ensure(ctx)
	return err
}

// Capture takes one frame. Captures are mutually exclusive.
func (m *Manager) Capture(ctx context.Context) (entities.CapturedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle, err := m.ensure(ctx)
	if err != nil {
		return entities.CapturedImage{}, err
	}

	data, err := m.driver.Capture(ctx, handle)
	if err == nil && len(data) == 0 {
		err = fmt.Errorf("empty frame")
	}
	if err != nil {
		m.releaseLocked()
		return entities.CapturedImage{}, fmt.Errorf("%w: capture on %s: %w", domain.ErrHardware, handle.Device(), err)
	}

	m.logger.Info("Frame captured",
		zap.String("device", handle.Device()),
		zap.Int("bytes", len(data)))

	return entities.CapturedImage{
		Data:     data,
		MIMEType: m.mimeType,
		TakenAt:  time.Now(),
	}, nil
}

// Ready reports whether a handle is currently open.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Close releases the handle, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil
	}
	err := m.driver.Release(m.handle)
	m.handle = nil
	return err
}

func (m *Manager) ensure(ctx context.Context) (repositories.CameraHandle, error) {
	if m.handle != nil {
		return m.handle, nil
	}

	handle, err := m.driver.Init(ctx)
	if err != nil {
		m.logger.Error("Camera init failed", zap.Error(err))
		return nil, fmt.Errorf("%w: init: %w", domain.ErrHardware, err)
	}

	m.handle = handle
	m.logger.Info("Camera ready", zap.String("device", handle.Device()))
	return handle, nil
}

func (m *Manager) releaseLocked() {
	if m.handle == nil {
		return
	}
	if err := m.driver.Release(m.handle); err != nil {
		m.logger.Warn("Camera release failed",
			zap.String("device", m.handle.Device()),
			zap.Error(err))
	}
	m.handle = nil
}
