package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

const (
	DefaultBaudRate   = 9600
	DefaultResetDelay = 2 * time.Second

	// AutoPort selects the first port that looks like a USB board.
	AutoPort = "auto"
)

var boardPortPrefixes = []string{"/dev/ttyACM", "/dev/ttyUSB", "/dev/cu.usbmodem", "COM"}

// SerialConfig configures the USB serial link
type SerialConfig struct {
	Port     string
	BaudRate int
	// ResetDelay is waited after opening; opening the port resets the board.
	ResetDelay time.Duration
}

// Serial dials the microcontroller over a serial port.
type Serial struct {
	config SerialConfig
	open   func(port string, mode *serial.Mode) (serial.Port, error)
	ports  func() ([]string, error)
	logger *zap.Logger
}

var _ repositories.Transport = (*Serial)(nil)

// NewSerial creates a serial transport
func NewSerial(config SerialConfig, logger *zap.Logger) *Serial {
	if config.BaudRate <= 0 {
		config.BaudRate = DefaultBaudRate
	}
	if config.ResetDelay < 0 {
		config.ResetDelay = 0
	}
	if config.Port == "" {
		config.Port = AutoPort
	}
	return &Serial{
		config: config,
		open:   serial.Open,
		ports:  serial.GetPortsList,
		logger: logger.With(zap.String("component", "serial")),
	}
}

func (s *Serial) Describe() string {
	return fmt.Sprintf("serial:%s@%d", s.config.Port, s.config.BaudRate)
}

// Dial opens the port, waits out the board reset and drops whatever the
// board printed while booting.
func (s *Serial) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	port, err := s.resolvePort()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	s.logger.Info("Opening serial port",
		zap.String("port", port),
		zap.Int("baud", s.config.BaudRate))

	p, err := s.open(port, &serial.Mode{BaudRate: s.config.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrTransport, port, err)
	}

	if s.config.ResetDelay > 0 {
		select {
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		case <-time.After(s.config.ResetDelay):
		}
	}

	if err := p.ResetInputBuffer(); err != nil {
		s.logger.Warn("Failed to flush serial input", zap.Error(err))
	}

	return p, nil
}

func (s *Serial) resolvePort() (string, error) {
	if !strings.EqualFold(s.config.Port, AutoPort) {
		return s.config.Port, nil
	}

	ports, err := s.ports()
	if err != nil {
		return "", fmt.Errorf("failed to get serial ports: %w", err)
	}
	for _, port := range ports {
		for _, prefix := range boardPortPrefixes {
			if strings.HasPrefix(port, prefix) {
				s.logger.Debug("Selected serial port", zap.String("port", port), zap.Strings("ports", ports))
				return port, nil
			}
		}
	}
	return "", fmt.Errorf("no board serial port among %v", ports)
}
