package camera

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

const (
	defaultCommand        = "rpicam-still"
	defaultCaptureTimeout = 10 * time.Second
)

// DefaultArgs captures one JPEG to stdout without preview.
var DefaultArgs = []string{"-n", "-t", "500", "-e", "jpg", "-o", "-"}

// CommandConfig configures a camera driven by a still-capture program.
// Args may reference the device path as {device}, e.g. for fswebcam:
// -d {device} --no-banner -r 1280x720 --jpeg 90 -
type CommandConfig struct {
	Command string
	Args    []string
	Device  string
	Timeout time.Duration
}

// CommandDriver captures frames by running a program that writes one image
// to stdout.
type CommandDriver struct {
	command string
	args    []string
	device  string
	timeout time.Duration
	logger  *zap.Logger
}

var _ repositories.CameraDriver = (*CommandDriver)(nil)

type commandHandle struct {
	path   string
	device string
}

func (h *commandHandle) Device() string {
	if h.device != "" {
		return h.device
	}
	return h.path
}

// NewCommandDriver creates a command camera driver
func NewCommandDriver(config CommandConfig, logger *zap.Logger) *CommandDriver {
	command := config.Command
	if command == "" {
		command = defaultCommand
	}
	args := config.Args
	if len(args) == 0 {
		args = DefaultArgs
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultCaptureTimeout
	}
	return &CommandDriver{
		command: command,
		args:    args,
		device:  config.Device,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "camera-command")),
	}
}

// Init checks that the capture program and the device node exist.
func (d *CommandDriver) Init(ctx context.Context) (repositories.CameraHandle, error) {
	path, err := exec.LookPath(d.command)
	if err != nil {
		return nil, fmt.Errorf("capture program %s not found: %w", d.command, err)
	}
	if d.device != "" {
		if _, err := os.Stat(d.device); err != nil {
			return nil, fmt.Errorf("camera device %s not available: %w", d.device, err)
		}
	}
	return &commandHandle{path: path, device: d.device}, nil
}

// Capture runs the program once and returns its stdout.
func (d *CommandDriver) Capture(ctx context.Context, handle repositories.CameraHandle) ([]byte, error) {
	h, ok := handle.(*commandHandle)
	if !ok {
		return nil, fmt.Errorf("foreign camera handle %T", handle)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := make([]string, len(d.args))
	for i, a := range d.args {
		args[i] = strings.ReplaceAll(a, "{device}", h.device)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, h.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", d.command, err, strings.TrimSpace(stderr.String()))
	}

	d.logger.Debug("Capture program finished",
		zap.String("command", d.command),
		zap.Duration("took", time.Since(started)),
		zap.Int("bytes", stdout.Len()))

	return stdout.Bytes(), nil
}

// Release is a no-op: the program exits after every capture.
func (d *CommandDriver) Release(handle repositories.CameraHandle) error {
	return nil
}
