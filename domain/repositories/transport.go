package repositories

import (
	"context"
	"io"
)

// Transport opens the byte link to the microcontroller.
type Transport interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
	// Describe names the link for logs, e.g. "serial:/dev/ttyACM0".
	Describe() string
}
