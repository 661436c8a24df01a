package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// TCP dials a raw byte stream, e.g. a ser2net bridge or the board simulator.
type TCP struct {
	address string
	dialer  net.Dialer
}

var _ repositories.Transport = (*TCP)(nil)

// NewTCP creates a TCP transport
func NewTCP(address string) *TCP {
	return &TCP{
		address: address,
		dialer:  net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second},
	}
}

func (t *TCP) Describe() string {
	return "tcp:" + t.address
}

func (t *TCP) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	conn, err := t.dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	return conn, nil
}
