package protocol

import (
	"fmt"
	"io"
	"sync"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/entities"
)

// ReplyWriter writes verdict frames to the device. Each frame goes out in a
// single Write so concurrent replies never interleave.
type ReplyWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReplyWriter wraps w
func NewReplyWriter(w io.Writer) *ReplyWriter {
	return &ReplyWriter{w: w}
}

func (r *ReplyWriter) Send(v entities.Verdict) error {
	frame := v.Frame()

	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.w.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", domain.ErrTransport, v, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: short write of %s (%d of %d bytes)", domain.ErrTransport, v, n, len(frame))
	}
	return nil
}
