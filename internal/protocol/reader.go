package protocol

import (
	"bytes"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxLineLength bounds the bytes buffered while waiting for a newline.
// The firmware never sends lines this long; anything bigger is line noise.
const DefaultMaxLineLength = 1024

// LineReader turns the raw byte stream of one connection into lines.
// It is not safe for concurrent use; the supervisor feeds it from a single
// read loop.
type LineReader struct {
	buf     []byte
	maxLine int
	logger  *zap.Logger

	// discarding is set after an oversized partial line was dropped and
	// holds until the newline that ends it.
	discarding bool
}

// NewLineReader creates a reader with an empty buffer
func NewLineReader(logger *zap.Logger) *LineReader {
	return &LineReader{
		maxLine: DefaultMaxLineLength,
		logger:  logger,
	}
}

// Feed appends chunk to the buffer and returns every line completed by it.
// Bytes after the last newline stay buffered for the next call. Lines are
// split on the raw bytes before decoding, so a multi-byte character split
// across chunks decodes the same as if it had arrived whole. Lines longer
// than the limit are dropped whole, however they are chunked.
func (r *LineReader) Feed(chunk []byte) []string {
	if r.discarding {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return nil
		}
		r.discarding = false
		chunk = chunk[i+1:]
	}
	r.buf = append(r.buf, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(r.buf[start:], '\n')
		if i < 0 {
			break
		}
		raw := r.buf[start : start+i]
		start += i + 1
		if len(raw) > r.maxLine {
			r.dropOversized(len(raw))
			continue
		}
		if line := decodeLine(raw); line != "" {
			lines = append(lines, line)
		}
	}
	r.buf = append(r.buf[:0], r.buf[start:]...)

	if len(r.buf) > r.maxLine {
		r.dropOversized(len(r.buf))
		r.buf = r.buf[:0]
		r.discarding = true
	}

	return lines
}

func (r *LineReader) dropOversized(n int) {
	r.logger.Warn("Discarding oversized line",
		zap.Int("bytes", n),
		zap.Int("limit", r.maxLine))
}

// Pending returns the number of buffered bytes not yet part of a line.
func (r *LineReader) Pending() int {
	return len(r.buf)
}

// Reset drops any partial line.
func (r *LineReader) Reset() {
	r.buf = r.buf[:0]
	r.discarding = false
}

// decodeLine decodes best-effort: invalid UTF-8 is dropped, carriage returns
// are ignored and surrounding whitespace is trimmed.
func decodeLine(raw []byte) string {
	s := strings.ToValidUTF8(string(raw), "")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}
