package protocol

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const streamFixture = "ULTRA:1\r\nCHECK:42:1234\n\n  ULTRA:0 \nCHECK:7:9999\nkey\xffpad\n한글\npartial"

var streamLines = []string{"ULTRA:1", "CHECK:42:1234", "ULTRA:0", "CHECK:7:9999", "keypad", "한글"}

func feedChunks(r *LineReader, data []byte, sizes func() int) []string {
	var lines []string
	for len(data) > 0 {
		n := sizes()
		if n > len(data) {
			n = len(data)
		}
		lines = append(lines, r.Feed(data[:n])...)
		data = data[n:]
	}
	return lines
}

func TestLineReader_Whole(t *testing.T) {
	r := NewLineReader(zap.NewNop())

	got := r.Feed([]byte(streamFixture))
	if !reflect.DeepEqual(got, streamLines) {
		t.Fatalf("Expected %q, got %q", streamLines, got)
	}
	if r.Pending() != len("partial") {
		t.Errorf("Expected %d pending bytes, got %d", len("partial"), r.Pending())
	}
}

func TestLineReader_ChunkingInvariance(t *testing.T) {
	data := []byte(streamFixture)

	for size := 1; size <= len(data); size++ {
		r := NewLineReader(zap.NewNop())
		n := size
		got := feedChunks(r, data, func() int { return n })
		if !reflect.DeepEqual(got, streamLines) {
			t.Fatalf("chunk size %d: expected %q, got %q", size, streamLines, got)
		}
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		r := NewLineReader(zap.NewNop())
		got := feedChunks(r, data, func() int { return 1 + rng.Intn(9) })
		if !reflect.DeepEqual(got, streamLines) {
			t.Fatalf("random run %d: expected %q, got %q", i, streamLines, got)
		}
	}
}

func TestLineReader_NoLineWithoutDelimiter(t *testing.T) {
	r := NewLineReader(zap.NewNop())

	if got := r.Feed([]byte("CHECK:42:12")); len(got) != 0 {
		t.Fatalf("Expected no lines before newline, got %q", got)
	}
	got := r.Feed([]byte("34\n"))
	if len(got) != 1 || got[0] != "CHECK:42:1234" {
		t.Fatalf("Expected joined line, got %q", got)
	}
}

func TestLineReader_Reset(t *testing.T) {
	r := NewLineReader(zap.NewNop())

	r.Feed([]byte("CHECK:42:12"))
	r.Reset()
	if r.Pending() != 0 {
		t.Fatalf("Expected empty buffer after reset, got %d bytes", r.Pending())
	}

	got := r.Feed([]byte("34\n"))
	if len(got) != 1 || got[0] != "34" {
		t.Fatalf("Expected partial line to be dropped, got %q", got)
	}
}

func TestLineReader_OversizedPartialLine(t *testing.T) {
	r := NewLineReader(zap.NewNop())

	r.Feed([]byte(strings.Repeat("x", DefaultMaxLineLength+1)))
	if r.Pending() != 0 {
		t.Fatalf("Expected oversized buffer to be discarded, got %d bytes", r.Pending())
	}

	if got := r.Feed([]byte("CHECK:42:1234\n")); len(got) != 0 {
		t.Fatalf("Tail of an oversized line must not surface as a line, got %q", got)
	}

	got := r.Feed([]byte("ULTRA:1\n"))
	if len(got) != 1 || got[0] != "ULTRA:1" {
		t.Fatalf("Reader should recover after the oversized line ends, got %q", got)
	}
}

func TestLineReader_OversizedLineChunkingInvariance(t *testing.T) {
	data := []byte("ULTRA:1\n" + strings.Repeat("x", DefaultMaxLineLength+76) + "CHECK:42:1234\nCHECK:7:9999\n")
	want := []string{"ULTRA:1", "CHECK:7:9999"}

	splits := []int{len(data), 8, 8 + DefaultMaxLineLength + 1, 8 + DefaultMaxLineLength + 76, 1, 64, 1000}
	for _, size := range splits {
		r := NewLineReader(zap.NewNop())
		n := size
		got := feedChunks(r, data, func() int { return n })
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunk size %d: expected %q, got %q", size, want, got)
		}
	}

	r := NewLineReader(zap.NewNop())
	got := r.Feed(data[:8+DefaultMaxLineLength+76])
	got = append(got, r.Feed(data[8+DefaultMaxLineLength+76:])...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("split before CHECK: expected %q, got %q", want, got)
	}
}

func TestLineReader_LineAtLimitIsKept(t *testing.T) {
	r := NewLineReader(zap.NewNop())

	line := strings.Repeat("y", DefaultMaxLineLength)
	got := r.Feed([]byte(line + "\n"))
	if len(got) != 1 || got[0] != line {
		t.Fatalf("Expected line at the limit to be kept, got %d lines", len(got))
	}
}
