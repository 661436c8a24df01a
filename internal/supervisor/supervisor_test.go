package supervisor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

// pipeTransport hands the bridge one end of a net.Pipe per dial and the
// test the other end, standing in for the microcontroller.
type pipeTransport struct {
	devices  chan net.Conn
	failures atomic.Int32
	dials    atomic.Int32
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{devices: make(chan net.Conn, 4)}
}

func (p *pipeTransport) Describe() string { return "pipe" }

func (p *pipeTransport) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	p.dials.Add(1)
	if p.failures.Load() > 0 {
		p.failures.Add(-1)
		return nil, errors.New("port busy")
	}
	bridge, device := net.Pipe()
	p.devices <- device
	return bridge, nil
}

type nopDetector struct{ events atomic.Int32 }

func (d *nopDetector) OnDetection(entities.DetectionEvent) bool {
	d.events.Add(1)
	return true
}

type codeVerifier map[string]string

func (v codeVerifier) Verify(ctx context.Context, listingID, code string) entities.Verdict {
	expected, ok := v[listingID]
	switch {
	case !ok:
		return entities.VerdictNoListing
	case expected == code:
		return entities.VerdictMatch
	default:
		return entities.VerdictNoMatch
	}
}

type stateLog struct {
	mu     sync.Mutex
	states []entities.ConnectionState
}

func (l *stateLog) record(state entities.ConnectionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, state)
}

func (l *stateLog) snapshot() []entities.ConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]entities.ConnectionState(nil), l.states...)
}

func nextDevice(t *testing.T, transport *pipeTransport) net.Conn {
	t.Helper()
	select {
	case conn := <-transport.devices:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("Supervisor did not dial")
		return nil
	}
}

func readReply(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("Failed to read reply: %v", res.err)
		}
		return res.line
	case <-time.After(2 * time.Second):
		t.Fatal("No reply from bridge")
		return ""
	}
}

func TestSupervisor_ReconnectDiscardsPartialLine(t *testing.T) {
	transport := newPipeTransport()
	states := &stateLog{}

	s := New(transport, &nopDetector{}, codeVerifier{"42": "1234"}, Config{Backoff: 10 * time.Millisecond}, zaptest.NewLogger(t))
	s.OnStateChange(states.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	first := nextDevice(t, transport)
	if _, err := first.Write([]byte("CHECK:42:12")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	first.Close()

	second := nextDevice(t, transport)
	replies := bufio.NewReader(second)
	go second.Write([]byte("34\nCHECK:42:9999\n"))

	// A stitched line would have produced MATCH
	if got := readReply(t, replies); got != "NO_MATCH\n" {
		t.Errorf("Expected NO_MATCH, got %q", got)
	}

	want := []entities.ConnectionState{
		entities.StateConnecting,
		entities.StateConnected,
		entities.StateDisconnected,
		entities.StateConnecting,
		entities.StateConnected,
	}
	got := states.snapshot()
	if len(got) < len(want) {
		t.Fatalf("Expected states %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected states %v, got %v", want, got)
		}
	}
	if s.State() != entities.StateConnected {
		t.Errorf("Expected connected, got %s", s.State())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.State() != entities.StateDisconnected {
		t.Errorf("Expected disconnected after shutdown, got %s", s.State())
	}
}

func TestSupervisor_RetriesFailedDials(t *testing.T) {
	transport := newPipeTransport()
	transport.failures.Store(2)

	s := New(transport, &nopDetector{}, codeVerifier{}, Config{Backoff: 5 * time.Millisecond}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	device := nextDevice(t, transport)
	defer device.Close()

	if got := transport.dials.Load(); got != 3 {
		t.Errorf("Expected 3 dials, got %d", got)
	}
}

func TestSupervisor_DispatchesDetectionsAndRunsHook(t *testing.T) {
	transport := newPipeTransport()
	detector := &nopDetector{}
	hooked := make(chan struct{}, 2)

	s := New(transport, detector, codeVerifier{}, Config{Backoff: 5 * time.Millisecond}, zaptest.NewLogger(t))
	s.OnConnect(func(ctx context.Context) { hooked <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	device := nextDevice(t, transport)
	defer device.Close()

	select {
	case <-hooked:
	case <-time.After(2 * time.Second):
		t.Fatal("On-connect hook was not run")
	}

	if _, err := device.Write([]byte("ULTRA:1\r\nULTRA:0\r\n")); err != nil {
		t.Fatal(err)
	}
	// The next write only completes once the previous chunk was consumed
	if _, err := device.Write([]byte("NOISE\n")); err != nil {
		t.Fatal(err)
	}
	if got := detector.events.Load(); got != 1 {
		t.Errorf("Expected 1 detection, got %d", got)
	}
}
