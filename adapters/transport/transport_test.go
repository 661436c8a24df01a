package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/jungo-bridge/domain"
)

// fakePort overrides the calls the transport makes; the embedded nil
// interface panics on anything else.
type fakePort struct {
	serial.Port
	flushed bool
	closed  bool
}

func (p *fakePort) ResetInputBuffer() error { p.flushed = true; return nil }
func (p *fakePort) Close() error            { p.closed = true; return nil }

func TestSerial_DialAutoPort(t *testing.T) {
	s := NewSerial(SerialConfig{Port: "auto", BaudRate: 115200}, zaptest.NewLogger(t))

	port := &fakePort{}
	var openedName string
	var openedBaud int
	s.ports = func() ([]string, error) { return []string{"/dev/ttyS0", "/dev/ttyACM0", "/dev/ttyUSB0"}, nil }
	s.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		openedName, openedBaud = name, mode.BaudRate
		return port, nil
	}

	conn, err := s.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if conn != port {
		t.Error("Expected the opened port to be returned")
	}
	if openedName != "/dev/ttyACM0" || openedBaud != 115200 {
		t.Errorf("Opened %s @ %d", openedName, openedBaud)
	}
	if !port.flushed {
		t.Error("Expected input buffer flush after open")
	}
}

func TestSerial_DialFailures(t *testing.T) {
	s := NewSerial(SerialConfig{Port: "/dev/ttyACM9"}, zaptest.NewLogger(t))
	s.open = func(string, *serial.Mode) (serial.Port, error) { return nil, errors.New("no such device") }

	if _, err := s.Dial(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", err)
	}

	s = NewSerial(SerialConfig{}, zaptest.NewLogger(t))
	s.ports = func() ([]string, error) { return []string{"/dev/ttyS0"}, nil }
	if _, err := s.Dial(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Errorf("Expected ErrTransport when no board port, got %v", err)
	}
}

func TestSerial_DialCancelledDuringReset(t *testing.T) {
	s := NewSerial(SerialConfig{Port: "/dev/ttyACM0", ResetDelay: time.Minute}, zaptest.NewLogger(t))
	port := &fakePort{}
	s.open = func(string, *serial.Mode) (serial.Port, error) { return port, nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Dial(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if !port.closed {
		t.Error("Expected port to be closed on cancel")
	}
}

func TestTCP_Dial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("ULTRA:1\n"))
		conn.Close()
	}()

	tr := NewTCP(ln.Addr().String())
	conn, err := tr.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	data, _ := io.ReadAll(conn)
	if string(data) != "ULTRA:1\n" {
		t.Errorf("Unexpected data %q", data)
	}
	if !strings.HasPrefix(tr.Describe(), "tcp:") {
		t.Errorf("Unexpected description %s", tr.Describe())
	}
}

func TestWebSocket_DialAndStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("CHECK:42:"))
		conn.WriteMessage(websocket.TextMessage, []byte("1234\n"))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, msg)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")

	tr := NewWebSocket(url, func() (string, error) { return "tok", nil }, zaptest.NewLogger(t))
	conn, err := tr.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, len("CHECK:42:1234\n"))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf) != "CHECK:42:1234\n" {
		t.Errorf("Unexpected stream %q", buf)
	}

	if _, err := conn.Write([]byte("MATCH\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rest, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(rest) != "MATCH\n" {
		t.Errorf("Unexpected echo %q", rest)
	}

	bad := NewWebSocket(url, func() (string, error) { return "wrong", nil }, zaptest.NewLogger(t))
	if _, err := bad.Dial(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Errorf("Expected ErrTransport for rejected handshake, got %v", err)
	}
}
