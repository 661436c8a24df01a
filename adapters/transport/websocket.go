package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
)

// TokenSource returns a bearer token for the next dial.
type TokenSource func() (string, error)

// WebSocket dials a network serial gateway that relays the board's bytes
// as text messages.
type WebSocket struct {
	url    string
	token  TokenSource
	dialer *websocket.Dialer
	logger *zap.Logger
}

var _ repositories.Transport = (*WebSocket)(nil)

// NewWebSocket creates a websocket transport. token may be nil.
func NewWebSocket(url string, token TokenSource, logger *zap.Logger) *WebSocket {
	return &WebSocket{
		url:    url,
		token:  token,
		dialer: websocket.DefaultDialer,
		logger: logger.With(zap.String("component", "ws-transport")),
	}
}

func (w *WebSocket) Describe() string {
	return "websocket:" + w.url
}

func (w *WebSocket) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	header := http.Header{}
	if w.token != nil {
		token, err := w.token()
		if err != nil {
			return nil, fmt.Errorf("%w: token: %w", domain.ErrTransport, err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: websocket handshake status %d: %w", domain.ErrTransport, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}

	w.logger.Debug("Websocket link established", zap.String("url", w.url))
	return NewWSStream(conn), nil
}

// WSStream adapts a websocket connection to a byte stream. Message
// boundaries are not meaningful; reads concatenate message payloads.
type WSStream struct {
	conn    *websocket.Conn
	reader  io.Reader
	writeMu sync.Mutex
}

// NewWSStream wraps conn
func NewWSStream(conn *websocket.Conn) *WSStream {
	return &WSStream{conn: conn}
}

func (s *WSStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if err == io.EOF {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *WSStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *WSStream) Close() error {
	return s.conn.Close()
}
