package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain"
	"github.com/satriahrh/jungo-bridge/domain/entities"
	"github.com/satriahrh/jungo-bridge/domain/repositories"
	"github.com/satriahrh/jungo-bridge/internal/dispatch"
	"github.com/satriahrh/jungo-bridge/internal/protocol"
)

const (
	DefaultBackoff = 3 * time.Second
	readBufferSize = 256
)

// Config for the connection supervisor
type Config struct {
	Backoff     time.Duration
	MaxInFlight int
}

// Supervisor keeps the device link up. It dials, serves the link until
// it fails, waits a fixed backoff and dials again, forever. Every
// connection gets a fresh line reader, so a partial line never survives a
// reconnect.
type Supervisor struct {
	transport repositories.Transport
	detector  dispatch.Detector
	verifier  dispatch.Verifier
	config    Config

	onConnect     func(ctx context.Context)
	onStateChange func(state entities.ConnectionState)

	mu    sync.RWMutex
	state entities.ConnectionState

	logger *zap.Logger
}

// New creates a supervisor for transport
func New(transport repositories.Transport, detector dispatch.Detector, verifier dispatch.Verifier, config Config, logger *zap.Logger) *Supervisor {
	if config.Backoff <= 0 {
		config.Backoff = DefaultBackoff
	}
	return &Supervisor{
		transport: transport,
		detector:  detector,
		verifier:  verifier,
		config:    config,
		state:     entities.StateDisconnected,
		logger:    logger.With(zap.String("component", "supervisor"), zap.String("link", transport.Describe())),
	}
}

// OnConnect registers a hook run in the background on every new
// connection. Its context ends with the connection.
func (s *Supervisor) OnConnect(fn func(ctx context.Context)) {
	s.onConnect = fn
}

// OnStateChange registers a callback for state transitions. It is called
// from the supervisor goroutine in transition order.
func (s *Supervisor) OnStateChange(fn func(state entities.ConnectionState)) {
	s.onStateChange = fn
}

// State returns the current link state
func (s *Supervisor) State() entities.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run supervises the link until ctx is done and returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		s.setState(entities.StateConnecting)

		conn, err := s.transport.Dial(ctx)
		if err != nil {
			s.setState(entities.StateDisconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("Failed to connect, retrying",
				zap.Error(err),
				zap.Duration("backoff", s.config.Backoff))
			if !s.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		s.setState(entities.StateConnected)
		s.logger.Info("Device link connected")

		err = s.serve(ctx, conn)
		s.setState(entities.StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("Device link lost, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", s.config.Backoff))
		if !s.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// serve reads and dispatches lines until the link fails.
func (s *Supervisor) serve(ctx context.Context, conn io.ReadWriteCloser) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { conn.Close() })
	}
	defer closeConn()

	// Closing the link is the only way to interrupt a blocked Read
	go func() {
		<-connCtx.Done()
		closeConn()
	}()

	reader := protocol.NewLineReader(s.logger)
	dispatcher := dispatch.New(connCtx, conn, s.detector, s.verifier, dispatch.Config{
		MaxInFlight: s.config.MaxInFlight,
		OnFault:     func(error) { cancel() },
	}, s.logger)
	defer dispatcher.Wait()

	if s.onConnect != nil {
		go s.onConnect(connCtx)
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range reader.Feed(buf[:n]) {
				dispatcher.Dispatch(line)
			}
		}
		if err != nil {
			cancel()
			if pending := reader.Pending(); pending > 0 {
				s.logger.Debug("Discarding partial line", zap.Int("bytes", pending))
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: link closed by peer", domain.ErrTransport)
			}
			return fmt.Errorf("%w: read: %w", domain.ErrTransport, err)
		}
	}
}

func (s *Supervisor) setState(state entities.ConnectionState) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed && s.onStateChange != nil {
		s.onStateChange(state)
	}
}

func (s *Supervisor) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.config.Backoff):
		return true
	}
}
