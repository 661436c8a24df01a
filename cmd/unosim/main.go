// Command unosim stands in for the microcontroller during development. It
// accepts one bridge connection at a time over TCP (or websocket with
// -ws), forwards stdin lines to the bridge and prints the replies.
//
// Shortcuts: "d" sends ULTRA:1, "g" sends ULTRA:0, "c <listing> <code>"
// sends CHECK:<listing>:<code>. Anything else is sent verbatim.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/adapters/transport"
	"github.com/satriahrh/jungo-bridge/internal/auth"
)

func main() {
	os.Exit(start())
}

func start() int {
	listen := flag.String("listen", "127.0.0.1:7000", "address to accept the bridge on")
	useWS := flag.Bool("ws", false, "serve a websocket gateway instead of raw TCP")
	secret := flag.String("secret", os.Getenv("BRIDGE_TRANSPORT_TOKEN_SECRET"), "token secret for websocket bridges")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := &simulator{logger: logger}
	go sim.readStdin(ctx, os.Stdin)

	var err error
	if *useWS {
		err = sim.serveWebsocket(ctx, *listen, *secret)
	} else {
		err = sim.serveTCP(ctx, *listen)
	}
	if err != nil && ctx.Err() == nil {
		logger.Error("Simulator stopped", zap.Error(err))
		return 1
	}
	return 0
}

type simulator struct {
	mu     sync.Mutex
	link   io.Writer
	logger *zap.Logger
}

func (s *simulator) attach(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link = w
}

func (s *simulator) send(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link == nil {
		s.logger.Warn("No bridge connected, dropping line", zap.String("line", line))
		return
	}
	if _, err := io.WriteString(s.link, line+"\n"); err != nil {
		s.logger.Warn("Failed to send line", zap.Error(err))
	}
}

func (s *simulator) readStdin(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if line := expand(scanner.Text()); line != "" {
			s.send(line)
		}
	}
}

// expand turns a shortcut into a wire line.
func expand(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}
	switch {
	case fields[0] == "d" && len(fields) == 1:
		return "ULTRA:1"
	case fields[0] == "g" && len(fields) == 1:
		return "ULTRA:0"
	case fields[0] == "c" && len(fields) == 3:
		return "CHECK:" + fields[1] + ":" + fields[2]
	default:
		return strings.TrimSpace(input)
	}
}

func (s *simulator) printReplies(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fmt.Printf("<- %s\n", scanner.Text())
	}
}

func (s *simulator) serveTCP(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.logger.Info("Waiting for bridge", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		s.logger.Info("Bridge connected", zap.String("remote", conn.RemoteAddr().String()))
		s.attach(conn)
		s.printReplies(conn)
		s.attach(nil)
		conn.Close()
		s.logger.Info("Bridge disconnected")
	}
}

func (s *simulator) serveWebsocket(ctx context.Context, addr, secret string) error {
	var issuer *auth.TokenIssuer
	if secret != "" {
		var err error
		if issuer, err = auth.NewTokenIssuer(secret, 0); err != nil {
			return err
		}
	}

	upgrader := websocket.Upgrader{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if issuer != nil {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			claims, err := issuer.ValidateToken(token)
			if err != nil {
				s.logger.Warn("Rejected bridge token", zap.Error(err))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			s.logger.Info("Bridge authenticated", zap.String("device_id", claims.DeviceID))
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("Websocket upgrade failed", zap.Error(err))
			return
		}
		stream := transport.NewWSStream(conn)
		defer stream.Close()

		s.attach(stream)
		s.printReplies(stream)
		s.attach(nil)
		s.logger.Info("Bridge disconnected")
	})

	server := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	s.logger.Info("Waiting for bridge over websocket", zap.String("addr", addr))
	return server.ListenAndServe()
}
