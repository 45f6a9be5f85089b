// Package unified serves the line protocol and the WebSocket gateway on a
// single port, telling them apart by the first bytes a client sends.
package unified

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/internal/transport/tcp"
	"github.com/omochice/roomchat/internal/transport/ws"
)

// Server represents a server that handles both line protocol and
// WebSocket connections.
type Server struct {
	address  string
	lines    chat.Handler
	gateway  *ws.Server
	logger   *slog.Logger
	mu       sync.Mutex
	listener net.Listener
	upgrades *connListener
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a server passing line protocol connections to lines and
// WebSocket upgrades to gateway.
func New(address string, lines, gateway chat.Handler, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		lines:   lines,
		gateway: ws.New(address, gateway, logger),
		logger:  logger,
		quit:    make(chan struct{}),
	}
}

// Listen binds the listening socket without accepting yet.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start unified server: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.upgrades = newConnListener(listener.Addr())
	s.mu.Unlock()
	return nil
}

// Start accepts connections until Stop is called.
func (s *Server) Start() error {
	if s.Addr() == "" {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	listener, upgrades := s.listener, s.upgrades
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.gateway.Serve(upgrades); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("gateway stopped", "error", err)
		}
	}()

	s.logger.Info("unified server started", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed to accept connection", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn, upgrades)
	}
}

// Stop closes the listener. Connections already handed to a handler are
// left to finish on their own.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
		err = s.gateway.Stop(ctx)
	})
	return err
}

// Wait blocks until every line protocol connection and every upgraded
// WebSocket connection has been served or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.gateway.Wait(ctx)
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleConnection determines whether the connection is HTTP (WebSocket)
// or line protocol.
func (s *Server) handleConnection(conn net.Conn, upgrades *connListener) {
	defer s.wg.Done()

	reader := bufio.NewReader(conn)
	proto, err := detectProtocol(reader)
	if err != nil {
		s.logger.Debug("connection closed before protocol detection", "remote_addr", conn.RemoteAddr().String(), "error", err)
		conn.Close()
		return
	}

	peeked := &peekedConn{Conn: conn, reader: reader}
	if proto == protocolHTTP {
		if !upgrades.push(peeked) {
			conn.Close()
		}
		return
	}

	// handler errors are already logged by the handler
	_ = s.lines.HandleClient(context.Background(), tcp.NewConn(peeked))
}
