package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"

	"github.com/omochice/roomchat/internal/chat"
)

// Path is where the WebSocket endpoint is mounted.
const Path = "/ws"

// Server upgrades HTTP requests on Path and hands each connection to a
// chat.Handler.
type Server struct {
	address  string
	handler  chat.Handler
	logger   *slog.Logger
	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// New creates a WebSocket server that serves connections with handler.
func New(address string, handler chat.Handler, logger *slog.Logger) *Server {
	s := &Server{
		address: address,
		handler: handler,
		logger:  logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	s.server = &http.Server{Handler: mux}
	return s
}

// Listen binds the listening socket without serving yet.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// Start serves until Stop is called. It calls Listen if that has not
// happened yet.
func (s *Server) Start() error {
	if s.Addr() == "" {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	return s.Serve(listener)
}

// Serve upgrades connections accepted from listener until Stop is called.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("WebSocket server started", "address", listener.Addr().String(), "path", Path)

	err := s.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops accepting upgrades. Upgraded connections are not closed.
func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.mu.Lock()
	if s.listener != nil {
		// Serve may not have taken ownership of the listener yet
		s.listener.Close()
	}
	s.mu.Unlock()
	return err
}

// Wait blocks until every upgraded connection has been served or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
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

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("failed to upgrade WebSocket connection", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// handler errors are already logged by the handler
		_ = s.handler.HandleClient(context.Background(), NewConn(conn, r.RemoteAddr))
	}()
}
