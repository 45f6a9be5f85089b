package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/omochice/roomchat/internal/chat"
)

// Server accepts TCP connections and hands each one to a chat.Handler.
type Server struct {
	address  string
	handler  chat.Handler
	logger   *slog.Logger
	mu       sync.Mutex
	listener net.Listener
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a TCP server that serves connections with handler.
func New(address string, handler chat.Handler, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		handler: handler,
		logger:  logger,
		quit:    make(chan struct{}),
	}
}

// Listen binds the listening socket without accepting yet.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// Start accepts TCP connections until Stop is called. It calls Listen if
// that has not happened yet.
func (s *Server) Start() error {
	if s.Addr() == "" {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	s.logger.Info("TCP server started", "address", listener.Addr().String())

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
			s.logger.Warn("failed to accept TCP connection", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleClient(conn)
	}
}

// Stop closes the listener. Established connections are left to finish on
// their own; Wait blocks until they have.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

// Wait blocks until every accepted connection has been served or ctx is done.
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

func (s *Server) handleClient(conn net.Conn) {
	defer s.wg.Done()
	// handler errors are already logged by the handler
	_ = s.handler.HandleClient(context.Background(), NewConn(conn))
}
