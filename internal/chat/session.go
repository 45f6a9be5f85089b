package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/omochice/roomchat/pkg/protocol"
)

// Session drives one connection: it decodes inbound frames into server
// operations and forwards matching broadcast envelopes back to the peer.
type Session struct {
	server *Server
	conn   Conn
	logger *slog.Logger

	userID string
	sub    *Subscription
}

// NewSession creates an unauthenticated session for conn.
func NewSession(server *Server, conn Conn, logger *slog.Logger) *Session {
	return &Session{
		server: server,
		conn:   conn,
		logger: logger.With("remote_addr", conn.RemoteAddr()),
	}
}

// Run serves the connection until the peer goes away, a write fails or ctx
// is cancelled. A logged in user is disconnected on return. A clean close
// by the peer returns nil.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames, readErr := readFrames(ctx, s.conn)

	defer func() {
		if s.userID != "" {
			s.server.Disconnect(s.userID)
		}
	}()

	for {
		// nil until login, which disables the case
		var ready <-chan struct{}
		if s.sub != nil {
			ready = s.sub.Ready()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		case frame := <-frames:
			if err := s.handleFrame(ctx, frame); err != nil {
				return err
			}
		case <-ready:
			if err := s.drain(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, frame []byte) error {
	intent, err := protocol.DecodeIntent(frame)
	if err != nil {
		s.logger.Debug("dropping malformed frame", "error", err)
		return nil
	}

	if s.userID == "" {
		if intent.Type != protocol.IntentLogin {
			return nil
		}
		// subscribe first so the user's own UserJoined is observed
		s.sub = s.server.Subscribe()
		id, welcome := s.server.Login(intent.Username)
		s.userID = id
		s.logger = s.logger.With("user_id", id)
		return s.write(ctx, welcome)
	}

	s.server.HandleIntent(s.userID, intent)
	return nil
}

func (s *Session) drain(ctx context.Context) error {
	for {
		env, err := s.sub.TryRecv()
		var lagged *LaggedError
		switch {
		case errors.Is(err, ErrEmpty):
			return nil
		case errors.As(err, &lagged):
			s.logger.Debug("broadcast subscriber lagged", "skipped", lagged.Skipped)
			continue
		case err != nil:
			return err
		}

		if !s.accepts(env) {
			continue
		}
		if err := s.write(ctx, env.Event); err != nil {
			return err
		}
	}
}

func (s *Session) accepts(env Envelope) bool {
	var room string
	if env.TargetRoom != "" {
		room, _ = s.server.CurrentRoom(s.userID)
	}
	return env.Matches(s.userID, room)
}

func (s *Session) write(ctx context.Context, event protocol.ServerEvent) error {
	return writeEvent(ctx, s.conn, event)
}

func writeEvent(ctx context.Context, conn Conn, event protocol.ServerEvent) error {
	data, err := protocol.EncodeEvent(event)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", event.Type, err)
	}
	return nil
}

// readFrames reads conn on its own goroutine. The frame channel is
// unbuffered, so the error is only reported after every frame before it
// has been taken.
func readFrames(ctx context.Context, conn Conn) (<-chan []byte, <-chan error) {
	frames := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		for {
			data, err := conn.Read(ctx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames, errc
}
