package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/omochice/roomchat/pkg/protocol"
)

// DefaultMailboxCapacity bounds each per-user queue.
const DefaultMailboxCapacity = 256

type queue struct {
	events []protocol.ServerEvent
	signal chan struct{}
}

// Mailbox buffers outbound events per user instead of holding a live
// subscription for each connection. It subscribes to the server once and
// sorts every envelope into the queues of the users it addresses. When a
// queue is full its oldest event is dropped.
type Mailbox struct {
	server   *Server
	logger   *slog.Logger
	capacity int

	mu     sync.Mutex
	sub    *Subscription
	queues map[string]*queue
}

// NewMailbox subscribes to server. Run must be started to keep the
// subscription from lagging between calls to Pending.
func NewMailbox(server *Server, capacity int, logger *slog.Logger) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultMailboxCapacity
	}
	return &Mailbox{
		server:   server,
		logger:   logger,
		capacity: capacity,
		sub:      server.Subscribe(),
		queues:   make(map[string]*queue),
	}
}

// Login logs a user in and opens its queue. The queue exists before the
// user's own UserJoined is sorted, so that event is not lost.
func (m *Mailbox) Login(username string) (string, protocol.ServerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drainLocked()
	id, welcome := m.server.Login(username)
	m.queues[id] = &queue{signal: make(chan struct{}, 1)}
	return id, welcome
}

// HandleIntent forwards intent to the server.
func (m *Mailbox) HandleIntent(userID string, intent protocol.ClientIntent) {
	m.server.HandleIntent(userID, intent)
}

// Disconnect closes the user's queue and disconnects the user.
func (m *Mailbox) Disconnect(userID string) {
	m.mu.Lock()
	m.drainLocked()
	delete(m.queues, userID)
	m.mu.Unlock()

	m.server.Disconnect(userID)
}

// Pending removes and returns every queued event for userID, oldest first.
func (m *Mailbox) Pending(userID string) []protocol.ServerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drainLocked()
	q, ok := m.queues[userID]
	if !ok {
		return nil
	}
	events := q.events
	q.events = nil
	return events
}

// Run sorts envelopes into queues as they are published until ctx is done.
func (m *Mailbox) Run(ctx context.Context) error {
	for {
		m.mu.Lock()
		ready := m.sub.Ready()
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
			m.mu.Lock()
			m.drainLocked()
			m.mu.Unlock()
		}
	}
}

func (m *Mailbox) signal(userID string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[userID]; ok {
		return q.signal
	}
	return nil
}

func (m *Mailbox) drainLocked() {
	for {
		env, err := m.sub.TryRecv()
		var lagged *LaggedError
		switch {
		case errors.Is(err, ErrEmpty):
			return
		case errors.As(err, &lagged):
			m.logger.Debug("mailbox lagged", "skipped", lagged.Skipped)
			continue
		case err != nil:
			return
		}
		m.distribute(env)
	}
}

func (m *Mailbox) distribute(env Envelope) {
	if env.TargetUser != "" {
		if q, ok := m.queues[env.TargetUser]; ok {
			m.push(q, env.Event)
		}
		return
	}
	for id, q := range m.queues {
		var room string
		if env.TargetRoom != "" {
			room, _ = m.server.CurrentRoom(id)
		}
		if env.Matches(id, room) {
			m.push(q, env.Event)
		}
	}
}

func (m *Mailbox) push(q *queue, event protocol.ServerEvent) {
	if len(q.events) >= m.capacity {
		q.events = q.events[1:]
	}
	q.events = append(q.events, event)
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// HandleClient implements Handler for transports whose sessions read
// from the mailbox instead of subscribing to the broadcast.
func (m *Mailbox) HandleClient(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	logger := m.logger.With("remote_addr", conn.RemoteAddr())
	logger.Info("gateway client connected")

	frames, readErr := readFrames(ctx, conn)

	var userID string
	var wake <-chan struct{}
	defer func() {
		if userID != "" {
			m.Disconnect(userID)
		}
		logger.Info("gateway client disconnected")
	}()

	flush := func() error {
		for _, event := range m.Pending(userID) {
			if err := writeEvent(ctx, conn, event); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		case frame := <-frames:
			intent, err := protocol.DecodeIntent(frame)
			if err != nil {
				logger.Debug("dropping malformed frame", "error", err)
				continue
			}
			if userID == "" {
				if intent.Type != protocol.IntentLogin {
					continue
				}
				id, welcome := m.Login(intent.Username)
				userID = id
				wake = m.signal(id)
				logger = logger.With("user_id", id)
				if err := writeEvent(ctx, conn, welcome); err != nil {
					return err
				}
			} else {
				m.HandleIntent(userID, intent)
			}
			if err := flush(); err != nil {
				return err
			}
		case <-wake:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
