package chat

import (
	"context"
	"log/slog"
	"sync"
)

// Client is a connection currently served by the hub.
type Client struct {
	Conn Conn
}

// Hub tracks live connections and runs a Session for each of them.
// TCP connections are served by a Hub sharing one Server.
type Hub struct {
	server  *Server
	logger  *slog.Logger
	clients map[*Client]bool
	mu      sync.RWMutex
}

// NewHub creates a Hub backed by server.
func NewHub(server *Server, logger *slog.Logger) *Hub {
	return &Hub{
		server:  server,
		logger:  logger,
		clients: make(map[*Client]bool),
	}
}

// HandleClient implements Handler. The connection is closed on return.
func (h *Hub) HandleClient(ctx context.Context, conn Conn) error {
	client := &Client{Conn: conn}
	h.Register(client)
	defer h.Unregister(client)
	defer conn.Close()

	h.logger.Info("client connected", "remote_addr", conn.RemoteAddr())
	err := NewSession(h.server, conn, h.logger).Run(ctx)
	if err != nil {
		h.logger.Warn("client connection ended with error", "remote_addr", conn.RemoteAddr(), "error", err)
	} else {
		h.logger.Info("client disconnected", "remote_addr", conn.RemoteAddr())
	}
	return err
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
