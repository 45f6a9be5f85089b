// Package client implements a chat client over the line protocol (TCP) or
// the browser gateway (WebSocket).
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/omochice/roomchat/pkg/protocol"
)

// ErrNotConnected is returned when sending on a client that is not connected.
var ErrNotConnected = errors.New("not connected to server")

// Client is a chat client. Events from the server are delivered on Events
// until the connection ends, at which point the channel is closed.
type Client struct {
	dial   func(ctx context.Context) (Connection, error)
	conn   Connection
	events chan protocol.ServerEvent
	mu     sync.RWMutex
	done   chan struct{}
	wg     sync.WaitGroup
	err    error
}

// NewTCP creates a client for the line protocol server at address.
func NewTCP(address string) *Client {
	return newClient(func(ctx context.Context) (Connection, error) {
		return DialTCP(ctx, address)
	})
}

// NewWebSocket creates a client for the gateway at url (ws://host:port/ws).
func NewWebSocket(url string) *Client {
	return newClient(func(ctx context.Context) (Connection, error) {
		return DialWebSocket(ctx, url)
	})
}

func newClient(dial func(ctx context.Context) (Connection, error)) *Client {
	return &Client{
		dial:   dial,
		events: make(chan protocol.ServerEvent, 64),
		done:   make(chan struct{}),
	}
}

// Connect establishes a connection to the server.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveEvents(conn)

	return nil
}

// Disconnect closes the connection and waits for the receiver to stop.
func (c *Client) Disconnect() {
	c.mu.Lock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Events returns the channel of server events.
func (c *Client) Events() <-chan protocol.ServerEvent {
	return c.events
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Login authenticates as username.
func (c *Client) Login(username string) error {
	return c.Send(protocol.Login(username))
}

// SendMessage posts content to the current room.
func (c *Client) SendMessage(content string) error {
	return c.Send(protocol.SendMessage(content))
}

// JoinRoom moves to room.
func (c *Client) JoinRoom(room string) error {
	return c.Send(protocol.JoinRoom(room))
}

// LeaveRoom leaves room without joining another.
func (c *Client) LeaveRoom(room string) error {
	return c.Send(protocol.LeaveRoom(room))
}

// CreateRoom creates room.
func (c *Client) CreateRoom(room string) error {
	return c.Send(protocol.CreateRoom(room))
}

// ListRooms asks for the room list.
func (c *Client) ListRooms() error {
	return c.Send(protocol.ListRooms())
}

// ListUsers asks for the members of the current room.
func (c *Client) ListUsers() error {
	return c.Send(protocol.ListUsers())
}

// Send encodes and writes any intent.
func (c *Client) Send(intent protocol.ClientIntent) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := protocol.EncodeIntent(intent)
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(data); err != nil {
		return fmt.Errorf("failed to send %s: %w", intent.Type, err)
	}
	return nil
}

func (c *Client) receiveEvents(conn Connection) {
	defer c.wg.Done()
	defer close(c.events)

	for {
		data, err := conn.ReadFrame()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}

		event, err := protocol.DecodeEvent(data)
		if err != nil {
			continue
		}

		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}
