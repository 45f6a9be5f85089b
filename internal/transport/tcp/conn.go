// Package tcp provides the line-framed TCP transport for the chat server.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/omochice/roomchat/pkg/protocol"
)

// Conn adapts net.Conn to chat.Conn. Each frame is one newline
// terminated line.
type Conn struct {
	conn   net.Conn
	reader *protocol.LineReader
	wmu    sync.Mutex
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:   conn,
		reader: protocol.NewLineReader(conn),
	}
}

// Read implements chat.Conn.
// Returns the next line without its terminator. Oversized lines are
// dropped. The context is not consulted: a blocked read ends when the
// connection is closed.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		line, err := c.reader.ReadLine()
		if errors.Is(err, protocol.ErrLineTooLong) {
			continue
		}
		return line, err
	}
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return protocol.WriteLine(c.conn, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
