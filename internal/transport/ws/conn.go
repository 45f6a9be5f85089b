// Package ws provides the WebSocket transport for browser clients.
package ws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts an upgraded connection to chat.Conn. Each text frame carries
// one JSON document.
type Conn struct {
	conn       net.Conn
	remoteAddr string
	reader     *wsutil.Reader

	// wmu serializes every frame written to conn, control replies included.
	wmu       sync.Mutex
	closeSent bool
}

// NewConn wraps an upgraded net.Conn.
func NewConn(conn net.Conn, remoteAddr string) *Conn {
	if remoteAddr == "" {
		remoteAddr = conn.RemoteAddr().String()
	}
	c := &Conn{conn: conn, remoteAddr: remoteAddr}
	c.reader = &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}
	return c
}

// Read implements chat.Conn.
// Control frames are answered internally. A close frame from the peer is
// reported as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, closedAsEOF(err)
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, c.reader); err != nil {
				return nil, closedAsEOF(err)
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return nil, closedAsEOF(err)
			}
			continue
		}
		data, err := io.ReadAll(c.reader)
		if err != nil {
			return nil, closedAsEOF(err)
		}
		return data, nil
	}
}

// handleControl answers ping and close frames under the write lock.
func (c *Conn) handleControl(hdr ws.Header, r io.Reader) error {
	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closeSent {
		return wsutil.ClosedError{Code: ws.StatusNormalClosure}
	}
	// the payload was already unmasked by the frame reader
	err := (wsutil.ControlHandler{
		Src:                 bytes.NewReader(payload),
		Dst:                 c.conn,
		State:               ws.StateServerSide,
		DisableSrcCiphering: true,
	}).Handle(hdr)

	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		c.closeSent = true
	}
	return err
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return wsutil.WriteServerText(c.conn, data)
}

// Close implements chat.Conn. The close frame is skipped when the peer
// started the closing handshake, since it has already been answered.
func (c *Conn) Close() error {
	c.wmu.Lock()
	if !c.closeSent {
		c.closeSent = true
		_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, nil)
	}
	c.wmu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

func closedAsEOF(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return io.EOF
	}
	return err
}
