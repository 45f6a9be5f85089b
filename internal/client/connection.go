package client

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/roomchat/pkg/protocol"
)

// Connection is a frame-oriented connection to the server.
type Connection interface {
	WriteFrame(data []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// TCPConnection frames documents as newline terminated lines.
type TCPConnection struct {
	conn   net.Conn
	reader *protocol.LineReader
	mu     sync.Mutex
}

// DialTCP connects to a line protocol server.
func DialTCP(ctx context.Context, address string) (*TCPConnection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPConnection{conn: conn, reader: protocol.NewLineReader(conn)}, nil
}

func (tc *TCPConnection) WriteFrame(data []byte) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return protocol.WriteLine(tc.conn, data)
}

func (tc *TCPConnection) ReadFrame() ([]byte, error) {
	return tc.reader.ReadLine()
}

func (tc *TCPConnection) Close() error {
	return tc.conn.Close()
}

// WebSocketConnection carries one document per text frame using gobwas/ws.
type WebSocketConnection struct {
	conn net.Conn
	rw   io.ReadWriter
	mu   sync.Mutex
}

type readWriter struct {
	io.Reader
	io.Writer
}

// DialWebSocket connects to the browser gateway.
func DialWebSocket(ctx context.Context, url string) (*WebSocketConnection, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	wc := &WebSocketConnection{conn: conn, rw: conn}
	if br != nil {
		// the server may have sent frames along with the handshake response
		wc.rw = readWriter{Reader: io.MultiReader(br, conn), Writer: conn}
	}
	return wc, nil
}

func (wc *WebSocketConnection) WriteFrame(data []byte) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wsutil.WriteClientText(wc.conn, data)
}

func (wc *WebSocketConnection) ReadFrame() ([]byte, error) {
	for {
		data, op, err := wsutil.ReadServerData(wc.rw)
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) {
				return nil, io.EOF
			}
			return nil, err
		}
		if op == ws.OpText || op == ws.OpBinary {
			return data, nil
		}
	}
}

func (wc *WebSocketConnection) Close() error {
	wc.mu.Lock()
	// Send close frame
	_ = wsutil.WriteClientMessage(wc.conn, ws.OpClose, nil)
	wc.mu.Unlock()
	return wc.conn.Close()
}

