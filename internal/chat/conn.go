// Package chat implements rooms, users and the broadcast fan-out shared by
// every transport.
package chat

import "context"

// Conn abstracts a bidirectional, frame-oriented client connection.
// This interface isolates transport details from chat logic.
type Conn interface {
	// Read reads a single frame (one JSON document).
	// Returns io.EOF when the peer closed the connection.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single frame (one JSON document).
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Handler serves one accepted connection until it ends.
type Handler interface {
	HandleClient(ctx context.Context, conn Conn) error
}
