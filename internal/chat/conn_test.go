package chat_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/pkg/protocol"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	writes     chan []byte
	writeErr   error
	hold       chan struct{} // when set, writes block until it is closed
	hangOnce   sync.Once
	closeOnce  sync.Once
	closed     chan struct{}
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 16),
		writes:     make(chan []byte, 256),
		closed:     make(chan struct{}),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.hold != nil {
		<-m.hold
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	m.writes <- copied
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

// hangUp makes the next Read return io.EOF.
func (m *mockConn) hangUp() {
	m.hangOnce.Do(func() { close(m.readCh) })
}

// send queues an intent for the session to read.
func (m *mockConn) send(t *testing.T, intent protocol.ClientIntent) {
	t.Helper()
	data, err := protocol.EncodeIntent(intent)
	require.NoError(t, err)
	m.readCh <- data
}

// next returns the next event written to the peer.
func (m *mockConn) next(t *testing.T) protocol.ServerEvent {
	t.Helper()
	select {
	case data := <-m.writes:
		event, err := protocol.DecodeEvent(data)
		require.NoError(t, err)
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return protocol.ServerEvent{}
	}
}

// waitFor skips events until one of type typ arrives.
func (m *mockConn) waitFor(t *testing.T, typ protocol.EventType) protocol.ServerEvent {
	t.Helper()
	for {
		if event := m.next(t); event.Type == typ {
			return event
		}
	}
}

// assertSilent fails if anything is written within a short window.
func (m *mockConn) assertSilent(t *testing.T) {
	t.Helper()
	select {
	case data := <-m.writes:
		t.Fatalf("unexpected write: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)
