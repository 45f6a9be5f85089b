package ws_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/internal/transport/ws"
	"github.com/omochice/roomchat/pkg/protocol"
)

func startGateway(t *testing.T) (*ws.Server, *chat.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chatServer := chat.NewServer(chat.WithLogger(logger))
	mailbox := chat.NewMailbox(chatServer, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go mailbox.Run(ctx)

	srv := ws.New("127.0.0.1:0", mailbox, logger)
	require.NoError(t, srv.Listen())
	go srv.Start()

	t.Cleanup(func() {
		srv.Stop(context.Background())
		cancel()
	})
	return srv, chatServer
}

func dial(t *testing.T, srv *ws.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+ws.Path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, intent protocol.ClientIntent) {
	t.Helper()
	data, err := protocol.EncodeIntent(intent)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func next(t *testing.T, conn *websocket.Conn) protocol.ServerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	event, err := protocol.DecodeEvent(data)
	require.NoError(t, err)
	return event
}

func TestServer_Addr(t *testing.T) {
	srv, _ := startGateway(t)

	assert.NotEmpty(t, srv.Addr())
}

func TestServer_GatewaySession(t *testing.T) {
	srv, chatServer := startGateway(t)

	alice := dial(t, srv)
	send(t, alice, protocol.Login("alice"))
	assert.Equal(t, protocol.EventWelcome, next(t, alice).Type)
	assert.Equal(t, protocol.UserJoined("alice", "general"), next(t, alice))

	bob := dial(t, srv)
	send(t, bob, protocol.Login("bob"))
	assert.Equal(t, protocol.EventWelcome, next(t, bob).Type)
	assert.Equal(t, protocol.UserJoined("bob", "general"), next(t, bob))
	assert.Equal(t, protocol.UserJoined("bob", "general"), next(t, alice))

	send(t, bob, protocol.SendMessage("hello"))
	for _, conn := range []*websocket.Conn{alice, bob} {
		event := next(t, conn)
		assert.Equal(t, protocol.EventNewMessage, event.Type)
		assert.Equal(t, "bob", event.Sender)
		assert.Equal(t, "hello", event.Content)
	}

	send(t, alice, protocol.JoinRoom("missing"))
	assert.Equal(t, protocol.Error("Room not found"), next(t, alice))

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Equal(t, protocol.UserLeft("bob", "general"), next(t, alice))
	assert.Eventually(t, func() bool { return chatServer.UserCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Stop(t *testing.T) {
	srv, _ := startGateway(t)
	addr := srv.Addr()

	require.NoError(t, srv.Stop(context.Background()))

	_, _, err := websocket.DefaultDialer.Dial("ws://"+addr+ws.Path, nil)
	assert.Error(t, err)
}
