package tcp_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/internal/transport/tcp"
	"github.com/omochice/roomchat/pkg/protocol"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*tcp.Conn)(nil)
}

func TestConn_Read(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		server.Write([]byte("{\"type\":\"ListRooms\"}\n{\"type\":"))
		server.Write([]byte("\"ListUsers\"}\r\n"))
		server.Close()
	}()

	data, err := conn.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ListRooms"}`, string(data))

	data, err = conn.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ListUsers"}`, string(data))

	_, err = conn.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_ReadSkipsOversizedLine(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		server.Write([]byte(strings.Repeat("x", protocol.MaxLineSize+1) + "\n"))
		server.Write([]byte("{\"type\":\"ListUsers\"}\n"))
		server.Close()
	}()

	data, err := conn.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ListUsers"}`, string(data))

	_, err = conn.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_Write(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		if err := conn.Write(context.Background(), []byte(`{"type":"Welcome","user_id":"1"}`)); err != nil {
			t.Errorf("Write() error = %v", err)
		}
	}()

	line, err := bufio.NewReader(server).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "{\"type\":\"Welcome\",\"user_id\":\"1\"}\n", line)
}

func TestConn_Close(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	conn := tcp.NewConn(client)

	require.NoError(t, conn.Close())

	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestConn_RemoteAddr(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	assert.NotEmpty(t, conn.RemoteAddr())
}
