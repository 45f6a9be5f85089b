package client_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/internal/client"
	"github.com/omochice/roomchat/pkg/protocol"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want protocol.ClientIntent
	}{
		{"hello there", protocol.SendMessage("hello there")},
		{"  padded  ", protocol.SendMessage("padded")},
		{"/join go", protocol.JoinRoom("go")},
		{"/create  rust ", protocol.CreateRoom("rust")},
		{"/leave general", protocol.LeaveRoom("general")},
		{"/rooms", protocol.ListRooms()},
		{"/users", protocol.ListUsers()},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := client.ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	_, err := client.ParseCommand("/quit")
	assert.ErrorIs(t, err, client.ErrQuit)

	_, err = client.ParseCommand("/join")
	assert.EqualError(t, err, "usage: /join <room>")

	_, err = client.ParseCommand("/dance")
	assert.Error(t, err)
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := client.FormatEvent(protocol.NewMessage("alice", "hi", "general", ts))
	assert.Contains(t, msg, "#general <alice>: hi")

	assert.Equal(t, "*** bob joined go ***", client.FormatEvent(protocol.UserJoined("bob", "go")))
	assert.Equal(t, "rooms: general, go", client.FormatEvent(protocol.RoomList([]string{"general", "go"})))
	assert.Equal(t, "error: Room not found", client.FormatEvent(protocol.Error("Room not found")))
}
