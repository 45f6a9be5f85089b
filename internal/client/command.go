package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omochice/roomchat/pkg/protocol"
)

// ErrQuit is returned by ParseCommand for /quit.
var ErrQuit = errors.New("quit")

// ParseCommand turns one line of user input into an intent. Lines that do
// not start with "/" are sent as messages.
func ParseCommand(line string) (protocol.ClientIntent, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return protocol.SendMessage(line), nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	needArg := func(build func(string) protocol.ClientIntent) (protocol.ClientIntent, error) {
		if arg == "" {
			return protocol.ClientIntent{}, fmt.Errorf("usage: %s <room>", cmd)
		}
		return build(arg), nil
	}

	switch cmd {
	case "/join":
		return needArg(protocol.JoinRoom)
	case "/create":
		return needArg(protocol.CreateRoom)
	case "/leave":
		return needArg(protocol.LeaveRoom)
	case "/rooms":
		return protocol.ListRooms(), nil
	case "/users":
		return protocol.ListUsers(), nil
	case "/quit", "/exit":
		return protocol.ClientIntent{}, ErrQuit
	default:
		return protocol.ClientIntent{}, fmt.Errorf("unknown command %s", cmd)
	}
}

// FormatEvent renders an event for a terminal.
func FormatEvent(event protocol.ServerEvent) string {
	switch event.Type {
	case protocol.EventWelcome:
		return fmt.Sprintf("*** logged in as %s ***", event.UserID)
	case protocol.EventUserJoined:
		return fmt.Sprintf("*** %s joined %s ***", event.Username, event.RoomName)
	case protocol.EventUserLeft:
		return fmt.Sprintf("*** %s left %s ***", event.Username, event.RoomName)
	case protocol.EventNewMessage:
		stamp := event.Timestamp
		if ts, err := event.Time(); err == nil {
			stamp = ts.Local().Format(time.TimeOnly)
		}
		return fmt.Sprintf("[%s] #%s <%s>: %s", stamp, event.RoomName, event.Sender, event.Content)
	case protocol.EventRoomCreated:
		return fmt.Sprintf("*** room %s created ***", event.RoomName)
	case protocol.EventJoinedRoom:
		return fmt.Sprintf("*** you are now in %s ***", event.RoomName)
	case protocol.EventLeftRoom:
		return fmt.Sprintf("*** you left %s ***", event.RoomName)
	case protocol.EventRoomList:
		return "rooms: " + strings.Join(event.Rooms, ", ")
	case protocol.EventUserList:
		return "users: " + strings.Join(event.Users, ", ")
	case protocol.EventError:
		return "error: " + event.Message
	default:
		return fmt.Sprintf("unknown event %s", event.Type)
	}
}
