package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a server to client message.
type EventType string

const (
	EventWelcome     EventType = "Welcome"
	EventUserJoined  EventType = "UserJoined"
	EventUserLeft    EventType = "UserLeft"
	EventNewMessage  EventType = "NewMessage"
	EventRoomCreated EventType = "RoomCreated"
	EventJoinedRoom  EventType = "JoinedRoom"
	EventLeftRoom    EventType = "LeftRoom"
	EventRoomList    EventType = "RoomList"
	EventUserList    EventType = "UserList"
	EventError       EventType = "Error"
)

// ServerEvent is a notification sent by the server. Only the fields
// belonging to Type are meaningful.
type ServerEvent struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Content   string    `json:"content,omitempty"`
	RoomName  string    `json:"room_name,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Rooms     []string  `json:"rooms,omitempty"`
	Users     []string  `json:"users,omitempty"`
	Message   string    `json:"message,omitempty"`
}

func Welcome(userID string) ServerEvent {
	return ServerEvent{Type: EventWelcome, UserID: userID}
}

func UserJoined(username, room string) ServerEvent {
	return ServerEvent{Type: EventUserJoined, Username: username, RoomName: room}
}

func UserLeft(username, room string) ServerEvent {
	return ServerEvent{Type: EventUserLeft, Username: username, RoomName: room}
}

// NewMessage builds a NewMessage event stamped with ts in UTC.
func NewMessage(sender, content, room string, ts time.Time) ServerEvent {
	return ServerEvent{
		Type:      EventNewMessage,
		Sender:    sender,
		Content:   content,
		RoomName:  room,
		Timestamp: ts.UTC().Format(TimestampLayout),
	}
}

func RoomCreated(room string) ServerEvent {
	return ServerEvent{Type: EventRoomCreated, RoomName: room}
}

func JoinedRoom(room string) ServerEvent {
	return ServerEvent{Type: EventJoinedRoom, RoomName: room}
}

func LeftRoom(room string) ServerEvent {
	return ServerEvent{Type: EventLeftRoom, RoomName: room}
}

func RoomList(rooms []string) ServerEvent {
	return ServerEvent{Type: EventRoomList, Rooms: rooms}
}

func UserList(users []string) ServerEvent {
	return ServerEvent{Type: EventUserList, Users: users}
}

func Error(message string) ServerEvent {
	return ServerEvent{Type: EventError, Message: message}
}

// MarshalJSON writes exactly the fields of the event's variant, so that
// empty strings and empty lists still appear on the wire.
func (e ServerEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventWelcome:
		return json.Marshal(struct {
			Type   EventType `json:"type"`
			UserID string    `json:"user_id"`
		}{e.Type, e.UserID})
	case EventUserJoined, EventUserLeft:
		return json.Marshal(struct {
			Type     EventType `json:"type"`
			Username string    `json:"username"`
			RoomName string    `json:"room_name"`
		}{e.Type, e.Username, e.RoomName})
	case EventNewMessage:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			Sender    string    `json:"sender"`
			Content   string    `json:"content"`
			RoomName  string    `json:"room_name"`
			Timestamp string    `json:"timestamp"`
		}{e.Type, e.Sender, e.Content, e.RoomName, e.Timestamp})
	case EventRoomCreated, EventJoinedRoom, EventLeftRoom:
		return json.Marshal(struct {
			Type     EventType `json:"type"`
			RoomName string    `json:"room_name"`
		}{e.Type, e.RoomName})
	case EventRoomList:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Rooms []string  `json:"rooms"`
		}{e.Type, nonNil(e.Rooms)})
	case EventUserList:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Users []string  `json:"users"`
		}{e.Type, nonNil(e.Users)})
	case EventError:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}

// UnmarshalJSON decodes any server event variant.
func (e *ServerEvent) UnmarshalJSON(data []byte) error {
	type plain ServerEvent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch p.Type {
	case EventWelcome, EventUserJoined, EventUserLeft, EventNewMessage,
		EventRoomCreated, EventJoinedRoom, EventLeftRoom, EventRoomList,
		EventUserList, EventError:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, p.Type)
	}
	*e = ServerEvent(p)
	return nil
}

// EncodeEvent serializes an event into one JSON document.
func EncodeEvent(e ServerEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses one JSON document into a ServerEvent.
func DecodeEvent(data []byte) (ServerEvent, error) {
	var e ServerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ServerEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}

// Time parses the timestamp of a NewMessage event.
func (e ServerEvent) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, e.Timestamp)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
