// Package protocol defines the wire messages exchanged between chat clients
// and the server. Every message is a single JSON document discriminated by
// its "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownType is returned when a document carries an unrecognized "type".
	ErrUnknownType = errors.New("unknown message type")
	// ErrMissingField is returned when a required field of a variant is absent.
	ErrMissingField = errors.New("missing required field")
)

// IntentType identifies a client to server message.
type IntentType string

const (
	IntentLogin       IntentType = "Login"
	IntentSendMessage IntentType = "SendMessage"
	IntentJoinRoom    IntentType = "JoinRoom"
	IntentLeaveRoom   IntentType = "LeaveRoom"
	IntentCreateRoom  IntentType = "CreateRoom"
	IntentListRooms   IntentType = "ListRooms"
	IntentListUsers   IntentType = "ListUsers"
)

// ClientIntent is a request sent by a client. Only the fields belonging to
// Type are meaningful.
type ClientIntent struct {
	Type     IntentType
	Username string
	Content  string
	RoomName string
}

// Login builds a Login intent.
func Login(username string) ClientIntent {
	return ClientIntent{Type: IntentLogin, Username: username}
}

// SendMessage builds a SendMessage intent.
func SendMessage(content string) ClientIntent {
	return ClientIntent{Type: IntentSendMessage, Content: content}
}

// JoinRoom builds a JoinRoom intent.
func JoinRoom(room string) ClientIntent {
	return ClientIntent{Type: IntentJoinRoom, RoomName: room}
}

// LeaveRoom builds a LeaveRoom intent.
func LeaveRoom(room string) ClientIntent {
	return ClientIntent{Type: IntentLeaveRoom, RoomName: room}
}

// CreateRoom builds a CreateRoom intent.
func CreateRoom(room string) ClientIntent {
	return ClientIntent{Type: IntentCreateRoom, RoomName: room}
}

// ListRooms builds a ListRooms intent.
func ListRooms() ClientIntent {
	return ClientIntent{Type: IntentListRooms}
}

// ListUsers builds a ListUsers intent.
func ListUsers() ClientIntent {
	return ClientIntent{Type: IntentListUsers}
}

type rawIntent struct {
	Type     IntentType `json:"type"`
	Username *string    `json:"username,omitempty"`
	Content  *string    `json:"content,omitempty"`
	RoomName *string    `json:"room_name,omitempty"`
}

// MarshalJSON encodes only the fields of the intent's variant.
func (c ClientIntent) MarshalJSON() ([]byte, error) {
	raw := rawIntent{Type: c.Type}
	switch c.Type {
	case IntentLogin:
		raw.Username = &c.Username
	case IntentSendMessage:
		raw.Content = &c.Content
	case IntentJoinRoom, IntentLeaveRoom, IntentCreateRoom:
		raw.RoomName = &c.RoomName
	case IntentListRooms, IntentListUsers:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes an intent and checks that its variant's fields are present.
func (c *ClientIntent) UnmarshalJSON(data []byte) error {
	var raw rawIntent
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var required **string
	switch raw.Type {
	case IntentLogin:
		required = &raw.Username
	case IntentSendMessage:
		required = &raw.Content
	case IntentJoinRoom, IntentLeaveRoom, IntentCreateRoom:
		required = &raw.RoomName
	case IntentListRooms, IntentListUsers:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}
	if required != nil && *required == nil {
		return fmt.Errorf("%w for %s", ErrMissingField, raw.Type)
	}
	*c = ClientIntent{
		Type:     raw.Type,
		Username: deref(raw.Username),
		Content:  deref(raw.Content),
		RoomName: deref(raw.RoomName),
	}
	return nil
}

// DecodeIntent parses one JSON document into a ClientIntent.
func DecodeIntent(data []byte) (ClientIntent, error) {
	var intent ClientIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return ClientIntent{}, fmt.Errorf("failed to decode intent: %w", err)
	}
	return intent, nil
}

// EncodeIntent serializes an intent into one JSON document.
func EncodeIntent(intent ClientIntent) ([]byte, error) {
	data, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode intent: %w", err)
	}
	return data, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TimestampLayout is the layout of NewMessage timestamps.
const TimestampLayout = time.RFC3339Nano
