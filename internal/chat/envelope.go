package chat

import "github.com/omochice/roomchat/pkg/protocol"

// Envelope is an event plus its addressing. At most one of TargetUser and
// TargetRoom is set; when neither is set the event is for everyone.
type Envelope struct {
	Event      protocol.ServerEvent
	TargetUser string
	TargetRoom string
}

// ToUser addresses event to a single user.
func ToUser(userID string, event protocol.ServerEvent) Envelope {
	return Envelope{Event: event, TargetUser: userID}
}

// ToRoom addresses event to the current members of a room.
func ToRoom(room string, event protocol.ServerEvent) Envelope {
	return Envelope{Event: event, TargetRoom: room}
}

// ToEveryone addresses event to every subscriber.
func ToEveryone(event protocol.ServerEvent) Envelope {
	return Envelope{Event: event}
}

// Matches reports whether a recipient identified by userID, currently in
// room (empty when in no room), should receive the envelope.
func (e Envelope) Matches(userID, room string) bool {
	switch {
	case e.TargetUser != "":
		return e.TargetUser == userID
	case e.TargetRoom != "":
		return room != "" && e.TargetRoom == room
	default:
		return true
	}
}
