package chat

import (
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omochice/roomchat/pkg/protocol"
)

// GeneralRoom is created with the server and never removed.
const GeneralRoom = "general"

// Error messages sent to the requester.
const (
	MsgRoomExists   = "Room already exists"
	MsgRoomNotFound = "Room not found"
	MsgNotInRoom    = "Not in room"
	MsgInvalidName  = "Invalid room name"
)

// User is a logged in identity.
type User struct {
	ID          string
	Username    string
	CurrentRoom string // empty when the user is in no room
}

// Server owns the room table and the user table. Every operation that
// touches both locks rooms before users.
type Server struct {
	roomsMu sync.RWMutex
	rooms   map[string]*Room

	usersMu sync.RWMutex
	users   map[string]*User

	router *Router
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithIDGenerator overrides the user id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Server) {
		s.newID = newID
	}
}

// WithBroadcastCapacity sets how many envelopes the router retains.
func WithBroadcastCapacity(capacity int) Option {
	return func(s *Server) {
		s.router = NewRouter(capacity)
	}
}

// NewServer creates a server holding only the general room.
func NewServer(opts ...Option) *Server {
	s := &Server{
		rooms:  map[string]*Room{GeneralRoom: NewRoom(GeneralRoom)},
		users:  make(map[string]*User),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		s.router = NewRouter(DefaultBroadcastCapacity)
	}
	return s
}

// Subscribe returns a new subscription to the server's broadcast.
func (s *Server) Subscribe() *Subscription {
	return s.router.Subscribe()
}

// Login registers a new user in the general room. The returned Welcome is
// meant for the caller only and is not published.
func (s *Server) Login(username string) (string, protocol.ServerEvent) {
	id := s.newID()

	s.roomsMu.RLock()
	general := s.rooms[GeneralRoom]
	s.roomsMu.RUnlock()

	s.usersMu.Lock()
	s.users[id] = &User{ID: id, Username: username, CurrentRoom: GeneralRoom}
	general.AddMember(id, username)
	s.usersMu.Unlock()

	s.logger.Info("user logged in", "user_id", id, "username", username)
	s.router.Publish(ToRoom(GeneralRoom, protocol.UserJoined(username, GeneralRoom)))

	return id, protocol.Welcome(id)
}

// HandleIntent applies intent on behalf of userID. Intents from unknown
// users and Login intents are ignored.
func (s *Server) HandleIntent(userID string, intent protocol.ClientIntent) {
	switch intent.Type {
	case protocol.IntentSendMessage:
		s.sendMessage(userID, intent.Content)
	case protocol.IntentCreateRoom:
		s.createRoom(userID, intent.RoomName)
	case protocol.IntentJoinRoom:
		s.joinRoom(userID, intent.RoomName)
	case protocol.IntentLeaveRoom:
		s.leaveRoom(userID, intent.RoomName)
	case protocol.IntentListRooms:
		s.listRooms(userID)
	case protocol.IntentListUsers:
		s.listUsers(userID)
	}
}

// Disconnect removes the user. Calling it again for the same id does nothing.
func (s *Server) Disconnect(userID string) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	s.usersMu.Lock()
	user, ok := s.users[userID]
	if !ok {
		s.usersMu.Unlock()
		return
	}
	delete(s.users, userID)
	s.usersMu.Unlock()

	s.logger.Info("user disconnected", "user_id", userID, "username", user.Username)

	if user.CurrentRoom == "" {
		return
	}
	room, ok := s.rooms[user.CurrentRoom]
	if !ok {
		return
	}
	if _, removed := room.RemoveMember(userID); removed {
		s.router.Publish(ToRoom(room.Name(), protocol.UserLeft(user.Username, room.Name())))
	}
}

// CurrentRoom returns the room the user is in.
func (s *Server) CurrentRoom(userID string) (string, bool) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	user, ok := s.users[userID]
	if !ok || user.CurrentRoom == "" {
		return "", false
	}
	return user.CurrentRoom, true
}

// UserCount returns the number of logged in users.
func (s *Server) UserCount() int {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	return len(s.users)
}

// Room looks up a room by name.
func (s *Server) Room(name string) (*Room, bool) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()
	room, ok := s.rooms[name]
	return room, ok
}

// RoomNames returns the sorted names of all rooms.
func (s *Server) RoomNames() []string {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) sendMessage(userID, content string) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	s.usersMu.RLock()
	user, ok := s.users[userID]
	var username, roomName string
	if ok {
		username, roomName = user.Username, user.CurrentRoom
	}
	s.usersMu.RUnlock()
	if roomName == "" {
		return
	}
	room, ok := s.rooms[roomName]
	if !ok {
		return
	}

	msg := Message{Sender: username, Content: content, Timestamp: s.now()}
	room.AppendMessage(msg)
	s.router.Publish(ToRoom(roomName, protocol.NewMessage(username, content, roomName, msg.Timestamp)))
}

func (s *Server) createRoom(userID, name string) {
	if !s.exists(userID) {
		return
	}
	// the empty name means "no room" in User.CurrentRoom and Envelope
	if name == "" {
		s.router.Publish(ToUser(userID, protocol.Error(MsgInvalidName)))
		return
	}

	s.roomsMu.Lock()
	if _, ok := s.rooms[name]; ok {
		s.roomsMu.Unlock()
		s.router.Publish(ToUser(userID, protocol.Error(MsgRoomExists)))
		return
	}
	s.rooms[name] = NewRoom(name)
	s.roomsMu.Unlock()

	s.logger.Info("room created", "user_id", userID, "room", name)
	s.router.Publish(ToUser(userID, protocol.RoomCreated(name)))
}

func (s *Server) joinRoom(userID, name string) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	target, ok := s.rooms[name]
	if !ok || name == "" {
		if s.exists(userID) {
			s.router.Publish(ToUser(userID, protocol.Error(MsgRoomNotFound)))
		}
		return
	}

	s.usersMu.Lock()
	user, ok := s.users[userID]
	if !ok {
		s.usersMu.Unlock()
		return
	}
	var left *Room
	if old, ok := s.rooms[user.CurrentRoom]; ok && user.CurrentRoom != "" {
		if _, removed := old.RemoveMember(userID); removed {
			left = old
		}
	}
	target.AddMember(userID, user.Username)
	user.CurrentRoom = name
	username := user.Username
	s.usersMu.Unlock()

	if left != nil {
		s.router.Publish(ToRoom(left.Name(), protocol.UserLeft(username, left.Name())))
	}
	s.router.Publish(ToRoom(name, protocol.UserJoined(username, name)))
	s.router.Publish(ToUser(userID, protocol.JoinedRoom(name)))
}

func (s *Server) leaveRoom(userID, name string) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	s.usersMu.Lock()
	user, ok := s.users[userID]
	if !ok {
		s.usersMu.Unlock()
		return
	}
	room, inRoom := s.rooms[user.CurrentRoom]
	if user.CurrentRoom == "" || user.CurrentRoom != name || !inRoom {
		s.usersMu.Unlock()
		s.router.Publish(ToUser(userID, protocol.Error(MsgNotInRoom)))
		return
	}
	_, removed := room.RemoveMember(userID)
	user.CurrentRoom = ""
	username := user.Username
	s.usersMu.Unlock()

	if removed {
		s.router.Publish(ToRoom(name, protocol.UserLeft(username, name)))
	}
	s.router.Publish(ToUser(userID, protocol.LeftRoom(name)))
}

func (s *Server) listRooms(userID string) {
	if !s.exists(userID) {
		return
	}
	s.router.Publish(ToUser(userID, protocol.RoomList(s.RoomNames())))
}

func (s *Server) listUsers(userID string) {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()

	roomName, ok := s.CurrentRoom(userID)
	if !ok {
		return
	}
	room, ok := s.rooms[roomName]
	if !ok {
		return
	}
	s.router.Publish(ToUser(userID, protocol.UserList(room.Members())))
}

func (s *Server) exists(userID string) bool {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	_, ok := s.users[userID]
	return ok
}
