package chat

import (
	"sort"
	"sync"
	"time"
)

// HistoryCapacity is the number of messages a room retains.
const HistoryCapacity = 100

// Message is one entry of a room's history.
type Message struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Room holds the membership and bounded history of one named room.
type Room struct {
	name string

	mu      sync.RWMutex
	members map[string]string // user id -> username

	historyMu sync.RWMutex
	history   []Message
	capacity  int
}

// NewRoom creates an empty room.
func NewRoom(name string) *Room {
	return &Room{
		name:     name,
		members:  make(map[string]string),
		history:  make([]Message, 0, HistoryCapacity),
		capacity: HistoryCapacity,
	}
}

// Name returns the room name.
func (r *Room) Name() string {
	return r.name
}

// AddMember reports whether id was newly inserted. An existing member keeps
// its entry with the username updated.
func (r *Room) AddMember(id, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.members[id]
	r.members[id] = username
	return !exists
}

// RemoveMember removes id and returns the username it was registered with.
func (r *Room) RemoveMember(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username, ok := r.members[id]
	if ok {
		delete(r.members, id)
	}
	return username, ok
}

// HasMember reports whether id is a member.
func (r *Room) HasMember(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

// Members returns a sorted snapshot of member usernames.
func (r *Room) Members() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.members))
	for _, username := range r.members {
		names = append(names, username)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// MemberCount returns the number of members.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// AppendMessage adds msg to the history, evicting the oldest entry once the
// capacity is exceeded.
func (r *Room) AppendMessage(msg Message) {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	r.history = append(r.history, msg)
	if len(r.history) > r.capacity {
		copy(r.history, r.history[1:])
		r.history = r.history[:r.capacity]
	}
}

// History returns a copy of the last n messages, oldest first.
func (r *Room) History(n int) []Message {
	r.historyMu.RLock()
	defer r.historyMu.RUnlock()
	if n <= 0 {
		return []Message{}
	}
	if n > len(r.history) {
		n = len(r.history)
	}
	out := make([]Message, n)
	copy(out, r.history[len(r.history)-n:])
	return out
}

// Len returns the number of messages in the history.
func (r *Room) Len() int {
	r.historyMu.RLock()
	defer r.historyMu.RUnlock()
	return len(r.history)
}
