package models

import (
	"encoding/json"
	"sync"
	"time"
)

// Session roles
const (
	RoleTerminal   = "terminal"
	RoleDispatcher = "dispatcher"
)

// Session represents one live connection. It is created on connect and
// destroyed on disconnect; the registry is its exclusive owner. Send is the
// buffered channel drained by the connection's write pump.
type Session struct {
	SessionID   string    // unique connection id
	Identity    string    // terminal id or dispatcher id
	Role        string    // RoleTerminal or RoleDispatcher
	Room        string    // terminal room key; empty for dispatcher sessions
	ConnectedAt time.Time
	Send        chan []byte
}

// Event is the envelope broadcast to live connections
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// PresenceFunc is invoked when a terminal room gains its first member or
// loses its last one. Reported upward so the caller can persist the
// online/offline status; the registry itself never touches the database.
type PresenceFunc func(terminalID string, online bool)

// SessionRegistry tracks the set of live terminal and dispatcher connections.
// A room corresponds 1:1 with a terminal id; dispatcher sessions belong to
// the global dispatcher group instead. Only the registry mutates this state.
type SessionRegistry struct {
	rooms       map[string]map[*Session]bool // terminal id -> terminal sessions
	dispatchers map[*Session]bool            // global dispatcher group
	onPresence  PresenceFunc
	mu          sync.RWMutex
}

// NewSessionRegistry creates a new session registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		rooms:       make(map[string]map[*Session]bool),
		dispatchers: make(map[*Session]bool),
	}
}

// SetPresenceFunc registers the presence change callback. Must be called
// before the first Join.
func (r *SessionRegistry) SetPresenceFunc(fn PresenceFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPresence = fn
}

// Join registers a session. Terminal sessions join the room named by their
// terminal id; dispatcher sessions join the global dispatcher group. A
// session belongs to exactly one of the two, never both.
func (r *SessionRegistry) Join(session *Session) {
	var becameOnline bool
	var fn PresenceFunc

	r.mu.Lock()
	if session.Role == RoleDispatcher {
		r.dispatchers[session] = true
	} else {
		room := r.rooms[session.Room]
		if room == nil {
			room = make(map[*Session]bool)
			r.rooms[session.Room] = room
			becameOnline = true
		}
		room[session] = true
	}
	fn = r.onPresence
	r.mu.Unlock()

	// Presence side effect reported outside the lock: the callback persists
	// and must not run under the registry mutex.
	if becameOnline && fn != nil {
		fn(session.Room, true)
	}
}

// Leave removes a session. Idempotent; always invoked on disconnect
// regardless of cause.
func (r *SessionRegistry) Leave(session *Session) {
	var becameOffline bool
	var fn PresenceFunc

	r.mu.Lock()
	if session.Role == RoleDispatcher {
		delete(r.dispatchers, session)
	} else if room, ok := r.rooms[session.Room]; ok {
		if room[session] {
			delete(room, session)
			if len(room) == 0 {
				delete(r.rooms, session.Room)
				becameOffline = true
			}
		}
	}
	fn = r.onPresence
	r.mu.Unlock()

	if becameOffline && fn != nil {
		fn(session.Room, false)
	}
}

// Broadcast sends an event to every session in a terminal room. Broadcasting
// to a room with zero members is a no-op.
func (r *SessionRegistry) Broadcast(room, event string, payload interface{}) {
	message, err := json.Marshal(Event{Event: event, Payload: payload})
	if err != nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for session := range r.rooms[room] {
		select {
		case session.Send <- message:
		default:
			// Slow consumer; the write pump will notice the closed socket.
		}
	}
}

// BroadcastRole sends an event to every session of a role. For
// RoleDispatcher this is the global dispatcher group; for RoleTerminal it
// fans out to every terminal room.
func (r *SessionRegistry) BroadcastRole(role, event string, payload interface{}) {
	message, err := json.Marshal(Event{Event: event, Payload: payload})
	if err != nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if role == RoleDispatcher {
		for session := range r.dispatchers {
			select {
			case session.Send <- message:
			default:
			}
		}
		return
	}
	for _, room := range r.rooms {
		for session := range room {
			select {
			case session.Send <- message:
			default:
			}
		}
	}
}

// IsOnline reports whether a terminal room has at least one live session
func (r *SessionRegistry) IsOnline(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room]) > 0
}

// DispatcherCount returns the number of live dispatcher sessions
func (r *SessionRegistry) DispatcherCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.dispatchers)
}
