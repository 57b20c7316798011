package models

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSession(role, identity string) *Session {
	room := ""
	if role == RoleTerminal {
		room = identity
	}
	return &Session{
		SessionID:   identity + "-session",
		Identity:    identity,
		Role:        role,
		Room:        room,
		ConnectedAt: time.Now(),
		Send:        make(chan []byte, 8),
	}
}

func drain(t *testing.T, s *Session) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case raw := <-s.Send:
			var ev Event
			require.NoError(t, json.Unmarshal(raw, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

// TestJoinLeavePresence checks that a terminal room reports online on first
// join and offline only when the last member leaves.
func TestJoinLeavePresence(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry()

	var mu sync.Mutex
	var changes []string
	registry.SetPresenceFunc(func(terminalID string, online bool) {
		mu.Lock()
		defer mu.Unlock()
		state := "offline"
		if online {
			state = "online"
		}
		changes = append(changes, terminalID+":"+state)
	})

	a := newTestSession(RoleTerminal, "RESQ001")
	b := newTestSession(RoleTerminal, "RESQ001")

	registry.Join(a)
	require.True(t, registry.IsOnline("RESQ001"))

	registry.Join(b)
	registry.Leave(a)
	require.True(t, registry.IsOnline("RESQ001"), "room still has a member")

	registry.Leave(b)
	require.False(t, registry.IsOnline("RESQ001"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"RESQ001:online", "RESQ001:offline"}, changes)
}

// TestLeaveIdempotent checks that repeated leaves are harmless.
func TestLeaveIdempotent(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry()
	s := newTestSession(RoleTerminal, "RESQ002")

	registry.Join(s)
	registry.Leave(s)
	registry.Leave(s)
	registry.Leave(s)

	require.False(t, registry.IsOnline("RESQ002"))
}

// TestBroadcastEmptyRoom checks that broadcasting to a room with no members
// is a no-op, not an error.
func TestBroadcastEmptyRoom(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry()
	registry.Broadcast("RESQ404", "alert:new", map[string]string{"id": "ALE001"})
}

// TestBroadcastRoomAndGroup checks targeted room delivery and the global
// dispatcher group.
func TestBroadcastRoomAndGroup(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry()

	terminal := newTestSession(RoleTerminal, "RESQ003")
	otherTerminal := newTestSession(RoleTerminal, "RESQ004")
	dispatcherA := newTestSession(RoleDispatcher, "DIS001")
	dispatcherB := newTestSession(RoleDispatcher, "DIS002")

	registry.Join(terminal)
	registry.Join(otherTerminal)
	registry.Join(dispatcherA)
	registry.Join(dispatcherB)
	require.Equal(t, 2, registry.DispatcherCount())

	registry.Broadcast("RESQ003", "alert:dispatched", map[string]string{"id": "ALE001"})

	require.Len(t, drain(t, terminal), 1)
	require.Empty(t, drain(t, otherTerminal))
	require.Empty(t, drain(t, dispatcherA))

	registry.BroadcastRole(RoleDispatcher, "alert:new", map[string]string{"id": "ALE002"})

	eventsA := drain(t, dispatcherA)
	eventsB := drain(t, dispatcherB)
	require.Len(t, eventsA, 1)
	require.Len(t, eventsB, 1)
	require.Equal(t, "alert:new", eventsA[0].Event)
	require.Empty(t, drain(t, terminal))
}

// TestReconnectReceivesExactlyOnce checks that a disconnect followed by
// reconnect restores room membership: a broadcast sent after the reconnect
// is received exactly once.
func TestReconnectReceivesExactlyOnce(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry()

	first := newTestSession(RoleTerminal, "RESQ005")
	registry.Join(first)
	registry.Leave(first)

	second := newTestSession(RoleTerminal, "RESQ005")
	registry.Join(second)

	registry.Broadcast("RESQ005", "alert:dispatched", map[string]string{"id": "ALE009"})

	require.Empty(t, drain(t, first), "stale session must not receive")
	require.Len(t, drain(t, second), 1)
}

// TestConcurrentJoinLeave hammers the registry from many goroutines to catch
// races under the -race detector.
func TestConcurrentJoinLeave(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry()
	registry.SetPresenceFunc(func(string, bool) {})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newTestSession(RoleTerminal, "RESQ100")
			registry.Join(s)
			registry.Broadcast("RESQ100", "ping", nil)
			registry.Leave(s)
		}()
	}
	wg.Wait()

	require.False(t, registry.IsOnline("RESQ100"))
}
