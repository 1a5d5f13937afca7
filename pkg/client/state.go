// client/state.go
package client

import (
	"fmt"
	"sync"
)

// State is one step in a session's life on the Grapevine network.
type State int

const (
	// StateDisconnected is where every session starts.
	StateDisconnected State = iota
	// StateConnected means the websocket is up but nothing has been proven.
	StateConnected
	// StateAuthenticating means the credentials are on the wire. A rejected
	// session parks here for good.
	StateAuthenticating
	// StateAuthenticated means the service accepted the credentials.
	StateAuthenticated
	// StateClosed is terminal and reachable from anywhere.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// session holds the connection's state and only ever moves it forward.
// There is no way back to an earlier state; a session that wants to start
// over is a new session.
type session struct {
	mu    sync.Mutex
	state State
}

func (s *session) current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) is(st State) bool {
	return s.current() == st
}

// advance moves the session to the next state. The only legal moves are one
// step forward or to StateClosed; moving to StateClosed always succeeds and
// is idempotent.
func (s *session) advance(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if to == StateClosed {
		s.state = StateClosed
		return nil
	}
	if s.state == StateClosed {
		return fmt.Errorf("session is closed, cannot move to %s", to)
	}
	if to != s.state+1 {
		return fmt.Errorf("cannot move from %s to %s", s.state, to)
	}
	s.state = to
	return nil
}
