package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solatis/rulesmith/internal/types"
)

// Session owns one conversation's State and serializes its turns.
// A turn holds the lock for the whole model call; a second Send waits.
type Session struct {
	mu      sync.Mutex
	machine *Machine
	id      types.SessionID
	state   State

	// unix nanoseconds; readable without waiting for an in-flight turn
	lastActive atomic.Int64
}

// NewSession creates a session in the initial state.
func NewSession(id types.SessionID, machine *Machine) *Session {
	s := &Session{
		machine: machine,
		id:      id,
		state:   NewState(id),
	}
	s.touch()
	return s
}

// ID returns the session id.
func (s *Session) ID() types.SessionID {
	return s.id
}

// Send handles one user message and returns the resulting state.
// Activity is stamped on entry and on completion.
func (s *Session) Send(ctx context.Context, text string) (State, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.touch()

	next, err := s.machine.Handle(ctx, s.state, text)
	if err != nil {
		return s.state.clone(), err
	}
	s.state = next
	return s.state.clone(), nil
}

// Reset starts a new rule.
func (s *Session) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.touch()

	s.state = s.machine.Reset(s.state)
	return s.state.clone()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// LastActive returns when the session last saw a message or reset.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(s.machine.now().UnixNano())
}
