package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/types"
)

// SessionStore holds the live sessions of one server, each isolated behind
// its own conversation.Session lock. Idle sessions are evicted when a new
// session is requested; there is no background sweeper.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[types.SessionID]*conversation.Session
	machine     *conversation.Machine
	maxSessions int
	idleTimeout time.Duration
	now         func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore(machine *conversation.Machine, maxSessions int, idleTimeout time.Duration) *SessionStore {
	return &SessionStore{
		sessions:    make(map[types.SessionID]*conversation.Session),
		machine:     machine,
		maxSessions: maxSessions,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create starts a new session.
func (s *SessionStore) Create() (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictIdleLocked()
	if len(s.sessions) >= s.maxSessions {
		return nil, fmt.Errorf("%w (max %d)", ErrTooManySessions, s.maxSessions)
	}

	id := types.NewSessionID()
	sess := conversation.NewSession(id, s.machine)
	s.sessions[id] = sess
	return sess, nil
}

// Get returns a live session.
func (s *SessionStore) Get(id types.SessionID) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete ends a session.
func (s *SessionStore) Delete(id types.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions idle longer than the timeout and returns how many.
func (s *SessionStore) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictIdleLocked()
}

func (s *SessionStore) evictIdleLocked() int {
	cutoff := s.now().Add(-s.idleTimeout)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
