package api

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSessionStore(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	machine := newTestMachine(t, creditScoreRule)
	conversation.WithClock(clock.Now)(machine)

	store := NewSessionStore(machine, 2, 10*time.Minute)
	store.now = clock.Now

	a, err := store.Create()
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	clock.Advance(6 * time.Minute)
	b, err := store.Create()
	if err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}
	if _, err := store.Create(); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("Create() at cap error = %v, want ErrTooManySessions", err)
	}

	got, err := store.Get(a.ID())
	if err != nil || got != a {
		t.Fatalf("Get(a) = %v, %v, want session a", got, err)
	}

	// a idles past the timeout; creating evicts it and frees a slot.
	clock.Advance(5 * time.Minute)
	c, err := store.Create()
	if err != nil {
		t.Fatalf("Create() after idle error = %v, want nil", err)
	}
	if _, err := store.Get(a.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(evicted) error = %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}

	if err := store.Delete(b.ID()); err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}
	if err := store.Delete(b.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrSessionNotFound", err)
	}

	clock.Advance(11 * time.Minute)
	if n := store.EvictIdle(); n != 1 {
		t.Errorf("EvictIdle() = %d, want 1", n)
	}
	if _, err := store.Get(c.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(c) error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_UnknownID(t *testing.T) {
	store := NewSessionStore(newTestMachine(t, creditScoreRule), 1, time.Minute)
	if _, err := store.Get(types.NewSessionID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}
