package viewer

import (
	"testing"
	"time"
)

func TestSessionPersistenceBeforeCleanup(t *testing.T) {
	h, _, _ := newTestHub(t, Options{IdleTTL: time.Hour})
	s := openSession(t, h)

	// Simulate a session that was last seen 59 minutes ago.
	s.Mu.Lock()
	s.LastSeen = time.Now().Add(-59 * time.Minute)
	s.Mu.Unlock()

	if n := h.Sweep(time.Now()); n != 0 {
		t.Fatalf("session removed before the idle TTL")
	}
	if _, ok := h.Get(s.ID); !ok {
		t.Fatalf("session missing after sweep")
	}

	// Simulate a session that was last seen 61 minutes ago.
	s.Mu.Lock()
	s.LastSeen = time.Now().Add(-61 * time.Minute)
	s.Mu.Unlock()

	if n := h.Sweep(time.Now()); n != 1 {
		t.Fatalf("session not removed after the idle TTL")
	}
	if _, ok := h.Get(s.ID); ok {
		t.Fatalf("idle session still registered")
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("swept session should be closed")
	}
}

func TestWatchedSessionSurvivesCleanup(t *testing.T) {
	h, _, _ := newTestHub(t, Options{IdleTTL: time.Minute})
	s := openSession(t, h)
	ch := make(chan []byte, 1)
	s.AddWatcher(ch)

	if n := h.Sweep(time.Now().Add(time.Hour)); n != 0 {
		t.Fatalf("watched session was swept")
	}
	s.RemoveWatcher(ch)
	if n := h.Sweep(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("unwatched session should be swept")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	h, _, _ := newTestHub(t, Options{})
	a := openSession(t, h)
	b := openSession(t, h)
	if a.ID == b.ID {
		t.Fatalf("session ids must be unique")
	}
	if h.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", h.Len())
	}
	a.store.MoveTo(0)
	if b.store.Cursor() != 3 {
		t.Fatalf("moving one session moved another")
	}
	if !h.Remove(a.ID) || h.Remove(a.ID) {
		t.Fatalf("remove should succeed exactly once")
	}
	h.Close()
	if h.Len() != 0 {
		t.Fatalf("close should drop all sessions")
	}
	select {
	case <-b.Done():
	default:
		t.Fatalf("close should close sessions")
	}
}
