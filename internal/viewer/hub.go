// Package viewer hosts one Session per open match view. A session owns the
// step store, navigation controller and mutation gateway of that view and is
// the only place where backend responses are turned into display models.
package viewer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"quardsview/internal/catalog"
	"quardsview/internal/navigation"
)

// Options tune sessions created by a hub.
type Options struct {
	// Timeout bounds the requests of one render.
	Timeout time.Duration
	// Period is the auto-play interval.
	Period time.Duration
	// IdleTTL is how long a session without watchers survives.
	IdleTTL time.Duration
	// CleanupInterval is how often idle sessions are swept.
	CleanupInterval time.Duration
	// NewTicker replaces the auto-play timer, for tests.
	NewTicker navigation.TickerFunc
}

// NewHub creates a new session hub with cleanup goroutine
func NewHub(be Backend, cat *catalog.Catalog, rec Recorder, opts Options) *Hub {
	if opts.Period <= 0 {
		opts.Period = navigation.Period
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	h := &Hub{
		Sessions: make(map[string]*Session),
		be:       be,
		catalog:  cat,
		rec:      rec,
		opts:     opts,
		stop:     make(chan struct{}),
	}
	go func() {
		t := time.NewTicker(opts.CleanupInterval)
		defer t.Stop()
		for {
			select {
			case <-h.stop:
				return
			case now := <-t.C:
				if n := h.Sweep(now); n > 0 {
					log.Printf("closed %d idle sessions", n)
				}
			}
		}
	}()
	return h
}

// Open creates a session viewing matchID. The session is registered even
// when loading fails, so the page can show the error.
func (h *Hub) Open(ctx context.Context, matchID string) (*Session, error) {
	s := newSession(uuid.NewString(), h.be, h.catalog, h.rec, h.opts)
	h.Mu.Lock()
	h.Sessions[s.ID] = s
	h.Mu.Unlock()

	err := s.Load(ctx, matchID)
	if err == nil && h.rec != nil {
		if rerr := h.rec.RecordView(ctx, matchID); rerr != nil {
			log.Printf("record view of %s: %v", matchID, rerr)
		}
	}
	log.Printf("session %s opened for %q", s.ID, matchID)
	return s, err
}

// Get retrieves an open session
func (h *Hub) Get(id string) (*Session, bool) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	s, ok := h.Sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return len(h.Sessions)
}

// Remove closes and forgets a session.
func (h *Hub) Remove(id string) bool {
	h.Mu.Lock()
	s, ok := h.Sessions[id]
	delete(h.Sessions, id)
	h.Mu.Unlock()
	if ok {
		s.Close()
		log.Printf("session %s closed", id)
	}
	return ok
}

// Sweep closes sessions that have had no watchers for longer than the idle
// TTL and returns how many were closed.
func (h *Hub) Sweep(now time.Time) int {
	var idle []*Session
	h.Mu.Lock()
	for id, s := range h.Sessions {
		s.Mu.Lock()
		expired := len(s.Watchers) == 0 && now.Sub(s.LastSeen) > h.opts.IdleTTL
		s.Mu.Unlock()
		if expired {
			delete(h.Sessions, id)
			idle = append(idle, s)
		}
	}
	h.Mu.Unlock()
	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Close stops the cleanup goroutine and closes every session.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.stop) })
	h.Mu.Lock()
	all := h.Sessions
	h.Sessions = make(map[string]*Session)
	h.Mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
