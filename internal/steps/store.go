// Package steps holds the navigable sequence of player-choice steps of one
// match and the user's cursor within it.
package steps

import (
	"context"
	"errors"
	"sync"

	"quardsview/internal/backend"
	"quardsview/internal/logging"
	"quardsview/internal/match"
)

// Navigator fetches the classified raw log of a match.
type Navigator interface {
	Navigation(ctx context.Context, matchID string) ([]match.Step, error)
}

// ErrNoMatch is returned by Load when no match id is given.
var ErrNoMatch = errors.New("no match specified")

// Store owns the step sequence and cursor. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	nav     Navigator
	matchID string
	raw     []match.Step
	steps   []match.Step
	cursor  int
	version uint64
}

// Position is a consistent read of the store, taken under one lock.
type Position struct {
	MatchID string
	Version uint64
	Cursor  int
	Length  int
	Live    bool
	Step    match.Step
	// Next is the step after the cursor, nil at the live edge.
	Next *match.Step
	// Steps is the sequence from the first step through the cursor.
	Steps []match.Step
}

// NewStore creates an empty store backed by nav.
func NewStore(nav Navigator) *Store {
	return &Store{nav: nav}
}

// Build filters raw to player-choice steps and numbers them for state queries.
// A non-empty raw log without choices yields its last entry as the only step.
func Build(raw []match.Step) []match.Step {
	out := make([]match.Step, 0, len(raw))
	for _, st := range raw {
		if st.IsPlayerChoice {
			st.OriginalStepNumber = st.Index + 1
			out = append(out, st)
		}
	}
	if len(out) == 0 && len(raw) > 0 {
		last := raw[len(raw)-1]
		last.OriginalStepNumber = last.Index + 1
		out = append(out, last)
	}
	return out
}

// Load fetches the match log and resets the cursor to the live edge. On
// failure the store is emptied.
func (s *Store) Load(ctx context.Context, matchID string) error {
	if matchID == "" {
		s.reset("")
		return backend.Wrap(backend.KindLoad, "load steps", ErrNoMatch)
	}
	raw, err := s.nav.Navigation(ctx, matchID)
	if err != nil {
		s.reset(matchID)
		return backend.Wrap(backend.KindLoad, "load steps", err)
	}
	seq := Build(raw)

	s.mu.Lock()
	s.matchID = matchID
	s.raw = raw
	s.steps = seq
	s.cursor = max(len(seq)-1, 0)
	s.version++
	s.mu.Unlock()

	logging.Debugf("loaded %d choice steps (%d raw) for %s", len(seq), len(raw), matchID)
	return nil
}

func (s *Store) reset(matchID string) {
	s.mu.Lock()
	s.matchID = matchID
	s.raw = nil
	s.steps = nil
	s.cursor = 0
	s.version++
	s.mu.Unlock()
}

// MatchID returns the loaded match id.
func (s *Store) MatchID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchID
}

// Len returns the number of navigable steps.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.steps)
}

// Cursor returns the current index.
func (s *Store) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// IsLiveEdge reports whether the cursor is on the most recent step.
func (s *Store) IsLiveEdge() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.steps) > 0 && s.cursor == len(s.steps)-1
}

// MoveTo clamps index into range and moves the cursor there. It reports
// whether the cursor changed.
func (s *Store) MoveTo(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return false
	}
	index = min(max(index, 0), len(s.steps)-1)
	if index == s.cursor {
		return false
	}
	s.cursor = index
	return true
}

// Advance moves one step forward; false at the live edge.
func (s *Store) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.steps)-1 {
		return false
	}
	s.cursor++
	return true
}

// Back moves one step backward; false at the first step.
func (s *Store) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor <= 0 || len(s.steps) == 0 {
		return false
	}
	s.cursor--
	return true
}

// StepNumberForQuery returns the 1-based raw log position of the step at the
// cursor, or 0 when empty.
func (s *Store) StepNumberForQuery() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.steps) == 0 {
		return 0
	}
	return s.steps[s.cursor].OriginalStepNumber
}

// EntriesThroughCursor returns the raw log entries up to and including the
// step at the cursor.
func (s *Store) EntriesThroughCursor() []match.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.steps) == 0 {
		return nil
	}
	n := min(s.steps[s.cursor].OriginalStepNumber, len(s.raw))
	out := make([]match.LogEntry, 0, n)
	for _, st := range s.raw[:n] {
		out = append(out, st.LogEntry)
	}
	return out
}

// Position returns a snapshot of the cursor and its surroundings. ok is false
// when the sequence is empty.
func (s *Store) Position() (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := Position{MatchID: s.matchID, Version: s.version, Length: len(s.steps)}
	if len(s.steps) == 0 {
		return p, false
	}
	p.Cursor = s.cursor
	p.Live = s.cursor == len(s.steps)-1
	p.Step = s.steps[s.cursor]
	if !p.Live {
		next := s.steps[s.cursor+1]
		p.Next = &next
	}
	p.Steps = append([]match.Step(nil), s.steps[:s.cursor+1]...)
	return p, true
}

// Current reports whether tag still names the step under the cursor.
func (s *Store) Current(version uint64, cursor int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version == version && s.cursor == cursor
}
