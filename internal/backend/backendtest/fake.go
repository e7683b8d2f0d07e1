// Package backendtest provides an in-memory match server for tests.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"quardsview/internal/match"
)

// ErrUnknownMatch is returned for match ids the fake does not hold.
var ErrUnknownMatch = errors.New("failed to load game")

var choices = map[string]bool{
	string(match.InkCard):   true,
	string(match.PlayCard):  true,
	string(match.Quest):     true,
	string(match.Challenge): true,
	string(match.Pass):      true,
}

// Fake holds match logs in memory and classifies player choices the way the
// real server does.
type Fake struct {
	mu      sync.Mutex
	logs    map[string][]match.LogEntry
	actions func(matchID string, step int) []match.Action
	errs    map[string]error
	// BeforeState runs before each State call returns, outside the lock.
	BeforeState func(matchID string, step int)
	Created     []match.NewGame
	Executed    []match.Action
}

// New creates an empty fake.
func New() *Fake {
	return &Fake{logs: make(map[string][]match.LogEntry), errs: make(map[string]error)}
}

// SetLog stores a match log.
func (f *Fake) SetLog(matchID string, entries []match.LogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[matchID] = append([]match.LogEntry(nil), entries...)
}

// Log returns a copy of a match log.
func (f *Fake) Log(matchID string) []match.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]match.LogEntry(nil), f.logs[matchID]...)
}

// SetActions installs the legal-action generator.
func (f *Fake) SetActions(fn func(matchID string, step int) []match.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = fn
}

// FailOn makes op ("navigation", "state", "actions", "history", "execute",
// "truncate", "create") return err; nil clears it.
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *Fake) fail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

func (f *Fake) Navigation(ctx context.Context, matchID string) ([]match.Step, error) {
	if err := f.fail("navigation"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.logs[matchID]
	if !ok {
		return nil, ErrUnknownMatch
	}
	out := make([]match.Step, len(log))
	for i, e := range log {
		out[i] = match.Step{LogEntry: e, Index: i, IsPlayerChoice: choices[e.Action]}
	}
	return out, nil
}

// State returns a snapshot whose player 1 deck count equals step, so tests
// can tell which step a snapshot belongs to.
func (f *Fake) State(ctx context.Context, matchID string, step int) (*match.GameSnapshot, error) {
	if hook := f.BeforeState; hook != nil {
		hook(matchID, step)
	}
	if err := f.fail("state"); err != nil {
		return nil, err
	}
	return &match.GameSnapshot{
		Zones:       match.Zones{Player1: match.PlayerZones{Deck: step}},
		PlayerStats: match.Stats{Player1: match.PlayerStats{Lore: step}},
	}, nil
}

func (f *Fake) Actions(ctx context.Context, matchID string, step int) ([]match.Action, error) {
	if err := f.fail("actions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	fn := f.actions
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(matchID, step), nil
}

func (f *Fake) History(ctx context.Context, matchID string) ([]match.HistoryEntry, error) {
	if err := f.fail("history"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []match.HistoryEntry
	for i, e := range f.logs[matchID] {
		out = append(out, match.HistoryEntry{
			Step:        i,
			Player:      e.Player,
			Event:       e.Action,
			Description: fmt.Sprintf("Player %d %s", e.Player, e.Action),
		})
	}
	return out, nil
}

func (f *Fake) Execute(ctx context.Context, matchID string, a match.Action) error {
	if err := f.fail("execute"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	log, ok := f.logs[matchID]
	if !ok {
		return ErrUnknownMatch
	}
	player := 1
	if n := len(log); n > 0 {
		player = log[n-1].Player
	}
	f.logs[matchID] = append(log, match.LogEntry{Player: player, Action: string(a.Type), Parameters: a.Parameters})
	f.Executed = append(f.Executed, a)
	return nil
}

func (f *Fake) Truncate(ctx context.Context, matchID, logText string) error {
	if err := f.fail("truncate"); err != nil {
		return err
	}
	entries, err := match.DecodeLog(logText)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.logs[matchID]; !ok {
		return ErrUnknownMatch
	}
	f.logs[matchID] = entries
	return nil
}

func (f *Fake) CreateGame(ctx context.Context, g match.NewGame) (*match.GameSummary, error) {
	if err := f.fail("create"); err != nil {
		return nil, err
	}
	entries, err := match.DecodeLog(g.LogContent)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[g.Name] = entries
	f.Created = append(f.Created, g)
	return &match.GameSummary{ID: len(f.Created), Name: g.Name, Player1Deck: g.Player1Deck, Player2Deck: g.Player2Deck}, nil
}
