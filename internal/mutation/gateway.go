// Package mutation writes to a match log: extending it with a new action,
// truncating it at the cursor, or forking it into a new match.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quardsview/internal/backend"
	"quardsview/internal/match"
)

// Backend is the write side of the match server.
type Backend interface {
	Execute(ctx context.Context, matchID string, a match.Action) error
	Truncate(ctx context.Context, matchID, logText string) error
	CreateGame(ctx context.Context, g match.NewGame) (*match.GameSummary, error)
}

// Source is the step store the gateway serializes from and reloads.
type Source interface {
	MatchID() string
	EntriesThroughCursor() []match.LogEntry
	Load(ctx context.Context, matchID string) error
}

// ErrNotConfirmed is returned when a truncate lacks explicit confirmation.
var ErrNotConfirmed = errors.New("truncate requires confirmation")

// ErrNoSteps is returned when there is nothing to truncate or fork.
var ErrNoSteps = errors.New("no steps loaded")

// unknownDeck lets the server extract decks from the forked log.
const unknownDeck = "unknown"

// Gateway submits mutations and keeps the source in sync with the server.
type Gateway struct {
	be  Backend
	src Source
	now func() time.Time
}

// NewGateway creates a gateway.
func NewGateway(be Backend, src Source) *Gateway {
	return &Gateway{be: be, src: src, now: time.Now}
}

// Execute submits a valid action and reloads the whole sequence. Invalid
// actions are refused without contacting the server.
func (g *Gateway) Execute(ctx context.Context, a match.Action) error {
	if !a.Valid {
		return backend.Wrap(backend.KindValidation, "execute", backend.ErrInvalidAction)
	}
	id := g.src.MatchID()
	if err := g.be.Execute(ctx, id, a); err != nil {
		return backend.Wrap(backend.KindMutation, "execute", err)
	}
	return g.src.Load(ctx, id)
}

// Truncate replaces the log with everything through the cursor. Steps after
// the cursor are destroyed on the server.
func (g *Gateway) Truncate(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return backend.Wrap(backend.KindMutation, "truncate", ErrNotConfirmed)
	}
	id := g.src.MatchID()
	text, err := g.logThroughCursor()
	if err != nil {
		return backend.Wrap(backend.KindMutation, "truncate", err)
	}
	if err := g.be.Truncate(ctx, id, text); err != nil {
		return backend.Wrap(backend.KindMutation, "truncate", err)
	}
	return g.src.Load(ctx, id)
}

// Fork creates a new match sharing the log through the cursor and returns
// its name. The current match is left untouched.
func (g *Gateway) Fork(ctx context.Context) (string, error) {
	text, err := g.logThroughCursor()
	if err != nil {
		return "", backend.Wrap(backend.KindMutation, "fork", err)
	}
	name := ForkName(g.src.MatchID(), g.now())
	sum, err := g.be.CreateGame(ctx, match.NewGame{
		Name:        name,
		Player1Deck: unknownDeck,
		Player2Deck: unknownDeck,
		LogContent:  text,
	})
	if err != nil {
		return "", backend.Wrap(backend.KindMutation, "fork", err)
	}
	if sum.Name != "" {
		name = sum.Name
	}
	return name, nil
}

// ForkName derives a fork's name from its source and a millisecond timestamp.
func ForkName(source string, at time.Time) string {
	return fmt.Sprintf("%s-fork-%d", source, at.UnixMilli())
}

func (g *Gateway) logThroughCursor() (string, error) {
	entries := g.src.EntriesThroughCursor()
	if len(entries) == 0 {
		return "", ErrNoSteps
	}
	return match.EncodeLog(entries)
}
