// Package backend talks to the match server: the rules engine endpoints that
// compute steps, snapshots and legal actions, and the game and deck CRUD.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"quardsview/internal/logging"
	"quardsview/internal/match"
)

var tracer = otel.Tracer("quardsview/backend")

// Client is an HTTP client for the match server API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client rooted at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// HTTPClient exposes the underlying client, e.g. for fetching static assets.
func (c *Client) HTTPClient() *http.Client { return c.http }

func gamePath(matchID, suffix string) string {
	return "/api/games/" + url.PathEscape(matchID) + suffix
}

// Navigation returns the classified raw log of a match.
func (c *Client) Navigation(ctx context.Context, matchID string) ([]match.Step, error) {
	var out []match.Step
	if err := c.do(ctx, "navigation", http.MethodGet, gamePath(matchID, "/navigation"), nil, &out); err != nil {
		return nil, Wrap(KindLoad, "navigation", err)
	}
	return out, nil
}

// State returns the board snapshot after the 1-based step.
func (c *Client) State(ctx context.Context, matchID string, step int) (*match.GameSnapshot, error) {
	var out *match.GameSnapshot
	path := gamePath(matchID, "/state?step="+strconv.Itoa(step))
	if err := c.do(ctx, "state", http.MethodGet, path, nil, &out); err != nil {
		return nil, Wrap(KindStateFetch, "state", err)
	}
	if out == nil {
		return nil, &Error{Kind: KindStateFetch, Op: "state", Err: errors.New("no state data")}
	}
	return out, nil
}

// Actions returns the actions available after the 1-based step.
func (c *Client) Actions(ctx context.Context, matchID string, step int) ([]match.Action, error) {
	var out []match.Action
	path := gamePath(matchID, "/actions?step="+strconv.Itoa(step))
	if err := c.do(ctx, "actions", http.MethodGet, path, nil, &out); err != nil {
		return nil, Wrap(KindStateFetch, "actions", err)
	}
	return out, nil
}

// History returns a description for every raw log entry.
func (c *Client) History(ctx context.Context, matchID string) ([]match.HistoryEntry, error) {
	var out []match.HistoryEntry
	if err := c.do(ctx, "history", http.MethodGet, gamePath(matchID, "/history"), nil, &out); err != nil {
		return nil, Wrap(KindStateFetch, "history", err)
	}
	return out, nil
}

// Execute appends an action to the match log.
func (c *Client) Execute(ctx context.Context, matchID string, a match.Action) error {
	body := struct {
		Type       match.ActionType `json:"type"`
		Parameters match.Parameters `json:"parameters"`
	}{a.Type, a.Parameters}
	if err := c.do(ctx, "execute", http.MethodPost, gamePath(matchID, "/execute"), body, nil); err != nil {
		return Wrap(KindMutation, "execute", err)
	}
	return nil
}

// Truncate replaces the match log with logText.
func (c *Client) Truncate(ctx context.Context, matchID, logText string) error {
	body := struct {
		LogContent string `json:"logContent"`
	}{logText}
	if err := c.do(ctx, "truncate", http.MethodPost, gamePath(matchID, "/truncate"), body, nil); err != nil {
		return Wrap(KindMutation, "truncate", err)
	}
	return nil
}

// CreateGame creates a match, optionally seeded with a log.
func (c *Client) CreateGame(ctx context.Context, g match.NewGame) (*match.GameSummary, error) {
	var out *match.GameSummary
	if err := c.do(ctx, "create game", http.MethodPost, "/api/games", g, &out); err != nil {
		return nil, Wrap(KindMutation, "create game", err)
	}
	if out == nil {
		out = &match.GameSummary{Name: g.Name}
	}
	return out, nil
}

// ListGames lists matches; limit <= 0 means all.
func (c *Client) ListGames(ctx context.Context, limit int) ([]match.GameSummary, error) {
	path := "/api/games"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []match.GameSummary
	if err := c.do(ctx, "list games", http.MethodGet, path, nil, &out); err != nil {
		return nil, Wrap(KindLoad, "list games", err)
	}
	return out, nil
}

// DeleteGame removes a match by numeric id.
func (c *Client) DeleteGame(ctx context.Context, id int) error {
	if err := c.do(ctx, "delete game", http.MethodDelete, "/api/games/"+strconv.Itoa(id), nil, nil); err != nil {
		return Wrap(KindMutation, "delete game", err)
	}
	return nil
}

// ListDecks lists deck summaries.
func (c *Client) ListDecks(ctx context.Context) ([]match.Deck, error) {
	var out []match.Deck
	if err := c.do(ctx, "list decks", http.MethodGet, "/api/decks", nil, &out); err != nil {
		return nil, Wrap(KindLoad, "list decks", err)
	}
	return out, nil
}

// GetDeck fetches a deck with its card counts.
func (c *Client) GetDeck(ctx context.Context, name string) (*match.Deck, error) {
	var out *match.Deck
	if err := c.do(ctx, "get deck", http.MethodGet, "/api/decks/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, Wrap(KindLoad, "get deck", err)
	}
	if out == nil {
		return nil, &Error{Kind: KindLoad, Op: "get deck", Err: errors.New("no deck data")}
	}
	return out, nil
}

// SaveDeck creates the deck when original is empty, otherwise replaces the
// deck stored under original.
func (c *Client) SaveDeck(ctx context.Context, original string, d match.Deck) error {
	method, path := http.MethodPost, "/api/decks"
	if original != "" {
		method, path = http.MethodPut, "/api/decks/"+url.PathEscape(original)
	}
	if err := c.do(ctx, "save deck", method, path, d, nil); err != nil {
		return Wrap(KindMutation, "save deck", err)
	}
	return nil
}

// DeleteDeck removes a deck.
func (c *Client) DeleteDeck(ctx context.Context, name string) error {
	if err := c.do(ctx, "delete deck", http.MethodDelete, "/api/decks/"+url.PathEscape(name), nil, nil); err != nil {
		return Wrap(KindMutation, "delete deck", err)
	}
	return nil
}

// do performs one request against the {data, error} envelope. A non-2xx
// status and a non-empty body-level error field are both failures.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	ctx, span := tracer.Start(ctx, "backend."+op, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.Debugf("backend %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	msg := ""
	if gjson.ValidBytes(raw) {
		msg = gjson.GetBytes(raw, "error").String()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	if msg != "" {
		return errors.New(msg)
	}
	if out == nil {
		return nil
	}
	if !gjson.ValidBytes(raw) {
		return errors.New("malformed response body")
	}
	data := gjson.GetBytes(raw, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil
	}
	if err := json.Unmarshal([]byte(data.Raw), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
