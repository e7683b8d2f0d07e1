package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"quardsview/internal/backend"
	"quardsview/internal/backend/backendtest"
	"quardsview/internal/match"
	"quardsview/internal/viewer"
)

type fakeLibrary struct {
	mu      sync.Mutex
	games   []match.GameSummary
	decks   map[string]match.Deck
	created []match.NewGame
	saved   []string
	deleted []string
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		games: []match.GameSummary{
			{ID: 1, Name: "g1", Player1Deck: "amber", Player2Deck: "ruby", Created: time.Now()},
			{ID: 2, Name: "g2", Player1Deck: "steel", Player2Deck: "ruby", Created: time.Now()},
		},
		decks: map[string]match.Deck{"amber": {Name: "amber", Description: "Amber aggro"}},
	}
}

func (f *fakeLibrary) ListGames(ctx context.Context, limit int) ([]match.GameSummary, error) {
	if limit > 0 && limit < len(f.games) {
		return f.games[:limit], nil
	}
	return f.games, nil
}

func (f *fakeLibrary) CreateGame(ctx context.Context, g match.NewGame) (*match.GameSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, g)
	return &match.GameSummary{ID: 3, Name: g.Name}, nil
}

func (f *fakeLibrary) DeleteGame(ctx context.Context, id int) error { return nil }

func (f *fakeLibrary) ListDecks(ctx context.Context) ([]match.Deck, error) {
	var out []match.Deck
	for _, d := range f.decks {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeLibrary) GetDeck(ctx context.Context, name string) (*match.Deck, error) {
	d, ok := f.decks[name]
	if !ok {
		return nil, backend.Wrap(backend.KindLoad, "get deck", errors.New("HTTP 404: deck not found"))
	}
	return &d, nil
}

func (f *fakeLibrary) SaveDeck(ctx context.Context, original string, d match.Deck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, original+">"+d.Name)
	return nil
}

func (f *fakeLibrary) DeleteDeck(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

func seedLog() []match.LogEntry {
	return []match.LogEntry{
		{Turn: 1, Player: 1, Action: "turn_start", Parameters: match.Parameters{"player": "1"}},
		{Turn: 1, Player: 1, Action: "ink_card", Parameters: match.Parameters{"card_id": "C1"}},
		{Turn: 1, Player: 1, Action: "pass"},
		{Turn: 2, Player: 2, Action: "ink_card", Parameters: match.Parameters{"card_id": "C2"}},
	}
}

func newTestHandler(t *testing.T) (*Handler, *fakeLibrary) {
	t.Helper()
	fake := backendtest.New()
	fake.SetLog("g1", seedLog())
	hub := viewer.NewHub(fake, nil, nil, viewer.Options{})
	t.Cleanup(hub.Close)
	lib := newFakeLibrary()
	return NewHandler(hub, lib, nil), lib
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func openSession(t *testing.T, h *Handler) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/open/g1", nil)
	w := httptest.NewRecorder()
	h.HandleOpen(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil || !strings.HasPrefix(loc.Path, "/s/") || loc.Query().Get("game") != "g1" {
		t.Fatalf("unexpected location %q", w.Header().Get("Location"))
	}
	return strings.TrimPrefix(loc.Path, "/s/")
}

func TestHandleOpenCreatesSession(t *testing.T) {
	h, _ := newTestHandler(t)
	id := openSession(t, h)
	s, ok := h.Hub.Get(id)
	if !ok {
		t.Fatalf("session not registered")
	}
	if v := s.View(); v.Length != 3 || !v.Live {
		t.Fatalf("unexpected initial view %+v", v)
	}

	w := httptest.NewRecorder()
	h.HandleSession(w, httptest.NewRequest("GET", "/s/"+id, nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), id) {
		t.Fatalf("viewer page should embed the session id")
	}
}

func TestHandleIntent(t *testing.T) {
	h, _ := newTestHandler(t)
	id := openSession(t, h)

	req := httptest.NewRequest("POST", "/intent/"+id, strings.NewReader(`{"type":"goto","payload":{"index":0}}`))
	w := httptest.NewRecorder()
	h.HandleIntent(w, req)
	if resp := decode(t, w); resp["ok"] != true {
		t.Fatalf("expected ok, got %v", resp)
	}
	s, _ := h.Hub.Get(id)
	deadline := time.Now().Add(2 * time.Second)
	for s.View().Cursor != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("view did not move to step 1")
		}
		time.Sleep(time.Millisecond)
	}

	req = httptest.NewRequest("POST", "/intent/"+id, strings.NewReader(`{"type":"moonwalk"}`))
	w = httptest.NewRecorder()
	h.HandleIntent(w, req)
	if resp := decode(t, w); resp["ok"] != false || resp["errorKind"] != "validation" {
		t.Fatalf("expected validation failure, got %v", resp)
	}
}

func TestHandleIntentErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	w := httptest.NewRecorder()
	h.HandleIntent(w, httptest.NewRequest("POST", "/intent/missing", strings.NewReader(`{"type":"next"}`)))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	id := openSession(t, h)
	w = httptest.NewRecorder()
	h.HandleIntent(w, httptest.NewRequest("POST", "/intent/"+id, strings.NewReader(`{`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = httptest.NewRecorder()
	h.HandleIntent(w, httptest.NewRequest("GET", "/intent/"+id, nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestHandleCloseRemovesSession(t *testing.T) {
	h, _ := newTestHandler(t)
	id := openSession(t, h)
	w := httptest.NewRecorder()
	h.HandleClose(w, httptest.NewRequest("POST", "/close/"+id, nil))
	if resp := decode(t, w); resp["ok"] != true {
		t.Fatalf("expected ok, got %v", resp)
	}
	if _, ok := h.Hub.Get(id); ok {
		t.Fatalf("session still registered")
	}
}

func TestReloadAfterCloseReopensMatch(t *testing.T) {
	h, _ := newTestHandler(t)
	id := openSession(t, h)
	h.HandleClose(httptest.NewRecorder(), httptest.NewRequest("POST", "/close/"+id, nil))

	w := httptest.NewRecorder()
	h.HandleSession(w, httptest.NewRequest("GET", "/s/"+id+"?game=g1", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/open/g1" {
		t.Fatalf("unexpected redirect %d %q", w.Code, w.Header().Get("Location"))
	}

	w = httptest.NewRecorder()
	h.HandleSession(w, httptest.NewRequest("GET", "/s/"+id, nil))
	if w.Header().Get("Location") != "/" {
		t.Fatalf("without a game the viewer should fall back home, got %q", w.Header().Get("Location"))
	}
}

func TestHandleSSESendsSnapshot(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	id := openSession(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/sse/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sse: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m viewer.Message
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &m); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if m.Kind != "view" || m.View == nil || m.View.Counter != "Step 3 / 3" {
		t.Fatalf("unexpected snapshot %+v", m)
	}
}

func TestHandleWSIntentRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	id := openSession(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/"+id, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() map[string]any {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return m
	}
	if m := read(); m["kind"] != "view" {
		t.Fatalf("expected initial view, got %v", m)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"key","payload":{"key":"left"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	gotReply, gotMove := false, false
	for !gotReply || !gotMove {
		m := read()
		switch m["kind"] {
		case "reply":
			if m["ok"] != true {
				t.Fatalf("intent failed: %v", m)
			}
			gotReply = true
		case "view":
			if v, _ := m["view"].(map[string]any); v != nil && v["cursor"] == float64(1) {
				gotMove = true
			}
		}
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"truncate","payload":{}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		m := read()
		if m["kind"] != "reply" {
			continue
		}
		if m["ok"] != false || m["errorKind"] != "mutation" {
			t.Fatalf("expected mutation failure reply, got %v", m)
		}
		break
	}
}

func TestHandleGamesAppliesFilters(t *testing.T) {
	h, _ := newTestHandler(t)
	w := httptest.NewRecorder()
	h.HandleGames(w, httptest.NewRequest("GET", "/api/games?deck=amber", nil))
	resp := decode(t, w)
	screen := resp["screen"].(map[string]any)
	games := screen["games"].([]any)
	if len(games) != 1 || games[0].(map[string]any)["player1DeckDescription"] != "Amber aggro" {
		t.Fatalf("unexpected games %v", games)
	}
}

func TestHandleGamesCreate(t *testing.T) {
	h, lib := newTestHandler(t)
	body := `{"name":"new one","player1Deck":"amber","player2Deck":"ruby","seed":7}`
	w := httptest.NewRecorder()
	h.HandleGames(w, httptest.NewRequest("POST", "/api/games", strings.NewReader(body)))
	resp := decode(t, w)
	if resp["ok"] != true || resp["location"] != "/open/new%20one" {
		t.Fatalf("unexpected reply %v", resp)
	}
	if len(lib.created) != 1 || lib.created[0].Seed == nil || *lib.created[0].Seed != 7 {
		t.Fatalf("unexpected created games %+v", lib.created)
	}

	w = httptest.NewRecorder()
	h.HandleGames(w, httptest.NewRequest("POST", "/api/games", strings.NewReader(`{"name":"x"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing decks should be rejected, got %d", w.Code)
	}
}

func TestHandleDeckCRUD(t *testing.T) {
	h, lib := newTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleDeck(w, httptest.NewRequest("GET", "/api/decks/amber", nil))
	if resp := decode(t, w); resp["ok"] != true {
		t.Fatalf("get deck: %v", resp)
	}

	w = httptest.NewRecorder()
	h.HandleDeck(w, httptest.NewRequest("GET", "/api/decks/nope", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for backend failure, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.HandleDeck(w, httptest.NewRequest("PUT", "/api/decks/amber", strings.NewReader(`{"name":"amber2"}`)))
	if resp := decode(t, w); resp["ok"] != true {
		t.Fatalf("put deck: %v", resp)
	}
	w = httptest.NewRecorder()
	h.HandleDecks(w, httptest.NewRequest("POST", "/api/decks", strings.NewReader(`{"name":"fresh"}`)))
	if resp := decode(t, w); resp["ok"] != true {
		t.Fatalf("post deck: %v", resp)
	}
	if len(lib.saved) != 2 || lib.saved[0] != "amber>amber2" || lib.saved[1] != ">fresh" {
		t.Fatalf("unexpected saves %v", lib.saved)
	}

	w = httptest.NewRecorder()
	h.HandleDeck(w, httptest.NewRequest("DELETE", "/api/decks/amber", nil))
	if resp := decode(t, w); resp["ok"] != true || len(lib.deleted) != 1 {
		t.Fatalf("delete deck: %v", resp)
	}
}

func TestHandleHealthAndRecentWithoutStorage(t *testing.T) {
	h, _ := newTestHandler(t)
	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest("GET", "/health", nil))
	if resp := decode(t, w); resp["ok"] != true || resp["storage"] != false {
		t.Fatalf("unexpected health %v", resp)
	}

	w = httptest.NewRecorder()
	h.HandleRecent(w, httptest.NewRequest("GET", "/api/recent", nil))
	resp := decode(t, w)
	if resp["ok"] != true || len(resp["recent"].([]any)) != 0 {
		t.Fatalf("unexpected recent %v", resp)
	}
}

func TestHandlePageLegacyGameLink(t *testing.T) {
	h, _ := newTestHandler(t)
	w := httptest.NewRecorder()
	h.HandlePage(w, httptest.NewRequest("GET", "/?game=g1", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/open/g1" {
		t.Fatalf("unexpected redirect %d %q", w.Code, w.Header().Get("Location"))
	}
	w = httptest.NewRecorder()
	h.HandlePage(w, httptest.NewRequest("GET", "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
