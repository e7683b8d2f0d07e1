package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"quardsview/internal/library"
	"quardsview/internal/logging"
	"quardsview/internal/match"
	"quardsview/internal/storage"
	"quardsview/internal/templates"
	"quardsview/internal/viewer"
)

// Library is the games and decks side of the match server.
type Library interface {
	ListGames(ctx context.Context, limit int) ([]match.GameSummary, error)
	CreateGame(ctx context.Context, g match.NewGame) (*match.GameSummary, error)
	DeleteGame(ctx context.Context, id int) error
	ListDecks(ctx context.Context) ([]match.Deck, error)
	GetDeck(ctx context.Context, name string) (*match.Deck, error)
	SaveDeck(ctx context.Context, original string, d match.Deck) error
	DeleteDeck(ctx context.Context, name string) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Hub     *viewer.Hub
	Library Library
	Store   *storage.Store
	Version string
	now     func() time.Time
}

// NewHandler creates a new handler instance. store may be nil.
func NewHandler(hub *viewer.Hub, lib Library, store *storage.Store) *Handler {
	return &Handler{Hub: hub, Library: lib, Store: store, now: time.Now}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/open/", h.HandleOpen)
	mux.HandleFunc("/s/", h.HandleSession)
	mux.HandleFunc("/sse/", h.HandleSSE)
	mux.HandleFunc("/ws/", h.HandleWS)
	mux.HandleFunc("/intent/", h.HandleIntent)
	mux.HandleFunc("/close/", h.HandleClose)
	mux.HandleFunc("/games", h.HandleGamesPage)
	mux.HandleFunc("/api/games", h.HandleGames)
	mux.HandleFunc("/api/games/", h.HandleGame)
	mux.HandleFunc("/api/decks", h.HandleDecks)
	mux.HandleFunc("/api/decks/", h.HandleDeck)
	mux.HandleFunc("/api/recent", h.HandleRecent)
	mux.HandleFunc("/api/mutations/", h.HandleMutations)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/", h.HandlePage)
}

// HandlePage serves the home page. The legacy /?game=<name> link opens a
// viewer for that game.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path != "" && path != "index.html" {
		http.NotFound(w, r)
		return
	}
	if game := r.URL.Query().Get("game"); game != "" {
		http.Redirect(w, r, "/open/"+url.PathEscape(game), http.StatusFound)
		return
	}

	data := templates.HomeData{Storage: h.Store != nil}
	if h.Store != nil {
		recent, err := h.Store.RecentViews(r.Context(), 10)
		if err != nil {
			logging.Warnf("recent views: %v", err)
		}
		for _, v := range library.RecentList(recent, h.now()) {
			data.Recent = append(data.Recent, templates.RecentItem(v))
		}
		stats, err := h.Store.FetchStats(r.Context())
		if err != nil {
			logging.Warnf("stats: %v", err)
		}
		data.Views, data.Matches, data.Edits = stats.Views, stats.Matches, stats.Mutations
	}
	templates.WriteHomeHTML(w, data)
}

// HandleOpen creates a viewer session for a game and redirects to it
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimPrefix(r.URL.Path, "/open/")
	s, err := h.Hub.Open(r.Context(), matchID)
	if err != nil {
		logging.Warnf("open %q: %v", matchID, err)
	}
	http.Redirect(w, r, "/s/"+s.ID+"?game="+url.QueryEscape(matchID), http.StatusFound)
}

// HandleSession serves the viewer page of an open session. A closed
// session is reopened from the game named in the URL.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/s/")
	s, ok := h.Hub.Get(id)
	if !ok {
		target := "/"
		if game := r.URL.Query().Get("game"); game != "" {
			target = "/open/" + url.PathEscape(game)
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	s.Touch()
	templates.WriteViewerHTML(w, templates.ViewerData{SessionID: s.ID, MatchID: s.MatchID()})
}

// HandleSSE streams display models with Server-Sent Events
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/sse/")
	s, ok := h.Hub.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 16)
	s.AddWatcher(ch)
	defer s.RemoveWatcher(ch)

	_, _ = fmt.Fprintf(w, "data: %s\n\n", s.Snapshot())
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			return
		case <-ticker.C:
			// heartbeat
			_, _ = w.Write([]byte("data: {}\n\n"))
			flusher.Flush()
		case msg := <-ch:
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// HandleWS carries intents in and display models out over a websocket
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/")
	s, ok := h.Hub.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := make(chan []byte, 16)
	s.AddWatcher(ch)
	defer s.RemoveWatcher(ch)

	out := make(chan []byte, 16)
	go func() {
		defer cancel()
		write := func(data []byte) bool {
			wctx, wcancel := context.WithTimeout(ctx, 3*time.Second)
			defer wcancel()
			return conn.Write(wctx, websocket.MessageText, data) == nil
		}
		if !write(s.Snapshot()) {
			return
		}
		for {
			var data []byte
			select {
			case <-ctx.Done():
				return
			case <-s.Done():
				return
			case data = <-ch:
			case data = <-out:
			}
			if !write(data) {
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var in viewer.Intent
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		reply := h.dispatch(ctx, s, in)
		reply["kind"] = "reply"
		msg, _ := json.Marshal(reply)
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// HandleIntent processes one intent posted as JSON
func (h *Handler) HandleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/intent/")
	s, ok := h.Hub.Get(id)
	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown session"})
		return
	}
	var in viewer.Intent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	WriteJSON(w, http.StatusOK, h.dispatch(r.Context(), s, in))
}

func (h *Handler) dispatch(ctx context.Context, s *viewer.Session, in viewer.Intent) map[string]any {
	out, err := s.HandleIntent(ctx, in)
	if err != nil {
		return errorReply(err)
	}
	reply := map[string]any{"ok": true}
	if out.Location != "" {
		reply["location"] = out.Location
	}
	return reply
}

// HandleClose tears a session down
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/close/")
	WriteJSON(w, http.StatusOK, map[string]any{"ok": h.Hub.Remove(id)})
}

// HandleGamesPage serves the games list page
func (h *Handler) HandleGamesPage(w http.ResponseWriter, r *http.Request) {
	templates.WriteGamesHTML(w)
}

// HandleGames lists games through the screen filters, or creates a game.
func (h *Handler) HandleGames(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		games, err := h.Library.ListGames(r.Context(), limit)
		if err != nil {
			WriteJSON(w, statusFor(err), errorReply(err))
			return
		}
		decks, err := h.Library.ListDecks(r.Context())
		if err != nil {
			logging.Warnf("list decks: %v", err)
		}
		screen := library.Build(games, decks, library.ParseFilter(r.URL.Query()), h.now())
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "screen": screen})
	case http.MethodPost:
		var g match.NewGame
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
			return
		}
		if strings.TrimSpace(g.Name) == "" || g.Player1Deck == "" || g.Player2Deck == "" {
			WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "name and both decks are required"})
			return
		}
		sum, err := h.Library.CreateGame(r.Context(), g)
		if err != nil {
			WriteJSON(w, statusFor(err), errorReply(err))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "game": sum, "location": "/open/" + url.PathEscape(sum.Name)})
	default:
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
	}
}

// HandleGame deletes a game by numeric id.
func (h *Handler) HandleGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/games/"))
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad game id"})
		return
	}
	if err := h.Library.DeleteGame(r.Context(), id); err != nil {
		WriteJSON(w, statusFor(err), errorReply(err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleDecks lists or creates decks.
func (h *Handler) HandleDecks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		decks, err := h.Library.ListDecks(r.Context())
		if err != nil {
			WriteJSON(w, statusFor(err), errorReply(err))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "decks": decks})
	case http.MethodPost:
		h.saveDeck(w, r, "")
	default:
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
	}
}

// HandleDeck reads, replaces or deletes one deck.
func (h *Handler) HandleDeck(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/decks/")
	if name == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing deck name"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		d, err := h.Library.GetDeck(r.Context(), name)
		if err != nil {
			WriteJSON(w, statusFor(err), errorReply(err))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "deck": d})
	case http.MethodPut:
		h.saveDeck(w, r, name)
	case http.MethodDelete:
		if err := h.Library.DeleteDeck(r.Context(), name); err != nil {
			WriteJSON(w, statusFor(err), errorReply(err))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
	}
}

func (h *Handler) saveDeck(w http.ResponseWriter, r *http.Request, original string) {
	var d match.Deck
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return
	}
	if strings.TrimSpace(d.Name) == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "deck name is required"})
		return
	}
	if err := h.Library.SaveDeck(r.Context(), original, d); err != nil {
		WriteJSON(w, statusFor(err), errorReply(err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleRecent lists recently viewed games.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 5
	}
	views, err := h.Store.RecentViews(r.Context(), limit)
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "recent": library.RecentList(views, h.now())})
}

// HandleMutations lists the recorded writes to one game.
func (h *Handler) HandleMutations(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimPrefix(r.URL.Path, "/api/mutations/")
	muts, err := h.Store.MatchMutations(r.Context(), matchID)
	if err != nil {
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if muts == nil {
		muts = []storage.Mutation{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "mutations": muts})
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"sessions": h.Hub.Len(),
		"storage":  h.Store != nil,
		"version":  h.Version,
	})
}
