// Package templates serves the embedded HTML pages.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"sync"
)

//go:embed *.html
var files embed.FS

var (
	mu     sync.RWMutex
	commit = "dev"
	pages  = template.Must(template.New("").ParseFS(files, "*.html"))
)

// SetCommit sets the build revision shown in page footers.
func SetCommit(c string) {
	mu.Lock()
	commit = c
	mu.Unlock()
}

// Commit returns the build revision.
func Commit() string {
	mu.RLock()
	defer mu.RUnlock()
	return commit
}

// HomeData fills the home page.
type HomeData struct {
	Recent  []RecentItem
	Views   int64
	Matches int64
	Edits   int64
	Storage bool
}

// RecentItem is one recently viewed match.
type RecentItem struct {
	MatchID string
	Href    string
	Views   string
	Viewed  string
}

// ViewerData fills the viewer page.
type ViewerData struct {
	SessionID string
	MatchID   string
}

// WriteHomeHTML serves the home page template
func WriteHomeHTML(w http.ResponseWriter, data HomeData) {
	write(w, "home.html", data)
}

// WriteViewerHTML serves the viewer page for one session
func WriteViewerHTML(w http.ResponseWriter, data ViewerData) {
	write(w, "viewer.html", data)
}

// WriteGamesHTML serves the games list page
func WriteGamesHTML(w http.ResponseWriter) {
	write(w, "games.html", nil)
}

func write(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	err := pages.ExecuteTemplate(&buf, name, struct {
		Data   any
		Commit string
	}{data, Commit()})
	if err != nil {
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
