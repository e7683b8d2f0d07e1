package viewer

import (
	"encoding/json"
	"sync"
	"time"

	"quardsview/internal/catalog"
	"quardsview/internal/match"
	"quardsview/internal/mutation"
	"quardsview/internal/navigation"
	"quardsview/internal/render"
	"quardsview/internal/steps"
)

// Hub manages all open viewer sessions
type Hub struct {
	Mu       sync.Mutex
	Sessions map[string]*Session

	be      Backend
	catalog *catalog.Catalog
	rec     Recorder
	opts    Options
	stop    chan struct{}
	once    sync.Once
}

// Session is one open view of one match.
type Session struct {
	ID       string
	Mu       sync.Mutex
	Watchers map[chan []byte]struct{}
	LastSeen time.Time

	be      Backend
	catalog *catalog.Catalog
	rec     Recorder
	store   *steps.Store
	nav     *navigation.Controller
	gw      *mutation.Gateway
	timeout time.Duration

	// gen numbers refresh requests; applied is the newest one drawn.
	gen     uint64
	applied uint64
	view    render.View
	actions []match.Action
	matched *match.Action
	loadErr error
	done    chan struct{}
	closed  bool
}

// Intent is one user stimulus forwarded by the page.
type Intent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IntentPayload holds the optional arguments of all intent types.
type IntentPayload struct {
	Key      string  `json:"key,omitempty"`
	Position float64 `json:"position,omitempty"`
	Index    int     `json:"index,omitempty"`
	Action   int     `json:"action,omitempty"`
	Confirm  bool    `json:"confirm,omitempty"`
}

// Outcome is what an intent produced beyond a view update.
type Outcome struct {
	// Location is set when the page should navigate elsewhere (after a fork).
	Location string `json:"location,omitempty"`
}

// Message is pushed to watchers.
type Message struct {
	Kind     string       `json:"kind"`
	View     *render.View `json:"view,omitempty"`
	Error    *ErrorInfo   `json:"error,omitempty"`
	Location string       `json:"location,omitempty"`
}

// ErrorInfo describes a failure to the page.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
