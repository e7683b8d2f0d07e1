package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"quardsview/internal/backend"
	"quardsview/internal/catalog"
	"quardsview/internal/logging"
	"quardsview/internal/match"
	"quardsview/internal/matcher"
	"quardsview/internal/mutation"
	"quardsview/internal/navigation"
	"quardsview/internal/render"
	"quardsview/internal/steps"
)

// Backend is everything a session needs from the match server.
type Backend interface {
	steps.Navigator
	mutation.Backend
	State(ctx context.Context, matchID string, step int) (*match.GameSnapshot, error)
	Actions(ctx context.Context, matchID string, step int) ([]match.Action, error)
	History(ctx context.Context, matchID string) ([]match.HistoryEntry, error)
}

// Recorder keeps an audit of viewing activity. A nil *storage.Store is a
// valid Recorder that records nothing.
type Recorder interface {
	RecordView(ctx context.Context, matchID string) error
	RecordMutation(ctx context.Context, matchID, kind, detail string) error
}

// ErrClosed is returned for intents sent to a closed session.
var ErrClosed = errors.New("session closed")

func newSession(id string, be Backend, cat *catalog.Catalog, rec Recorder, opts Options) *Session {
	s := &Session{
		ID:       id,
		Watchers: make(map[chan []byte]struct{}),
		LastSeen: time.Now(),
		be:       be,
		catalog:  cat,
		rec:      rec,
		store:    steps.NewStore(be),
		timeout:  opts.Timeout,
		done:     make(chan struct{}),
	}
	navOpts := []navigation.Option{navigation.WithPeriod(opts.Period)}
	if opts.NewTicker != nil {
		navOpts = append(navOpts, navigation.WithTicker(opts.NewTicker))
	}
	s.nav = navigation.NewController(s.store, s.onChange, navOpts...)
	s.gw = mutation.NewGateway(be, s.store)
	return s
}

// Load fetches the match log, places the cursor on the live edge and draws it.
func (s *Session) Load(ctx context.Context, matchID string) error {
	err := s.store.Load(ctx, matchID)
	s.Mu.Lock()
	s.loadErr = err
	s.Mu.Unlock()
	if err != nil {
		s.report(err)
	}
	if rerr := s.Refresh(ctx); err == nil {
		err = rerr
	}
	return err
}

// MatchID returns the id of the match being viewed.
func (s *Session) MatchID() string { return s.store.MatchID() }

// Touch updates the last seen timestamp for a session
func (s *Session) Touch() {
	s.Mu.Lock()
	s.LastSeen = time.Now()
	s.Mu.Unlock()
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// View returns the most recently drawn display model.
func (s *Session) View() render.View {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.view
}

// Snapshot returns the encoded current view, for new watchers.
func (s *Session) Snapshot() []byte {
	v := s.View()
	data, _ := json.Marshal(Message{Kind: "view", View: &v})
	return data
}

// AddWatcher adds a new watcher channel
func (s *Session) AddWatcher(ch chan []byte) {
	s.Mu.Lock()
	s.Watchers[ch] = struct{}{}
	s.LastSeen = time.Now()
	s.Mu.Unlock()
}

// RemoveWatcher removes a watcher channel
func (s *Session) RemoveWatcher(ch chan []byte) {
	s.Mu.Lock()
	delete(s.Watchers, ch)
	s.LastSeen = time.Now()
	s.Mu.Unlock()
}

func (s *Session) onChange(moved bool) {
	if moved {
		go func() {
			ctx := context.Background()
			_ = s.Refresh(ctx)
		}()
		return
	}
	s.Mu.Lock()
	s.view.Playing = s.playing()
	s.broadcastLocked(Message{Kind: "view", View: &s.view})
	s.Mu.Unlock()
}

// Refresh fetches everything the step under the cursor needs and draws it,
// unless the cursor or sequence moved on while the requests were in flight.
// A failed snapshot aborts the render and keeps the previous view; failed
// actions or history only degrade their own panel.
func (s *Session) Refresh(ctx context.Context) error {
	s.Mu.Lock()
	s.gen++
	gen := s.gen
	loadErr := s.loadErr
	s.Mu.Unlock()

	pos, ok := s.store.Position()
	if !ok {
		v := render.Render(render.Input{MatchID: pos.MatchID, Playing: s.playing()})
		if loadErr != nil {
			v.Notice = loadErr.Error()
		} else {
			v.Notice = "No steps recorded for this game"
		}
		s.apply(gen, pos, v, nil, nil)
		return nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	step := pos.Step.OriginalStepNumber

	var (
		snap       *match.GameSnapshot
		actions    []match.Action
		actionsErr error
		history    []match.HistoryEntry
		historyErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = s.be.State(gctx, pos.MatchID, step)
		return err
	})
	g.Go(func() error {
		actions, actionsErr = s.be.Actions(gctx, pos.MatchID, step)
		return nil
	})
	g.Go(func() error {
		history, historyErr = s.be.History(gctx, pos.MatchID)
		return nil
	})
	if err := g.Wait(); err != nil {
		if s.superseded(gen, pos) {
			logging.Debugf("session %s: dropping failed render of stale step %d", s.ID, step)
			return nil
		}
		err = backend.Wrap(backend.KindStateFetch, "render", err)
		s.report(err)
		return err
	}
	if actionsErr != nil {
		logging.Warnf("session %s: actions for step %d: %v", s.ID, step, actionsErr)
	}
	if historyErr != nil {
		logging.Warnf("session %s: history: %v", s.ID, historyErr)
	}

	var matched *match.Action
	if pos.Next != nil {
		matched = matcher.Match(actions, pos.Next.LogEntry)
	}
	v := render.Render(render.Input{
		MatchID:    pos.MatchID,
		Cursor:     pos.Cursor,
		Length:     pos.Length,
		Live:       pos.Live,
		Playing:    s.playing(),
		Step:       pos.Step,
		Steps:      pos.Steps,
		Snapshot:   snap,
		Actions:    actions,
		Matched:    matched,
		ActionsErr: actionsErr,
		History:    history,
		HistoryErr: historyErr,
		Catalog:    s.catalog,
	})
	s.apply(gen, pos, v, actions, matched)
	return nil
}

// apply draws v unless a newer request was already drawn or the store has
// moved away from pos. The play state is read here, under the session lock,
// so a concurrent pause is never overwritten.
func (s *Session) apply(gen uint64, pos steps.Position, v render.View, actions []match.Action, matched *match.Action) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.closed {
		return false
	}
	if gen < s.applied || !s.store.Current(pos.Version, pos.Cursor) {
		logging.Debugf("session %s: discarding stale render of step %d", s.ID, pos.Cursor)
		return false
	}
	s.applied = gen
	v.Playing = s.playing()
	s.view = v
	s.actions = actions
	s.matched = matched
	s.broadcastLocked(Message{Kind: "view", View: &s.view})
	return true
}

// superseded reports whether a newer render was requested after gen or the
// store has moved away from pos.
func (s *Session) superseded(gen uint64, pos steps.Position) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return gen != s.gen || !s.store.Current(pos.Version, pos.Cursor)
}

func (s *Session) playing() bool {
	return s.nav.State() == navigation.Playing
}

// HandleIntent dispatches one user stimulus.
func (s *Session) HandleIntent(ctx context.Context, in Intent) (Outcome, error) {
	s.Mu.Lock()
	closed := s.closed
	s.Mu.Unlock()
	if closed {
		return Outcome{}, ErrClosed
	}
	var p IntentPayload
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return Outcome{}, backend.Wrap(backend.KindValidation, "intent", err)
		}
	}
	s.Touch()
	logging.Debugf("session %s: intent %s %s", s.ID, in.Type, in.Payload)

	switch in.Type {
	case "key":
		s.nav.Key(p.Key)
	case "prev":
		s.nav.Dispatch(navigation.Prev)
	case "next":
		s.nav.Dispatch(navigation.Next)
	case "play":
		s.nav.Dispatch(navigation.Play)
	case "pause":
		s.nav.Dispatch(navigation.Pause)
	case "toggle":
		s.nav.Dispatch(navigation.Toggle)
	case "seek":
		s.nav.Seek(p.Position)
	case "goto":
		s.nav.Goto(p.Index)
	case "execute":
		return Outcome{}, s.execute(ctx, p.Action)
	case "truncate":
		return Outcome{}, s.truncate(ctx, p.Confirm)
	case "fork":
		return s.fork(ctx)
	default:
		return Outcome{}, backend.Wrap(backend.KindValidation, "intent", fmt.Errorf("unknown intent %q", in.Type))
	}
	return Outcome{}, nil
}

// execute handles a click on action tile idx. At the live edge the action is
// submitted; on a historical step the chosen action advances the cursor and
// alternatives do nothing.
func (s *Session) execute(ctx context.Context, idx int) error {
	s.Mu.Lock()
	actions, matched, live := s.actions, s.matched, s.view.Live
	s.Mu.Unlock()
	if idx < 0 || idx >= len(actions) {
		return backend.Wrap(backend.KindValidation, "execute", fmt.Errorf("no action %d", idx))
	}
	a := &actions[idx]
	if !live {
		if a == matched {
			s.nav.Dispatch(navigation.Next)
		}
		return nil
	}
	if err := s.gw.Execute(ctx, *a); err != nil {
		return s.mutationFailed(ctx, err)
	}
	s.record(ctx, "execute", string(a.Type)+" "+a.Parameters.Format())
	return s.Refresh(ctx)
}

func (s *Session) truncate(ctx context.Context, confirmed bool) error {
	cursor := s.store.Cursor()
	if err := s.gw.Truncate(ctx, confirmed); err != nil {
		return s.mutationFailed(ctx, err)
	}
	s.record(ctx, "truncate", fmt.Sprintf("kept steps 1-%d", cursor+1))
	return s.Refresh(ctx)
}

func (s *Session) fork(ctx context.Context) (Outcome, error) {
	name, err := s.gw.Fork(ctx)
	if err != nil {
		s.report(err)
		return Outcome{}, err
	}
	s.record(ctx, "fork", name)
	loc := "/open/" + url.PathEscape(name)
	s.notify(Message{Kind: "navigate", Location: loc})
	return Outcome{Location: loc}, nil
}

// mutationFailed reports err to watchers. Refused actions are only returned
// to the caller. When the reload after a successful write was what failed,
// the emptied store is drawn as well.
func (s *Session) mutationFailed(ctx context.Context, err error) error {
	if backend.IsKind(err, backend.KindValidation) {
		logging.Debugf("session %s: %v", s.ID, err)
		return err
	}
	s.report(err)
	if backend.IsKind(err, backend.KindLoad) {
		s.Mu.Lock()
		s.loadErr = err
		s.Mu.Unlock()
		_ = s.Refresh(ctx)
	}
	return err
}

func (s *Session) record(ctx context.Context, kind, detail string) {
	if s.rec == nil {
		return
	}
	if err := s.rec.RecordMutation(ctx, s.store.MatchID(), kind, detail); err != nil {
		log.Printf("record %s for %s: %v", kind, s.store.MatchID(), err)
	}
}

func (s *Session) report(err error) {
	info := &ErrorInfo{Kind: "error", Message: err.Error()}
	var be *backend.Error
	if errors.As(err, &be) {
		info.Kind = be.Kind.String()
	}
	logging.Warnf("session %s: %v", s.ID, err)
	s.notify(Message{Kind: "error", Error: info})
}

func (s *Session) notify(m Message) {
	s.Mu.Lock()
	s.broadcastLocked(m)
	s.Mu.Unlock()
}

// broadcastLocked sends m to all watchers without blocking.
func (s *Session) broadcastLocked(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		log.Printf("encode %s message: %v", m.Kind, err)
		return
	}
	for ch := range s.Watchers {
		select {
		case ch <- data:
		default:
		}
	}
}

// Close stops auto-play and releases watchers. Late responses are dropped.
func (s *Session) Close() {
	s.Mu.Lock()
	if s.closed {
		s.Mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.Mu.Unlock()
	s.nav.Close()
}
