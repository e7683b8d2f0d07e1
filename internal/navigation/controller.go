// Package navigation turns user stimuli (buttons, keys, timeline scrubs and
// auto-play ticks) into cursor movements.
package navigation

import (
	"math"
	"sync"
	"time"

	"quardsview/internal/logging"
)

// Period is the auto-play step interval.
const Period = time.Second

// State is the play state of a controller.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Command is a discrete navigation request.
type Command int

const (
	Prev Command = iota + 1
	Next
	Play
	Pause
	Toggle
)

// Cursor is the part of the step store the controller drives.
type Cursor interface {
	Len() int
	MoveTo(index int) bool
	Advance() bool
	Back() bool
}

// Ticker is the auto-play timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker with the given period.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

// ChangeFunc is called after every transition. moved reports whether the
// cursor changed; otherwise only the play state did.
type ChangeFunc func(moved bool)

// Controller is the idle/playing state machine. At most one ticker is live.
type Controller struct {
	mu        sync.Mutex
	cur       Cursor
	onChange  ChangeFunc
	period    time.Duration
	newTicker TickerFunc
	state     State
	ticker    Ticker
	stop      chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithPeriod overrides the auto-play period.
func WithPeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.period = d
		}
	}
}

// WithTicker overrides the ticker factory.
func WithTicker(f TickerFunc) Option {
	return func(c *Controller) { c.newTicker = f }
}

// NewController creates an idle controller over cur.
func NewController(cur Cursor, onChange ChangeFunc, opts ...Option) *Controller {
	c := &Controller{
		cur:       cur,
		onChange:  onChange,
		period:    Period,
		newTicker: NewRealTicker,
	}
	for _, o := range opts {
		o(c)
	}
	if c.onChange == nil {
		c.onChange = func(bool) {}
	}
	return c
}

// State returns the current play state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dispatch executes a command.
func (c *Controller) Dispatch(cmd Command) {
	switch cmd {
	case Prev:
		c.move(c.cur.Back)
	case Next:
		c.move(c.cur.Advance)
	case Play:
		c.Play()
	case Pause:
		c.Pause()
	case Toggle:
		if c.State() == Playing {
			c.Pause()
		} else {
			c.Play()
		}
	}
}

// KeyCommand maps a key name to its command. Space toggles play; callers
// must suppress the key's default scrolling when ok is true.
func KeyCommand(key string) (cmd Command, ok bool) {
	switch key {
	case "ArrowLeft", "left":
		return Prev, true
	case "ArrowRight", "right":
		return Next, true
	case " ", "space", "Space":
		return Toggle, true
	}
	return 0, false
}

// Key handles a key press and reports whether it was bound.
func (c *Controller) Key(key string) bool {
	cmd, ok := KeyCommand(key)
	if ok {
		c.Dispatch(cmd)
	}
	return ok
}

// Seek moves to the step under a normalized timeline position in [0,1].
// The play state is unchanged.
func (c *Controller) Seek(position float64) {
	idx := SeekIndex(position, c.cur.Len())
	c.move(func() bool { return c.cur.MoveTo(idx) })
}

// Goto moves directly to index (clamped).
func (c *Controller) Goto(index int) {
	c.move(func() bool { return c.cur.MoveTo(index) })
}

// SeekIndex computes floor(position*length) clamped to [0, length-1].
func SeekIndex(position float64, length int) int {
	if length <= 0 || math.IsNaN(position) {
		return 0
	}
	idx := math.Floor(position * float64(length))
	if idx < 0 {
		return 0
	}
	if idx > float64(length-1) {
		return length - 1
	}
	return int(idx)
}

func (c *Controller) move(step func() bool) {
	if step() {
		c.onChange(true)
	}
}

// Play starts auto-play. It is a no-op while already playing.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.state == Playing {
		c.mu.Unlock()
		return
	}
	c.state = Playing
	t := c.newTicker(c.period)
	done := make(chan struct{})
	c.ticker, c.stop = t, done
	c.mu.Unlock()

	logging.Debugf("autoplay started (%s)", c.period)
	go c.loop(t, done)
	c.onChange(false)
}

// Pause stops auto-play. It is a no-op while idle.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != Playing {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.mu.Unlock()
	c.onChange(false)
}

// Close stops any timer without notifying.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == Playing {
		c.stopLocked()
	}
	c.mu.Unlock()
}

// Tick advances one step while playing; at the last step it stops instead.
func (c *Controller) Tick() { c.tick(nil) }

// tick ignores ticks from a ticker that is no longer the live one.
func (c *Controller) tick(from Ticker) {
	c.mu.Lock()
	if c.state != Playing || (from != nil && from != c.ticker) {
		c.mu.Unlock()
		return
	}
	if c.cur.Advance() {
		c.mu.Unlock()
		c.onChange(true)
		return
	}
	c.stopLocked()
	c.mu.Unlock()
	logging.Debugf("autoplay reached the end")
	c.onChange(false)
}

func (c *Controller) stopLocked() {
	c.ticker.Stop()
	close(c.stop)
	c.ticker, c.stop = nil, nil
	c.state = Idle
}

func (c *Controller) loop(t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			c.tick(t)
		}
	}
}
