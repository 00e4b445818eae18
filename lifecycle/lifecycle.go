// Package lifecycle tracks the single user-visible transaction indicator.
//
// There is one indicator for the whole client. Begin shows it as pending;
// Succeed and Fail show the outcome and schedule it to hide again (after
// SuccessDismiss or ErrorDismiss). Every transition replaces whatever was
// shown before, whichever operation it belongs to, and a scheduled hide
// only takes effect if nothing else happened in the meantime.
package lifecycle

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Auto-dismiss delays.
const (
	SuccessDismiss = 2 * time.Second
	ErrorDismiss   = 3 * time.Second
)

// Phase is the indicator's visible state.
type Phase string

const (
	PhaseHidden  Phase = ""
	PhasePending Phase = "pending"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Ticket identifies one operation's use of the indicator.
type Ticket uuid.UUID

// String returns the ticket's UUID text.
func (t Ticket) String() string { return uuid.UUID(t).String() }

// MarshalText encodes the ticket as its UUID text.
func (t Ticket) MarshalText() ([]byte, error) { return uuid.UUID(t).MarshalText() }

// State is a snapshot of the indicator.
type State struct {
	Phase     Phase     `json:"phase"`
	Op        string    `json:"op,omitempty"`
	Message   string    `json:"message,omitempty"`
	Ticket    Ticket    `json:"ticket"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Visible reports whether anything is shown.
func (s State) Visible() bool { return s.Phase != PhaseHidden }

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Controller owns the indicator. It is safe for concurrent use.
type Controller struct {
	log   *slog.Logger
	clock clockwork.Clock

	mu        sync.Mutex
	state     State
	gen       uint64
	timer     clockwork.Timer
	observers map[int]func(State)
	nextObs   int

	// held while observers run so they see transitions in order
	notifyMu sync.Mutex
}

func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		log:       cfg.Logger,
		clock:     cfg.Clock,
		observers: make(map[int]func(State)),
	}, nil
}

// Snapshot returns the current indicator state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange registers fn to be called after every transition, in order.
// fn must not call Begin, Succeed, Fail or Dismiss. The returned function
// unregisters it.
func (c *Controller) OnChange(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Begin shows op as pending with msg and returns its ticket.
func (c *Controller) Begin(op, msg string) Ticket {
	t := Ticket(uuid.New())
	c.transition(State{Phase: PhasePending, Op: op, Message: msg, Ticket: t}, 0)
	return t
}

// Succeed shows msg as a success for t's operation and hides it after
// SuccessDismiss.
func (c *Controller) Succeed(t Ticket, msg string) {
	c.transition(State{Phase: PhaseSuccess, Op: c.opOf(t), Message: msg, Ticket: t}, SuccessDismiss)
}

// Fail shows msg as an error for t's operation and hides it after
// ErrorDismiss.
func (c *Controller) Fail(t Ticket, msg string) {
	c.transition(State{Phase: PhaseError, Op: c.opOf(t), Message: msg, Ticket: t}, ErrorDismiss)
}

// Dismiss hides the indicator immediately.
func (c *Controller) Dismiss() {
	c.transition(State{Phase: PhaseHidden}, 0)
}

// opOf returns the op name of t if t is what is currently shown.
func (c *Controller) opOf(t Ticket) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Ticket == t {
		return c.state.Op
	}
	return ""
}

// transition replaces the state and, when dismissAfter > 0, schedules a
// hide guarded by the new generation.
func (c *Controller) transition(next State, dismissAfter time.Duration) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	gen := c.gen
	next.UpdatedAt = c.clock.Now()
	c.state = next
	if dismissAfter > 0 {
		c.timer = c.clock.AfterFunc(dismissAfter, func() { c.expire(gen) })
	}
	c.log.Debug("lifecycle: transition", "phase", string(next.Phase), "op", next.Op, "message", next.Message)
	c.notifyLocked(next)
}

// expire hides the indicator if no transition happened since gen.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.timer = nil
	next := State{Phase: PhaseHidden, UpdatedAt: c.clock.Now()}
	c.state = next
	c.notifyLocked(next)
}

// notifyLocked is called with mu held and releases it.
func (c *Controller) notifyLocked(s State) {
	fns := make([]func(State), 0, len(c.observers))
	for id := 0; id < c.nextObs; id++ {
		if fn, ok := c.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
