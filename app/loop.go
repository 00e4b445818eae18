package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bitfsorg/royalties-go/lifecycle"
	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/royalty"
	"github.com/bitfsorg/royalties-go/syncer"
)

// EventBuffer is the capacity of the loop's event queue.
const EventBuffer = 64

// Backend is the part of royalty.Service the loop drives.
type Backend interface {
	Account() string
	Refresh(ctx context.Context) (*syncer.Result, error)
	Contribute(ctx context.Context, data string) (*royalty.Result, error)
	Claim(ctx context.Context, id string) (*royalty.Result, error)
	Records(term string) []record.Record
	LoadedAt() time.Time
}

var _ Backend = (*royalty.Service)(nil)

type LoopConfig struct {
	Logger    *slog.Logger
	Backend   Backend
	Lifecycle *lifecycle.Controller

	// Accounts streams account changes, typically wallet.Session.Subscribe.
	// Optional.
	Accounts <-chan string
}

func (cfg *LoopConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Backend == nil {
		return errors.New("backend is required")
	}
	if cfg.Lifecycle == nil {
		return errors.New("lifecycle controller is required")
	}
	return nil
}

// Loop owns a State and applies events to it one at a time.
type Loop struct {
	log    *slog.Logger
	cfg    LoopConfig
	events chan Event

	mu    sync.RWMutex
	state State
	subs  map[int]func(State)
	next  int

	wg sync.WaitGroup

	runMu sync.Mutex
	ctx   context.Context
}

func NewLoop(cfg LoopConfig) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st := Initial()
	st.Account = cfg.Backend.Account()
	st.Tx = cfg.Lifecycle.Snapshot()
	return &Loop{
		log:    cfg.Logger,
		cfg:    cfg,
		events: make(chan Event, EventBuffer),
		state:  st,
		subs:   make(map[int]func(State)),
		ctx:    context.Background(),
	}, nil
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// OnChange registers fn to run after every applied event. fn runs on the
// loop goroutine and must not block.
func (l *Loop) OnChange(fn func(State)) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Dispatch queues ev. It blocks while the queue is full, so OnChange
// callbacks must not call it.
func (l *Loop) Dispatch(ev Event) {
	l.events <- ev
}

// Run applies events until ctx is done, then waits for in-flight
// operations. It triggers the initial load before reading any event.
func (l *Loop) Run(ctx context.Context) error {
	l.runMu.Lock()
	l.ctx = ctx
	l.runMu.Unlock()

	unsubscribe := l.cfg.Lifecycle.OnChange(func(s lifecycle.State) {
		select {
		case l.events <- TxChanged{Tx: s}:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	if l.cfg.Accounts != nil {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.watchAccounts(ctx)
		}()
	}

	l.Refresh()

	for {
		select {
		case <-ctx.Done():
			l.wg.Wait()
			return nil
		case ev := <-l.events:
			l.apply(ev)
		}
	}
}

func (l *Loop) apply(ev Event) {
	l.mu.Lock()
	l.state = Reduce(l.state, ev)
	st := l.state
	subs := make([]func(State), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func (l *Loop) watchAccounts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case acct, ok := <-l.cfg.Accounts:
			if !ok {
				return
			}
			l.Post(ctx, AccountChanged{Account: acct})
		}
	}
}

// Post queues ev unless ctx is done first.
func (l *Loop) Post(ctx context.Context, ev Event) {
	select {
	case l.events <- ev:
	case <-ctx.Done():
	}
}

func (l *Loop) runCtx() context.Context {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.ctx
}

func (l *Loop) spawn(fn func(ctx context.Context)) {
	ctx := l.runCtx()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn(ctx)
	}()
}

// Search sets the search term.
func (l *Loop) Search(term string) { l.Dispatch(SearchChanged{Term: term}) }

// ToggleStats flips the statistics panel.
func (l *Loop) ToggleStats() { l.Dispatch(StatsToggled{}) }

// Refresh reloads records in the background.
func (l *Loop) Refresh() {
	l.Dispatch(RefreshStarted{})
	l.spawn(func(ctx context.Context) {
		res, err := l.cfg.Backend.Refresh(ctx)
		if err != nil {
			l.log.Warn("app: refresh failed", "error", err)
			l.Post(ctx, RefreshFailed{Err: err})
			return
		}
		l.Post(ctx, RecordsLoaded{Records: res.Records, LoadedAt: res.LoadedAt})
	})
}

// Contribute submits data in the background. Without a connected wallet
// or with empty data it only shows a notice and returns the reason.
func (l *Loop) Contribute(data string) error {
	if l.cfg.Backend.Account() == "" {
		l.Dispatch(NoticeShown{Text: royalty.MsgConnectWallet})
		return royalty.ErrWalletNotConnected
	}
	if data == "" {
		l.Dispatch(NoticeShown{Text: royalty.MsgEmptyContribute})
		return royalty.ErrEmptyContribution
	}

	l.Dispatch(ContributeStarted{})
	l.spawn(func(ctx context.Context) {
		_, err := l.cfg.Backend.Contribute(ctx, data)
		l.Post(ctx, ContributeFinished{Err: err})
		if err == nil {
			l.Post(ctx, l.loaded())
		}
	})
	return nil
}

// Claim claims the record id in the background. Without a connected
// wallet it only shows a notice and returns the reason.
func (l *Loop) Claim(id string) error {
	if l.cfg.Backend.Account() == "" {
		l.Dispatch(NoticeShown{Text: royalty.MsgConnectWallet})
		return royalty.ErrWalletNotConnected
	}

	l.Dispatch(ClaimStarted{ID: id})
	l.spawn(func(ctx context.Context) {
		_, err := l.cfg.Backend.Claim(ctx, id)
		l.Post(ctx, ClaimFinished{ID: id, Err: err})
		if err == nil {
			l.Post(ctx, l.loaded())
		}
	})
	return nil
}

func (l *Loop) loaded() RecordsLoaded {
	return RecordsLoaded{Records: l.cfg.Backend.Records(""), LoadedAt: l.cfg.Backend.LoadedAt()}
}
