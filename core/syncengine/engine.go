package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/edugrade/core"
)

// State is the sync status of the local snapshot relative to the remote store.
type State string

const (
	StateSynced  State = "synced"
	StatePending State = "pending"
	StateSyncing State = "syncing"
	StateOffline State = "offline"
)

// PushFunc uploads the current snapshot to the remote store.
// It is never cancelled mid-flight; a hung call leaves the engine in
// StateSyncing until it resolves or errors.
type PushFunc func(ctx context.Context) error

// Engine tracks whether the local snapshot is synced, pending, syncing
// or offline, and schedules debounced best-effort pushes. Failed pushes
// are retried on the next debounce cycle; edits are never discarded.
type Engine struct {
	push     PushFunc
	logger   core.Logger
	debounce time.Duration
	clock    Clock

	mu     sync.Mutex
	state  State // underlying: synced|pending|syncing
	online bool
	dirty  bool // mutation recorded while a push was in flight
	timer  Timer
}

func New(push PushFunc, debounce time.Duration, logger core.Logger, clock ...Clock) *Engine {
	ck := Clock(nil)
	if len(clock) > 0 {
		ck = clock[0]
	}
	if ck == nil {
		ck = NewClock()
	}
	return &Engine{
		push:     push,
		logger:   logger,
		debounce: debounce,
		clock:    ck,
		state:    StateSynced,
		online:   true,
	}
}

// Status returns the displayed state: connectivity loss masks the
// underlying pending/synced value with StateOffline.
func (e *Engine) Status() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.online {
		return StateOffline
	}
	return e.state
}

func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// NoteMutation records an accepted mutation. A push already in flight is
// left alone; its result will re-arm the debounce timer.
func (e *Engine) NoteMutation() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateSyncing {
		e.dirty = true
		return
	}
	e.state = StatePending
	if e.online {
		e.restartTimerLocked()
	}
}

// SetOnline records a connectivity change; regaining connectivity
// resumes pushing if edits are pending.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.online == online {
		return
	}
	e.online = online
	if !online {
		e.stopTimerLocked()
		return
	}
	if e.state == StatePending {
		e.restartTimerLocked()
	}
}

// Flush pushes immediately when edits are pending; used on logout.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	if !e.online || e.state != StatePending {
		e.mu.Unlock()
		return nil
	}
	e.stopTimerLocked()
	e.state = StateSyncing
	e.mu.Unlock()

	return e.finishPush(e.push(ctx))
}

// Stop cancels any scheduled push; pending edits stay pending.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
}

// restartTimerLocked cancels and re-arms the debounce timer; timers are
// never stacked, otherwise bursts would fire duplicate pushes.
func (e *Engine) restartTimerLocked() {
	e.stopTimerLocked()
	e.timer = e.clock.AfterFunc(e.debounce, e.onDebounce)
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) onDebounce() {
	e.mu.Lock()
	if !e.online || e.state != StatePending {
		e.mu.Unlock()
		return
	}
	e.state = StateSyncing
	e.mu.Unlock()

	_ = e.finishPush(e.push(context.Background()))
}

func (e *Engine) finishPush(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		if e.logger != nil {
			e.logger.Warn("sync push failed; will retry", err)
		}
		e.state = StatePending
		e.dirty = false
		if e.online {
			e.restartTimerLocked()
		}
		return err
	}
	if e.dirty {
		// edits arrived mid-flight; schedule the next cycle
		e.dirty = false
		e.state = StatePending
		if e.online {
			e.restartTimerLocked()
		}
		return nil
	}
	e.state = StateSynced
	return nil
}
