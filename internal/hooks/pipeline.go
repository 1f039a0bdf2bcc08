// Package hooks implements the synchronous, cancellable notification
// mechanism that every registry mutation goes through.
package hooks

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/serverlist/internal/logger"
)

// Listener observes an event. It may rewrite the event's fields or cancel it.
//
// ctx is marked as being inside a dispatch: registry mutations called with it,
// or with a context derived from it, are rejected instead of re-entering the
// registry. A listener must not mutate the registry with any other context;
// the dispatching mutation holds the registry's lock and such a call blocks
// forever. Hand work that needs to mutate to another goroutine instead.
type Listener func(ctx context.Context, ev Event)

type dispatchKey struct{}

// InDispatch reports whether ctx was handed to a listener by Dispatch.
func InDispatch(ctx context.Context) bool {
	v, _ := ctx.Value(dispatchKey{}).(bool)
	return v
}

type registration struct {
	id uint64
	fn Listener
}

// Pipeline holds an ordered list of listeners.
type Pipeline struct {
	mu        sync.RWMutex
	listeners []registration
	nextID    uint64
	logger    logger.Logger
}

// NewPipeline creates an empty pipeline. log may be nil.
func NewPipeline(log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{logger: log}
}

// Register appends l and returns a function that removes it again.
func (p *Pipeline) Register(l Listener) (unregister func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, registration{id: id, fn: l})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, r := range p.listeners {
			if r.id == id {
				p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered listeners.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.listeners)
}

// Dispatch runs every listener in registration order and stops at the first
// one that cancels ev. It returns true when ev was approved.
func (p *Pipeline) Dispatch(ctx context.Context, ev Event) bool {
	// Snapshot so listeners can (un)register without affecting this round.
	p.mu.RLock()
	listeners := make([]registration, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.RUnlock()

	ctx = context.WithValue(ctx, dispatchKey{}, true)
	for _, r := range listeners {
		r.fn(ctx, ev)
		if ev.Cancelled() {
			p.logger.Debug("event cancelled by listener",
				logger.String("kind", string(ev.Kind())))
			return false
		}
	}
	return true
}

// OnAddServer registers fn for add-server events only.
func (p *Pipeline) OnAddServer(fn func(ctx context.Context, ev *AddServerEvent)) func() {
	return p.Register(func(ctx context.Context, ev Event) {
		if e, ok := ev.(*AddServerEvent); ok {
			fn(ctx, e)
		}
	})
}

// OnRemoveServer registers fn for remove-server events only.
func (p *Pipeline) OnRemoveServer(fn func(ctx context.Context, ev *RemoveServerEvent)) func() {
	return p.Register(func(ctx context.Context, ev Event) {
		if e, ok := ev.(*RemoveServerEvent); ok {
			fn(ctx, e)
		}
	})
}

// OnUpdateQuery registers fn for update-query-data events only.
func (p *Pipeline) OnUpdateQuery(fn func(ctx context.Context, ev *UpdateQueryEvent)) func() {
	return p.Register(func(ctx context.Context, ev Event) {
		if e, ok := ev.(*UpdateQueryEvent); ok {
			fn(ctx, e)
		}
	})
}

// OnRemoveQuery registers fn for remove-query-data events only.
func (p *Pipeline) OnRemoveQuery(fn func(ctx context.Context, ev *RemoveQueryEvent)) func() {
	return p.Register(func(ctx context.Context, ev Event) {
		if e, ok := ev.(*RemoveQueryEvent); ok {
			fn(ctx, e)
		}
	})
}
