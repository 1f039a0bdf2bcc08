// Package registry keeps the named peer server definitions and the
// per-server cache of status query results.
//
// Every mutation is announced on a hooks.Pipeline first; listeners may rewrite
// or cancel it. Mutations are serialized, reads are not blocked by a running
// dispatch so listeners can inspect the registry. Listeners may not mutate
// it: calls made with the listener's context fail, calls made with an
// unrelated context deadlock (see hooks.Listener).
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
	"github.com/MrSnakeDoc/serverlist/internal/hooks"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/metrics"
)

// CfgTag names the server list in the persistence backend.
const CfgTag = "serverlist"

// Persister stores the ordered server map durably.
type Persister interface {
	Load(ctx context.Context, tag string) ([]domain.NamedServer, error)
	Save(ctx context.Context, tag string, servers []domain.NamedServer) error
}

// Options configures a Registry. Without a Persister the list is kept in
// memory only.
type Options struct {
	Persister Persister
	Pipeline  *hooks.Pipeline
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Registry is safe for concurrent use.
type Registry struct {
	// opMu serializes mutations end to end (lookup, dispatch, mutate, persist).
	opMu sync.Mutex
	// mu guards the maps below.
	mu      sync.RWMutex
	ids     []string
	servers map[string]domain.Server
	query   map[string]map[string]domain.QueryEntry

	persister Persister
	pipeline  *hooks.Pipeline
	logger    logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates an empty registry. Call Load to fill it from the persister.
func New(opts Options) *Registry {
	if opts.Pipeline == nil {
		opts.Pipeline = hooks.NewPipeline(opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		servers:   make(map[string]domain.Server),
		query:     make(map[string]map[string]domain.QueryEntry),
		persister: opts.Persister,
		pipeline:  opts.Pipeline,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
}

// Pipeline returns the hook pipeline mutations are dispatched on.
func (r *Registry) Pipeline() *hooks.Pipeline {
	return r.pipeline
}

// Load replaces the in-memory definitions with the persisted ones.
// The query cache is left untouched apart from entries of ids that vanished.
func (r *Registry) Load(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	list, err := r.persister.Load(ctx, CfgTag)
	if err != nil {
		return err
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids = make([]string, 0, len(list))
	r.servers = make(map[string]domain.Server, len(list))
	for _, ns := range list {
		if _, dup := r.servers[ns.ID]; !dup {
			r.ids = append(r.ids, ns.ID)
		}
		r.servers[ns.ID] = ns.Server
	}
	for id := range r.query {
		if _, ok := r.servers[id]; !ok {
			delete(r.query, id)
		}
	}
	r.updateSizesLocked()

	r.logger.Info("server list loaded", logger.Int("count", len(r.ids)))
	return nil
}

// IDs returns the server ids in insertion order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Snapshot returns every definition in insertion order.
func (r *Registry) Snapshot() []domain.NamedServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Has reports whether id is configured.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.servers[id]
	return ok
}

// Get returns the definition stored under id.
func (r *Registry) Get(id string) (domain.Server, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.servers[id]
	return s, ok
}

// Attr returns a single attribute of id, or def when either is missing.
func (r *Registry) Attr(id, name string, def any) any {
	s, ok := r.Get(id)
	if !ok {
		return def
	}
	v, ok := s.Attr(name)
	if !ok {
		return def
	}
	return v
}

// Add stores srv under id once listeners approve. Listeners may change both;
// the event's final values are stored. An existing id is overwritten.
func (r *Registry) Add(ctx context.Context, id string, srv domain.Server) bool {
	if r.reentrant(ctx, "add", id) {
		return false
	}
	r.opMu.Lock()
	defer r.opMu.Unlock()

	ev := &hooks.AddServerEvent{ID: id, Server: srv}
	if !r.pipeline.Dispatch(ctx, ev) {
		r.metrics.Observe("add", metrics.ResultVetoed)
		return false
	}

	r.mu.Lock()
	if _, exists := r.servers[ev.ID]; !exists {
		r.ids = append(r.ids, ev.ID)
	}
	r.servers[ev.ID] = ev.Server
	r.updateSizesLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(ctx, snap)
	r.metrics.Observe("add", metrics.ResultApplied)
	r.logger.Debug("server added", logger.String("id", ev.ID))
	return true
}

// Remove drops id and all of its cached query data once listeners approve.
// Removing an unknown id is a successful no-op.
func (r *Registry) Remove(ctx context.Context, id string) bool {
	if r.reentrant(ctx, "rm", id) {
		return false
	}
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if !r.Has(id) {
		return true
	}

	ev := &hooks.RemoveServerEvent{ID: id}
	if !r.pipeline.Dispatch(ctx, ev) {
		r.metrics.Observe("rm", metrics.ResultVetoed)
		return false
	}
	id = ev.ID

	if !r.deleteQuery(ctx, id, "", true) {
		r.metrics.Observe("rm", metrics.ResultVetoed)
		return false
	}

	r.mu.Lock()
	if _, ok := r.servers[id]; !ok {
		r.mu.Unlock()
		return true
	}
	delete(r.servers, id)
	for i, v := range r.ids {
		if v == id {
			r.ids = append(r.ids[:i:i], r.ids[i+1:]...)
			break
		}
	}
	r.updateSizesLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(ctx, snap)
	r.metrics.Observe("rm", metrics.ResultApplied)
	r.logger.Debug("server removed", logger.String("id", id))
	return true
}

func (r *Registry) persist(ctx context.Context, snap []domain.NamedServer) {
	if r.persister == nil {
		return
	}
	if err := r.persister.Save(ctx, CfgTag, snap); err != nil {
		r.metrics.PersistFailed()
		r.logger.Warn("failed to save server list", logger.Error(err))
	}
}

// reentrant rejects mutations issued from inside a listener.
func (r *Registry) reentrant(ctx context.Context, op, id string) bool {
	if !hooks.InDispatch(ctx) {
		return false
	}
	r.metrics.Observe(op, metrics.ResultRejected)
	r.logger.Warn("rejected registry mutation from inside a listener",
		logger.String("op", op),
		logger.String("id", id))
	return true
}

func (r *Registry) snapshotLocked() []domain.NamedServer {
	out := make([]domain.NamedServer, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, domain.NamedServer{ID: id, Server: r.servers[id]})
	}
	return out
}

func (r *Registry) updateSizesLocked() {
	if r.metrics == nil {
		return
	}
	entries := 0
	for _, tags := range r.query {
		entries += len(tags)
	}
	r.metrics.SetSizes(len(r.servers), entries)
}
