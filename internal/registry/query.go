package registry

import (
	"context"
	"maps"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
	"github.com/MrSnakeDoc/serverlist/internal/hooks"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/metrics"
)

// WriteQuery caches payload under (id, tag) once listeners approve.
// It fails when id has no definition. Any previous entry for the final
// (id, tag) is replaced, never merged.
func (r *Registry) WriteQuery(ctx context.Context, id, tag string, payload domain.Payload) bool {
	if r.reentrant(ctx, "query-write", id) {
		return false
	}
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if !r.Has(id) {
		return false
	}

	ev := &hooks.UpdateQueryEvent{ID: id, Tag: tag, Payload: payload}
	if !r.pipeline.Dispatch(ctx, ev) {
		r.metrics.Observe("query-write", metrics.ResultVetoed)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A listener may point the entry at another id; it must exist too.
	if _, ok := r.servers[ev.ID]; !ok {
		r.metrics.Observe("query-write", metrics.ResultRejected)
		r.logger.Warn("query data rewritten to unknown server",
			logger.String("id", ev.ID),
			logger.String("tag", ev.Tag))
		return false
	}

	tags := r.query[ev.ID]
	if tags == nil {
		tags = make(map[string]domain.QueryEntry)
		r.query[ev.ID] = tags
	}

	now := r.now()
	if prev, ok := tags[ev.Tag]; ok && now.Before(prev.CapturedAt) {
		now = prev.CapturedAt
	}
	tags[ev.Tag] = domain.QueryEntry{Payload: ev.Payload, CapturedAt: now}
	r.updateSizesLocked()
	r.metrics.Observe("query-write", metrics.ResultApplied)
	return true
}

// Query returns every cached entry of id, keyed by tag.
func (r *Registry) Query(id string) (map[string]domain.QueryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags, ok := r.query[id]
	if !ok {
		return nil, false
	}
	return maps.Clone(tags), true
}

// QueryTag returns the cached entry for (id, tag).
func (r *Registry) QueryTag(id, tag string) (domain.QueryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.query[id][tag]
	return e, ok
}

// DeleteQuery drops every cached entry of id once listeners approve.
// It returns true when there was nothing to delete.
func (r *Registry) DeleteQuery(ctx context.Context, id string) bool {
	if r.reentrant(ctx, "query-delete", id) {
		return false
	}
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.deleteQuery(ctx, id, "", true)
}

// DeleteQueryTag drops the cached entry for (id, tag) once listeners approve.
// It returns true when there was nothing to delete.
func (r *Registry) DeleteQueryTag(ctx context.Context, id, tag string) bool {
	if r.reentrant(ctx, "query-delete", id) {
		return false
	}
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.deleteQuery(ctx, id, tag, false)
}

// deleteQuery expects opMu to be held.
func (r *Registry) deleteQuery(ctx context.Context, id, tag string, all bool) bool {
	r.mu.RLock()
	tags, ok := r.query[id]
	if ok && !all {
		_, ok = tags[tag]
	}
	r.mu.RUnlock()
	if !ok {
		return true
	}

	ev := &hooks.RemoveQueryEvent{ID: id, Tag: tag, AllTags: all}
	if !r.pipeline.Dispatch(ctx, ev) {
		r.metrics.Observe("query-delete", metrics.ResultVetoed)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.AllTags {
		delete(r.query, ev.ID)
	} else if tags := r.query[ev.ID]; tags != nil {
		delete(tags, ev.Tag)
		if len(tags) == 0 {
			delete(r.query, ev.ID)
		}
	}
	r.updateSizesLocked()
	r.metrics.Observe("query-delete", metrics.ResultApplied)
	return true
}
