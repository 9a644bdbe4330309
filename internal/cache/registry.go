// Package cache provides per-operation record cache scopes.
//
// A scope is opened by an orchestrator, passed by reference through the
// propagation engine and disposed when the operation ends. Open scopes are
// held in a go-cache registry whose expiry is only a safety net: every use
// of a scope pushes its expiry forward, so a scope that outlives its TTL
// was abandoned by its caller. Expiry is logged and reported through the
// eviction hook.
package cache

import (
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roach88/cascade/internal/ir"
)

// DefaultTTL bounds how long an undisposed scope is retained.
const DefaultTTL = 60 * time.Second

// Registry holds the open scopes. Safe for concurrent use.
type Registry struct {
	scopes  *gocache.Cache
	ttl     time.Duration
	onEvict func(scopeID string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithEvictionHook is called when a scope expires without being disposed.
func WithEvictionHook(fn func(scopeID string)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

// NewRegistry creates a registry. A ttl <= 0 uses DefaultTTL.
func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{scopes: gocache.New(ttl, ttl), ttl: ttl}
	for _, opt := range opts {
		opt(r)
	}

	r.scopes.OnEvicted(func(id string, v any) {
		s, ok := v.(*Scope)
		if !ok {
			return
		}
		already, records := s.markDisposed()
		if already {
			return
		}
		slog.Warn("cache scope expired without dispose",
			"scope_id", id,
			"records", records,
			"ttl", ttl)
		if r.onEvict != nil {
			r.onEvict(id)
		}
	})
	return r
}

// Open returns the scope for id, creating it if needed.
func (r *Registry) Open(id string) *Scope {
	if v, ok := r.scopes.Get(id); ok {
		return v.(*Scope)
	}
	s := newScope(id)
	s.refreshEvery = r.ttl / 2
	s.refreshed = time.Now()
	s.refresh = func() {
		r.scopes.Set(id, s, gocache.DefaultExpiration)
	}
	r.scopes.Set(id, s, gocache.DefaultExpiration)
	return s
}

// Scope returns an open scope.
func (r *Registry) Scope(id string) (*Scope, bool) {
	v, ok := r.scopes.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Scope), true
}

// Dispose releases a scope. Disposing an unknown scope is a no-op.
func (r *Registry) Dispose(id string) {
	v, ok := r.scopes.Get(id)
	if !ok {
		return
	}
	v.(*Scope).markDisposed()
	r.scopes.Delete(id)
}

// Len returns the number of open scopes.
func (r *Registry) Len() int {
	return r.scopes.ItemCount()
}

// Get returns a record from scope cacheID.
func (r *Registry) Get(cacheID, modelID, id string) (ir.Record, bool) {
	s, ok := r.Scope(cacheID)
	if !ok {
		return ir.Record{}, false
	}
	return s.Get(modelID, id)
}

// Put caches a record in scope cacheID, opening it if needed.
func (r *Registry) Put(cacheID string, rec ir.Record) {
	r.Open(cacheID).Put(rec)
}

// MarkDeleted marks a record deleted in scope cacheID, opening it if
// needed.
func (r *Registry) MarkDeleted(cacheID, modelID, id string) {
	r.Open(cacheID).MarkDeleted(modelID, id)
}

// IsDeleted reports whether a record is marked deleted in scope cacheID.
func (r *Registry) IsDeleted(cacheID, modelID, id string) bool {
	s, ok := r.Scope(cacheID)
	return ok && s.IsDeleted(modelID, id)
}

// Warm bulk-loads records of one model into scope cacheID.
func (r *Registry) Warm(cacheID, modelID string, records []ir.Record) {
	r.Open(cacheID).Warm(modelID, records)
}
