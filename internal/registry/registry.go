// Package registry provides the process-wide field-definition registry:
// a TTL-bounded read cache over the field catalog, keyed by tenant and
// entity type, with an explicit invalidation hook for schema-mutation
// collaborators. Consumers must tolerate up to one TTL window of staleness
// after a schema change that was not explicitly invalidated.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// Catalog is the uncached field-definition read path. Implemented by the
// fielddef postgres repo.
type Catalog interface {
	ListByEntityType(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.FieldDefinition, error)
	ListReferencing(ctx context.Context, tenantID uuid.UUID, target domain.EntityType) ([]domain.FieldDefinition, error)
}

type cacheKey struct {
	tenantID   uuid.UUID
	entityType domain.EntityType
}

type cacheEntry struct {
	defs      []domain.FieldDefinition
	expiresAt time.Time
}

// Registry caches field definitions with passive TTL expiry. One instance
// is created per process and shared by reference.
type Registry struct {
	catalog Catalog
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	forward map[cacheKey]cacheEntry
	reverse map[cacheKey]cacheEntry
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock injects the time source. Used by tests to drive TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry over catalog with the given TTL.
func New(catalog Catalog, ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		catalog: catalog,
		ttl:     ttl,
		now:     time.Now,
		forward: make(map[cacheKey]cacheEntry),
		reverse: make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FieldsOf returns all field definitions of an entity type, served from
// cache within the TTL window.
func (r *Registry) FieldsOf(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.FieldDefinition, error) {
	key := cacheKey{tenantID: tenantID, entityType: entityType}

	if defs, ok := r.cached(r.forward, key); ok {
		return defs, nil
	}

	defs, err := r.catalog.ListByEntityType(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}

	r.store(r.forward, key, defs)
	return defs, nil
}

// FieldsReferencing returns every relationship field, in any entity type,
// whose target equals the given type. Cached under a separate key space
// from FieldsOf because one reverse entry aggregates fields of many types.
func (r *Registry) FieldsReferencing(ctx context.Context, tenantID uuid.UUID, target domain.EntityType) ([]domain.FieldDefinition, error) {
	key := cacheKey{tenantID: tenantID, entityType: target}

	if defs, ok := r.cached(r.reverse, key); ok {
		return defs, nil
	}

	defs, err := r.catalog.ListReferencing(ctx, tenantID, target)
	if err != nil {
		return nil, err
	}

	r.store(r.reverse, key, defs)
	return defs, nil
}

// Invalidate drops the forward cache entry for the given type and,
// conservatively, every reverse-index entry of the tenant: a mutated field
// of one type may appear in (or disappear from) any target's reverse result.
func (r *Registry) Invalidate(tenantID uuid.UUID, entityType domain.EntityType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.forward, cacheKey{tenantID: tenantID, entityType: entityType})
	for key := range r.reverse {
		if key.tenantID == tenantID {
			delete(r.reverse, key)
		}
	}
}

func (r *Registry) cached(m map[cacheKey]cacheEntry, key cacheKey) ([]domain.FieldDefinition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := m[key]
	if !ok || r.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.defs, true
}

func (r *Registry) store(m map[cacheKey]cacheEntry, key cacheKey, defs []domain.FieldDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m[key] = cacheEntry{defs: defs, expiresAt: r.now().Add(r.ttl)}
}
