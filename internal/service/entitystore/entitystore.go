// Package entitystore defines the uniform per-entity-type record store
// interface and the dispatch table that selects the right implementation:
// one typed store per built-in entity, one generic store bound per custom
// module slug. Dispatch is tagged by entity-type identifier, never reflective.
package entitystore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// Store is the record access surface shared by relationship validation,
// integrity cleanup, and path resolution.
type Store interface {
	EntityType() domain.EntityType
	Exists(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error)
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Record, error)
	ExistingIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	FindByAttr(ctx context.Context, tenantID uuid.UUID, key, value string) ([]uuid.UUID, error)
	ClearAttr(ctx context.Context, tenantID uuid.UUID, key, value string) (int64, error)
}

// CustomFactory builds a Store bound to a custom-module slug.
type CustomFactory func(slug string) Store

// Stores dispatches entity types to their Store implementation.
type Stores struct {
	builtin map[domain.EntityType]Store
	custom  CustomFactory
}

// New creates the dispatch table. builtin maps each built-in type to its
// typed store; custom builds slug-bound stores for everything else.
func New(builtin map[domain.EntityType]Store, custom CustomFactory) *Stores {
	return &Stores{builtin: builtin, custom: custom}
}

// For returns the store serving the given entity type.
func (s *Stores) For(entityType domain.EntityType) (Store, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entity type is empty: %w", domain.ErrValidation)
	}
	if entityType.IsBuiltin() {
		store, ok := s.builtin[entityType]
		if !ok {
			return nil, fmt.Errorf("entity type %s has no store: %w", entityType, domain.ErrNotFound)
		}
		return store, nil
	}
	return s.custom(string(entityType)), nil
}
