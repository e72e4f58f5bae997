package entitystore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

type stubStore struct {
	entityType domain.EntityType
}

func (s *stubStore) EntityType() domain.EntityType { return s.entityType }
func (s *stubStore) Exists(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
func (s *stubStore) Get(context.Context, uuid.UUID, uuid.UUID) (*domain.Record, error) {
	return nil, domain.ErrNotFound
}
func (s *stubStore) GetByIDs(context.Context, uuid.UUID, []uuid.UUID) ([]domain.Record, error) {
	return nil, nil
}
func (s *stubStore) ExistingIDs(context.Context, uuid.UUID, []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (s *stubStore) FindByAttr(context.Context, uuid.UUID, string, string) ([]uuid.UUID, error) {
	return nil, nil
}
func (s *stubStore) ClearAttr(context.Context, uuid.UUID, string, string) (int64, error) {
	return 0, nil
}

func TestStores_For(t *testing.T) {
	t.Parallel()

	contacts := &stubStore{entityType: domain.EntityTypeContact}
	stores := New(
		map[domain.EntityType]Store{domain.EntityTypeContact: contacts},
		func(slug string) Store { return &stubStore{entityType: domain.EntityType(slug)} },
	)

	t.Run("builtin hit", func(t *testing.T) {
		store, err := stores.For(domain.EntityTypeContact)
		require.NoError(t, err)
		assert.Same(t, Store(contacts), store)
	})

	t.Run("builtin without registered store", func(t *testing.T) {
		_, err := stores.For(domain.EntityTypeLead)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("custom slug dispatches to factory", func(t *testing.T) {
		store, err := stores.For(domain.EntityType("projects"))
		require.NoError(t, err)
		assert.Equal(t, domain.EntityType("projects"), store.EntityType())
	})

	t.Run("empty entity type", func(t *testing.T) {
		_, err := stores.For("")
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})
}
