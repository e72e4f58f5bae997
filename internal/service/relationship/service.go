// Package relationship implements the relationship integrity engine:
// write-time target validation, delete-time orphan repair, reverse lookup,
// and multi-hop path resolution over the loosely typed attribute store.
package relationship

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tidemark/recordhub-backend/internal/config"
	"github.com/tidemark/recordhub-backend/internal/domain"
	"github.com/tidemark/recordhub-backend/internal/service/entitystore"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type fieldRegistry interface {
	FieldsOf(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.FieldDefinition, error)
	FieldsReferencing(ctx context.Context, tenantID uuid.UUID, target domain.EntityType) ([]domain.FieldDefinition, error)
}

type storeResolver interface {
	For(entityType domain.EntityType) (entitystore.Store, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the relationship integrity logic.
type Service struct {
	log    *slog.Logger
	fields fieldRegistry
	stores storeResolver
	tx     txManager
	cfg    config.CleanupConfig
}

// defaultFieldConcurrency caps parallel field repairs when the config does
// not set a limit. errgroup.SetLimit(0) would let no worker start.
const defaultFieldConcurrency = 4

// NewService creates a new relationship service.
func NewService(
	logger *slog.Logger,
	fields fieldRegistry,
	stores storeResolver,
	tx txManager,
	cfg config.CleanupConfig,
) *Service {
	if cfg.FieldConcurrency <= 0 {
		cfg.FieldConcurrency = defaultFieldConcurrency
	}
	return &Service{
		log:    logger.With("service", "relationship"),
		fields: fields,
		stores: stores,
		tx:     tx,
		cfg:    cfg,
	}
}
