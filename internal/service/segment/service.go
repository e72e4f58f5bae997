// Package segment implements dynamic segmentation: rule compilation into
// storage predicates, membership synchronization, and previews.
package segment

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/tidemark/recordhub-backend/internal/config"
	"github.com/tidemark/recordhub-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces
// ---------------------------------------------------------------------------

type segmentRepo interface {
	GetByID(ctx context.Context, tenantID, segmentID uuid.UUID) (*domain.Segment, error)
	MemberIDs(ctx context.Context, segmentID uuid.UUID) ([]uuid.UUID, error)
	AddMembers(ctx context.Context, segmentID uuid.UUID, ids []uuid.UUID, at time.Time) error
	RemoveMembers(ctx context.Context, segmentID uuid.UUID, ids []uuid.UUID) error
	UpdateStats(ctx context.Context, segmentID uuid.UUID, memberCount int, calculatedAt time.Time) error
}

// Population is the queryable record population of one segment target type.
// Implemented by the built-in contact and lead stores.
type Population interface {
	MatchIDs(ctx context.Context, tenantID uuid.UUID, pred sq.Sqlizer, limit int) ([]uuid.UUID, error)
	MatchCount(ctx context.Context, tenantID uuid.UUID, pred sq.Sqlizer) (int, error)
	ExistingIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Record, error)
}

type fieldRegistry interface {
	FieldsOf(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.FieldDefinition, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements segment membership computation. Segment member rows are
// never written by any other path.
type Service struct {
	log         *slog.Logger
	segments    segmentRepo
	populations map[domain.EntityType]Population
	fields      fieldRegistry
	tx          txManager
	cfg         config.SegmentsConfig
	locks       *segmentLocks
	now         func() time.Time
}

// NewService creates a new segment service. populations must hold one entry
// per allowed target entity type (CONTACT, LEAD).
func NewService(
	logger *slog.Logger,
	segments segmentRepo,
	populations map[domain.EntityType]Population,
	fields fieldRegistry,
	tx txManager,
	cfg config.SegmentsConfig,
) *Service {
	return &Service{
		log:         logger.With("service", "segment"),
		segments:    segments,
		populations: populations,
		fields:      fields,
		tx:          tx,
		cfg:         cfg,
		locks:       newSegmentLocks(),
		now:         time.Now,
	}
}
