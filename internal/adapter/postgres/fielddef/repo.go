// Package fielddef implements the field-definition catalog using PostgreSQL.
// It is the read path behind the field registry; schema-administration
// tooling owns the write path but shares this repo.
package fielddef

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tidemark/recordhub-backend/internal/adapter/postgres"
	"github.com/tidemark/recordhub-backend/internal/domain"
)

// Repo provides field-definition persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new field-definition repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type row struct {
	ID             uuid.UUID `db:"id"`
	TenantID       uuid.UUID `db:"tenant_id"`
	EntityType     string    `db:"entity_type"`
	FieldKey       string    `db:"field_key"`
	Kind           string    `db:"kind"`
	Required       bool      `db:"required"`
	RelationTarget *string   `db:"relation_target"`
	CreatedAt      time.Time `db:"created_at"`
}

const listByTypeSQL = `
SELECT id, tenant_id, entity_type, field_key, kind, required, relation_target, created_at
FROM field_definitions
WHERE tenant_id = $1 AND entity_type = $2
ORDER BY field_key`

const listReferencingSQL = `
SELECT id, tenant_id, entity_type, field_key, kind, required, relation_target, created_at
FROM field_definitions
WHERE tenant_id = $1 AND kind = 'RELATIONSHIP' AND relation_target = $2
ORDER BY entity_type, field_key`

const insertSQL = `
INSERT INTO field_definitions (id, tenant_id, entity_type, field_key, kind, required, relation_target)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`

const deleteSQL = `
DELETE FROM field_definitions
WHERE tenant_id = $1 AND entity_type = $2 AND field_key = $3`

// ListByEntityType returns all field definitions of one entity type.
func (r *Repo) ListByEntityType(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.FieldDefinition, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, listByTypeSQL, tenantID, entityType.String()); err != nil {
		return nil, postgres.MapError(err, "field definitions", entityType)
	}

	return toDomain(rows), nil
}

// ListReferencing returns every relationship field, in any entity type,
// whose target equals the given type. This is the reverse index consulted
// by the integrity cleanup engine.
func (r *Repo) ListReferencing(ctx context.Context, tenantID uuid.UUID, target domain.EntityType) ([]domain.FieldDefinition, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []row
	if err := pgxscan.Select(ctx, q, &rows, listReferencingSQL, tenantID, target.String()); err != nil {
		return nil, postgres.MapError(err, "referencing fields", target)
	}

	return toDomain(rows), nil
}

// Create inserts a new field definition. Callers are responsible for
// invalidating the field registry afterwards.
func (r *Repo) Create(ctx context.Context, def domain.FieldDefinition) (domain.FieldDefinition, error) {
	if err := def.Validate(); err != nil {
		return domain.FieldDefinition{}, err
	}
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}

	var target *string
	if def.RelationTarget != nil {
		s := def.RelationTarget.String()
		target = &s
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	err := q.QueryRow(ctx, insertSQL,
		def.ID, def.TenantID, def.EntityType.String(), def.Key,
		def.Kind.String(), def.Required, target,
	).Scan(&def.CreatedAt)
	if err != nil {
		return domain.FieldDefinition{}, postgres.MapError(err, "field definition", def.Key)
	}

	return def, nil
}

// Delete removes a field definition by key. Callers are responsible for
// invalidating the field registry afterwards.
func (r *Repo) Delete(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType, key string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx, deleteSQL, tenantID, entityType.String(), key)
	if err != nil {
		return postgres.MapError(err, "field definition", key)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("field definition %s: %w", key, domain.ErrNotFound)
	}
	return nil
}

func toDomain(rows []row) []domain.FieldDefinition {
	defs := make([]domain.FieldDefinition, 0, len(rows))
	for _, r := range rows {
		def := domain.FieldDefinition{
			ID:         r.ID,
			TenantID:   r.TenantID,
			EntityType: domain.EntityType(r.EntityType),
			Key:        r.FieldKey,
			Kind:       domain.FieldKind(r.Kind),
			Required:   r.Required,
			CreatedAt:  r.CreatedAt,
		}
		if r.RelationTarget != nil {
			t := domain.EntityType(*r.RelationTarget)
			def.RelationTarget = &t
		}
		defs = append(defs, def)
	}
	return defs
}
