// Package module implements the custom-module catalog using PostgreSQL.
// Custom modules are tenant-defined entity types identified by slug.
package module

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tidemark/recordhub-backend/internal/adapter/postgres"
	"github.com/tidemark/recordhub-backend/internal/domain"
)

// Repo provides custom-module persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new custom-module repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const getBySlugSQL = `
SELECT id, tenant_id, slug, name, created_at
FROM custom_modules
WHERE tenant_id = $1 AND slug = $2`

const listByTenantSQL = `
SELECT id, tenant_id, slug, name, created_at
FROM custom_modules
WHERE tenant_id = $1
ORDER BY slug`

// GetBySlug resolves a custom module by its tenant-scoped slug.
func (r *Repo) GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (domain.CustomModule, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var m domain.CustomModule
	err := q.QueryRow(ctx, getBySlugSQL, tenantID, slug).
		Scan(&m.ID, &m.TenantID, &m.Slug, &m.Name, &m.CreatedAt)
	if err != nil {
		return domain.CustomModule{}, postgres.MapError(err, "custom module", slug)
	}

	return m, nil
}

// ListByTenant returns all custom modules of a tenant.
func (r *Repo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.CustomModule, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var modules []domain.CustomModule
	if err := pgxscan.Select(ctx, q, &modules, listByTenantSQL, tenantID); err != nil {
		return nil, postgres.MapError(err, "custom modules", tenantID)
	}

	return modules, nil
}
