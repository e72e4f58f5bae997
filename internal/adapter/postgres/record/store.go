// Package record implements the generic record store for custom modules.
// One Store is bound to a module slug; every operation first resolves the
// module within the tenant, then works on module_records rows whose
// attributes are entirely schemaless.
package record

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tidemark/recordhub-backend/internal/adapter/postgres"
	"github.com/tidemark/recordhub-backend/internal/domain"
)

// moduleResolver resolves a tenant-scoped module slug. Implemented by the
// module repo.
type moduleResolver interface {
	GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (domain.CustomModule, error)
}

// Store provides read and reference-repair access to one custom module's records.
type Store struct {
	pool    *pgxpool.Pool
	modules moduleResolver
	slug    string
}

// New creates a store bound to the given module slug.
func New(pool *pgxpool.Pool, modules moduleResolver, slug string) *Store {
	return &Store{pool: pool, modules: modules, slug: slug}
}

// EntityType returns the module slug as an entity type.
func (s *Store) EntityType() domain.EntityType { return domain.EntityType(s.slug) }

type recordRow struct {
	ID        uuid.UUID  `db:"id"`
	TenantID  uuid.UUID  `db:"tenant_id"`
	Attrs     domain.Bag `db:"attrs"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

const recordSelect = `
SELECT id, tenant_id, attrs, created_at, updated_at
FROM module_records`

func (s *Store) resolve(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, error) {
	m, err := s.modules.GetBySlug(ctx, tenantID, s.slug)
	if err != nil {
		return uuid.Nil, err
	}
	return m.ID, nil
}

// Exists reports whether a record with the given id exists in the module.
func (s *Store) Exists(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	moduleID, err := s.resolve(ctx, tenantID)
	if err != nil {
		return false, err
	}

	q := postgres.QuerierFromCtx(ctx, s.pool)
	var exists bool
	err = q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM module_records WHERE tenant_id = $1 AND module_id = $2 AND id = $3)`,
		tenantID, moduleID, id,
	).Scan(&exists)
	if err != nil {
		return false, postgres.MapError(err, "module record", id)
	}
	return exists, nil
}

// Get returns one module record by id.
func (s *Store) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error) {
	moduleID, err := s.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	q := postgres.QuerierFromCtx(ctx, s.pool)
	var row recordRow
	err = pgxscan.Get(ctx, q, &row,
		recordSelect+` WHERE tenant_id = $1 AND module_id = $2 AND id = $3`,
		tenantID, moduleID, id)
	if err != nil {
		return nil, postgres.MapError(err, "module record", id)
	}

	rec := s.toDomain(row)
	return &rec, nil
}

// GetByIDs returns the module records whose ids are in ids.
func (s *Store) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	moduleID, err := s.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	q := postgres.QuerierFromCtx(ctx, s.pool)
	var rows []recordRow
	err = pgxscan.Select(ctx, q, &rows,
		recordSelect+` WHERE tenant_id = $1 AND module_id = $2 AND id = ANY($3::uuid[]) ORDER BY id`,
		tenantID, moduleID, ids)
	if err != nil {
		return nil, postgres.MapError(err, "module records", s.slug)
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, s.toDomain(row))
	}
	return records, nil
}

// ExistingIDs filters ids down to those that resolve to existing records.
func (s *Store) ExistingIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	moduleID, err := s.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	q := postgres.QuerierFromCtx(ctx, s.pool)
	var out []uuid.UUID
	err = pgxscan.Select(ctx, q, &out,
		`SELECT id FROM module_records WHERE tenant_id = $1 AND module_id = $2 AND id = ANY($3::uuid[]) ORDER BY id`,
		tenantID, moduleID, ids)
	if err != nil {
		return nil, postgres.MapError(err, "module records", s.slug)
	}
	return out, nil
}

// FindByAttr returns ids of records whose attribute under key equals value.
func (s *Store) FindByAttr(ctx context.Context, tenantID uuid.UUID, key, value string) ([]uuid.UUID, error) {
	moduleID, err := s.resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	q := postgres.QuerierFromCtx(ctx, s.pool)
	var out []uuid.UUID
	err = pgxscan.Select(ctx, q, &out,
		`SELECT id FROM module_records WHERE tenant_id = $1 AND module_id = $2 AND attrs ->> $3 = $4 ORDER BY id`,
		tenantID, moduleID, key, value)
	if err != nil {
		return nil, postgres.MapError(err, "module records", key)
	}
	return out, nil
}

// ClearAttr sets the attribute under key to JSON null on every record where
// it currently equals value, returning the number of repaired records.
func (s *Store) ClearAttr(ctx context.Context, tenantID uuid.UUID, key, value string) (int64, error) {
	moduleID, err := s.resolve(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	q := postgres.QuerierFromCtx(ctx, s.pool)
	tag, err := q.Exec(ctx,
		`UPDATE module_records
SET attrs = jsonb_set(attrs, ARRAY[$3], 'null'::jsonb), updated_at = now()
WHERE tenant_id = $1 AND module_id = $2 AND attrs ->> $3 = $4`,
		tenantID, moduleID, key, value)
	if err != nil {
		return 0, postgres.MapError(err, "module records", key)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) toDomain(row recordRow) domain.Record {
	return domain.Record{
		ID:         row.ID,
		TenantID:   row.TenantID,
		EntityType: domain.EntityType(s.slug),
		Attrs:      row.Attrs,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}
