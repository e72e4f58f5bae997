// Package builtin implements record stores for the fixed core entity types
// (contacts, leads, accounts). One Store serves one typed table; typed core
// columns are folded into the attribute bag on read so consumers see the
// same Record shape as custom-module records.
package builtin

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tidemark/recordhub-backend/internal/adapter/postgres"
	"github.com/tidemark/recordhub-backend/internal/domain"
)

// tables maps built-in entity types to their backing tables.
var tables = map[domain.EntityType]string{
	domain.EntityTypeContact: "contacts",
	domain.EntityTypeLead:    "leads",
	domain.EntityTypeAccount: "accounts",
}

// TableFor returns the backing table of a built-in entity type.
func TableFor(t domain.EntityType) (string, bool) {
	tbl, ok := tables[t]
	return tbl, ok
}

// Store provides read and reference-repair access to one built-in entity table.
type Store struct {
	pool       *pgxpool.Pool
	entityType domain.EntityType
	table      string
}

// New creates a store for the given built-in entity type.
func New(pool *pgxpool.Pool, entityType domain.EntityType) (*Store, error) {
	table, ok := tables[entityType]
	if !ok {
		return nil, fmt.Errorf("entity type %s: %w", entityType, domain.ErrNotFound)
	}
	return &Store{pool: pool, entityType: entityType, table: table}, nil
}

// MustNew is New that panics on unknown entity types. Intended for wiring
// code where the type is a compile-time constant.
func MustNew(pool *pgxpool.Pool, entityType domain.EntityType) *Store {
	s, err := New(pool, entityType)
	if err != nil {
		panic(err)
	}
	return s
}

// EntityType returns the entity type this store serves.
func (s *Store) EntityType() domain.EntityType { return s.entityType }

type recordRow struct {
	ID        uuid.UUID  `db:"id"`
	TenantID  uuid.UUID  `db:"tenant_id"`
	Attrs     domain.Bag `db:"attrs"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// recordSelect folds the typed core columns into the attribute bag.
// Explicit extension-bag keys win over core columns on collision.
func (s *Store) recordSelect() string {
	return fmt.Sprintf(`
SELECT t.id, t.tenant_id, t.created_at, t.updated_at,
       (to_jsonb(t) - 'id' - 'tenant_id' - 'attrs' - 'created_at' - 'updated_at')
         || coalesce(t.attrs, '{}'::jsonb) AS attrs
FROM %s t`, s.table)
}

// Exists reports whether a record with the given id exists in the tenant.
func (s *Store) Exists(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	q := postgres.QuerierFromCtx(ctx, s.pool)

	var exists bool
	err := q.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE tenant_id = $1 AND id = $2)`, s.table),
		tenantID, id,
	).Scan(&exists)
	if err != nil {
		return false, postgres.MapError(err, s.table, id)
	}
	return exists, nil
}

// Get returns one record by id, with core columns folded into Attrs.
func (s *Store) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Record, error) {
	q := postgres.QuerierFromCtx(ctx, s.pool)

	var row recordRow
	err := pgxscan.Get(ctx, q, &row, s.recordSelect()+` WHERE t.tenant_id = $1 AND t.id = $2`, tenantID, id)
	if err != nil {
		return nil, postgres.MapError(err, s.table, id)
	}

	rec := s.toDomain(row)
	return &rec, nil
}

// GetByIDs returns the records whose ids are in ids. Missing ids are
// silently omitted.
func (s *Store) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := postgres.QuerierFromCtx(ctx, s.pool)

	var rows []recordRow
	err := pgxscan.Select(ctx, q, &rows,
		s.recordSelect()+` WHERE t.tenant_id = $1 AND t.id = ANY($2::uuid[]) ORDER BY t.id`,
		tenantID, ids)
	if err != nil {
		return nil, postgres.MapError(err, s.table, tenantID)
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
	q := postgres.QuerierFromCtx(ctx, s.pool)

	var out []uuid.UUID
	err := pgxscan.Select(ctx, q, &out,
		fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1 AND id = ANY($2::uuid[]) ORDER BY id`, s.table),
		tenantID, ids)
	if err != nil {
		return nil, postgres.MapError(err, s.table, tenantID)
	}
	return out, nil
}

// FindByAttr returns ids of records whose bag value under key equals value.
// This is the single-field reverse-reference scan; its cost is linear in the
// table size unless the attrs GIN index applies.
func (s *Store) FindByAttr(ctx context.Context, tenantID uuid.UUID, key, value string) ([]uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, s.pool)

	var out []uuid.UUID
	err := pgxscan.Select(ctx, q, &out,
		fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1 AND attrs ->> $2 = $3 ORDER BY id`, s.table),
		tenantID, key, value)
	if err != nil {
		return nil, postgres.MapError(err, s.table, key)
	}
	return out, nil
}

// ClearAttr sets the bag value under key to JSON null on every record where
// it currently equals value, returning the number of repaired records.
func (s *Store) ClearAttr(ctx context.Context, tenantID uuid.UUID, key, value string) (int64, error) {
	q := postgres.QuerierFromCtx(ctx, s.pool)

	tag, err := q.Exec(ctx,
		fmt.Sprintf(`
UPDATE %s
SET attrs = jsonb_set(attrs, ARRAY[$2], 'null'::jsonb), updated_at = now()
WHERE tenant_id = $1 AND attrs ->> $2 = $3`, s.table),
		tenantID, key, value)
	if err != nil {
		return 0, postgres.MapError(err, s.table, key)
	}
	return tag.RowsAffected(), nil
}

// MatchIDs executes a compiled rule predicate against the population,
// returning matching record ids. A nil predicate matches the whole
// tenant-scoped population. limit 0 means no limit.
func (s *Store) MatchIDs(ctx context.Context, tenantID uuid.UUID, pred sq.Sqlizer, limit int) ([]uuid.UUID, error) {
	qb := sq.Select(s.table + ".id").
		From(s.table).
		Where(sq.Eq{s.table + ".tenant_id": tenantID}).
		OrderBy(s.table + ".id").
		PlaceholderFormat(sq.Dollar)
	if pred != nil {
		qb = qb.Where(pred)
	}
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build match query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, s.pool)
	var out []uuid.UUID
	if err := pgxscan.Select(ctx, q, &out, sqlStr, args...); err != nil {
		return nil, postgres.MapError(err, s.table, tenantID)
	}
	return out, nil
}

// MatchCount counts the records matching a compiled rule predicate.
func (s *Store) MatchCount(ctx context.Context, tenantID uuid.UUID, pred sq.Sqlizer) (int, error) {
	qb := sq.Select("count(*)").
		From(s.table).
		Where(sq.Eq{s.table + ".tenant_id": tenantID}).
		PlaceholderFormat(sq.Dollar)
	if pred != nil {
		qb = qb.Where(pred)
	}

	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, s.pool)
	var count int
	if err := q.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, postgres.MapError(err, s.table, tenantID)
	}
	return count, nil
}

func (s *Store) toDomain(row recordRow) domain.Record {
	return domain.Record{
		ID:         row.ID,
		TenantID:   row.TenantID,
		EntityType: s.entityType,
		Attrs:      row.Attrs,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}
