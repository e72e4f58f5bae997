// Package segment implements segment, rule, and membership persistence
// using PostgreSQL. Membership rows are only ever written through
// AddMembers/RemoveMembers, which the synchronizer calls inside one
// transaction so a recalculation is observed all-or-nothing.
package segment

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tidemark/recordhub-backend/internal/adapter/postgres"
	"github.com/tidemark/recordhub-backend/internal/domain"
)

// Repo provides segment persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new segment repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type segmentRow struct {
	ID               uuid.UUID   `db:"id"`
	TenantID         uuid.UUID   `db:"tenant_id"`
	Name             string      `db:"name"`
	Type             string      `db:"type"`
	TargetEntity     string      `db:"target_entity"`
	Logic            string      `db:"logic"`
	StaticIDs        []uuid.UUID `db:"static_ids"`
	MemberCount      int         `db:"member_count"`
	LastCalculatedAt *time.Time  `db:"last_calculated_at"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

type ruleRow struct {
	ID       uuid.UUID `db:"id"`
	FieldKey string    `db:"field_key"`
	Operator string    `db:"operator"`
	Value    string    `db:"value"`
	Position int       `db:"position"`
}

const getSegmentSQL = `
SELECT id, tenant_id, name, type, target_entity, logic, static_ids,
       member_count, last_calculated_at, created_at, updated_at
FROM segments
WHERE tenant_id = $1 AND id = $2`

const getRulesSQL = `
SELECT id, field_key, operator, value, position
FROM segment_rules
WHERE segment_id = $1
ORDER BY position`

const memberIDsSQL = `
SELECT record_id FROM segment_members WHERE segment_id = $1 ORDER BY record_id`

const addMembersSQL = `
INSERT INTO segment_members (segment_id, record_id, added_at)
SELECT $1, unnest($2::uuid[]), $3
ON CONFLICT (segment_id, record_id) DO NOTHING`

const removeMembersSQL = `
DELETE FROM segment_members WHERE segment_id = $1 AND record_id = ANY($2::uuid[])`

const updateStatsSQL = `
UPDATE segments
SET member_count = $2, last_calculated_at = $3, updated_at = now()
WHERE id = $1`

const listIDsByTenantSQL = `
SELECT id FROM segments WHERE tenant_id = $1 ORDER BY created_at`

const listDueSQL = `
SELECT id FROM segments
WHERE tenant_id = $1
  AND type = 'DYNAMIC'
  AND (last_calculated_at IS NULL OR last_calculated_at < $2)
ORDER BY last_calculated_at ASC NULLS FIRST`

// GetByID returns a segment with its ordered rule set.
func (r *Repo) GetByID(ctx context.Context, tenantID, segmentID uuid.UUID) (*domain.Segment, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row segmentRow
	if err := pgxscan.Get(ctx, q, &row, getSegmentSQL, tenantID, segmentID); err != nil {
		return nil, postgres.MapError(err, "segment", segmentID)
	}

	var rules []ruleRow
	if err := pgxscan.Select(ctx, q, &rules, getRulesSQL, segmentID); err != nil {
		return nil, postgres.MapError(err, "segment rules", segmentID)
	}

	return toDomain(row, rules), nil
}

// MemberIDs returns the current member identifier set of a segment.
func (r *Repo) MemberIDs(ctx context.Context, segmentID uuid.UUID) ([]uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out []uuid.UUID
	if err := pgxscan.Select(ctx, q, &out, memberIDsSQL, segmentID); err != nil {
		return nil, postgres.MapError(err, "segment members", segmentID)
	}
	return out, nil
}

// AddMembers inserts membership rows for ids. Already-present rows are kept.
func (r *Repo) AddMembers(ctx context.Context, segmentID uuid.UUID, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	q := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := q.Exec(ctx, addMembersSQL, segmentID, ids, at); err != nil {
		return postgres.MapError(err, "segment members", segmentID)
	}
	return nil
}

// RemoveMembers deletes membership rows for ids.
func (r *Repo) RemoveMembers(ctx context.Context, segmentID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	q := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := q.Exec(ctx, removeMembersSQL, segmentID, ids); err != nil {
		return postgres.MapError(err, "segment members", segmentID)
	}
	return nil
}

// UpdateStats writes the cached member count and calculation timestamp.
func (r *Repo) UpdateStats(ctx context.Context, segmentID uuid.UUID, memberCount int, calculatedAt time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := q.Exec(ctx, updateStatsSQL, segmentID, memberCount, calculatedAt); err != nil {
		return postgres.MapError(err, "segment", segmentID)
	}
	return nil
}

// ListIDsByTenant returns all segment ids of a tenant.
func (r *Repo) ListIDsByTenant(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out []uuid.UUID
	if err := pgxscan.Select(ctx, q, &out, listIDsByTenantSQL, tenantID); err != nil {
		return nil, postgres.MapError(err, "segments", tenantID)
	}
	return out, nil
}

// ListDueForRecalc returns ids of dynamic segments whose last calculation is
// older than the threshold. Intended for the external scheduler collaborator.
func (r *Repo) ListDueForRecalc(ctx context.Context, tenantID uuid.UUID, olderThan time.Time) ([]uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out []uuid.UUID
	if err := pgxscan.Select(ctx, q, &out, listDueSQL, tenantID, olderThan); err != nil {
		return nil, postgres.MapError(err, "segments", tenantID)
	}
	return out, nil
}

func toDomain(row segmentRow, rules []ruleRow) *domain.Segment {
	seg := &domain.Segment{
		ID:               row.ID,
		TenantID:         row.TenantID,
		Name:             row.Name,
		Type:             domain.SegmentType(row.Type),
		TargetEntity:     domain.EntityType(row.TargetEntity),
		Logic:            domain.RuleLogic(row.Logic),
		StaticIDs:        row.StaticIDs,
		MemberCount:      row.MemberCount,
		LastCalculatedAt: row.LastCalculatedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	for _, r := range rules {
		seg.Rules = append(seg.Rules, domain.SegmentRule{
			ID:       r.ID,
			FieldKey: r.FieldKey,
			Operator: domain.RuleOperator(r.Operator),
			Value:    r.Value,
			Position: r.Position,
		})
	}
	return seg
}
