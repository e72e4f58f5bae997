package segment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	segmentrepo "github.com/tidemark/recordhub-backend/internal/adapter/postgres/segment"
	"github.com/tidemark/recordhub-backend/internal/adapter/postgres/testhelper"
	"github.com/tidemark/recordhub-backend/internal/domain"
)

func newRepo(t *testing.T) (*segmentrepo.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return segmentrepo.New(pool), pool
}

func TestRepo_GetByID_WithOrderedRules(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	tenant := testhelper.SeedTenant(t, pool)
	segID := testhelper.SeedSegment(t, pool, tenant.ID, domain.SegmentTypeDynamic,
		domain.EntityTypeContact, domain.RuleLogicAnd,
		[]domain.SegmentRule{
			{FieldKey: "company", Operator: domain.OperatorContains, Value: "Acme"},
			{FieldKey: "email", Operator: domain.OperatorIsNotEmpty},
		}, nil)

	seg, err := repo.GetByID(ctx, tenant.ID, segID)
	if err != nil {
		t.Fatalf("GetByID: unexpected error: %v", err)
	}

	if seg.Type != domain.SegmentTypeDynamic {
		t.Errorf("Type = %s, want DYNAMIC", seg.Type)
	}
	if seg.TargetEntity != domain.EntityTypeContact {
		t.Errorf("TargetEntity = %s, want CONTACT", seg.TargetEntity)
	}
	if len(seg.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(seg.Rules))
	}
	if seg.Rules[0].FieldKey != "company" || seg.Rules[1].FieldKey != "email" {
		t.Errorf("rules out of position order: %q, %q", seg.Rules[0].FieldKey, seg.Rules[1].FieldKey)
	}
	if seg.LastCalculatedAt != nil {
		t.Error("fresh segment must have nil LastCalculatedAt")
	}
}

func TestRepo_GetByID_NotFound(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	tenant := testhelper.SeedTenant(t, pool)

	_, err := repo.GetByID(ctx, tenant.ID, uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_GetByID_TenantIsolation(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	tenantA := testhelper.SeedTenant(t, pool)
	tenantB := testhelper.SeedTenant(t, pool)
	segID := testhelper.SeedSegment(t, pool, tenantA.ID, domain.SegmentTypeStatic,
		domain.EntityTypeLead, domain.RuleLogicAnd, nil, nil)

	_, err := repo.GetByID(ctx, tenantB.ID, segID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from another tenant, got %v", err)
	}
}

func TestRepo_Membership_AddRemoveIdempotent(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	tenant := testhelper.SeedTenant(t, pool)
	segID := testhelper.SeedSegment(t, pool, tenant.ID, domain.SegmentTypeDynamic,
		domain.EntityTypeContact, domain.RuleLogicAnd, nil, nil)

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	if err := repo.AddMembers(ctx, segID, []uuid.UUID{a, b}, now); err != nil {
		t.Fatalf("AddMembers: unexpected error: %v", err)
	}

	// Re-adding an existing member keeps the row instead of failing.
	if err := repo.AddMembers(ctx, segID, []uuid.UUID{b, c}, now); err != nil {
		t.Fatalf("AddMembers overlap: unexpected error: %v", err)
	}

	ids, err := repo.MemberIDs(ctx, segID)
	if err != nil {
		t.Fatalf("MemberIDs: unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("MemberIDs: got %d, want 3", len(ids))
	}

	if err := repo.RemoveMembers(ctx, segID, []uuid.UUID{a, c}); err != nil {
		t.Fatalf("RemoveMembers: unexpected error: %v", err)
	}

	ids, err = repo.MemberIDs(ctx, segID)
	if err != nil {
		t.Fatalf("MemberIDs: unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != b {
		t.Fatalf("MemberIDs = %v, want [%s]", ids, b)
	}

	// Empty slices are no-ops.
	if err := repo.AddMembers(ctx, segID, nil, now); err != nil {
		t.Fatalf("AddMembers(nil): unexpected error: %v", err)
	}
	if err := repo.RemoveMembers(ctx, segID, nil); err != nil {
		t.Fatalf("RemoveMembers(nil): unexpected error: %v", err)
	}
}

func TestRepo_UpdateStats(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	tenant := testhelper.SeedTenant(t, pool)
	segID := testhelper.SeedSegment(t, pool, tenant.ID, domain.SegmentTypeDynamic,
		domain.EntityTypeLead, domain.RuleLogicOr, nil, nil)

	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.UpdateStats(ctx, segID, 17, at); err != nil {
		t.Fatalf("UpdateStats: unexpected error: %v", err)
	}

	seg, err := repo.GetByID(ctx, tenant.ID, segID)
	if err != nil {
		t.Fatalf("GetByID: unexpected error: %v", err)
	}
	if seg.MemberCount != 17 {
		t.Errorf("MemberCount = %d, want 17", seg.MemberCount)
	}
	if seg.LastCalculatedAt == nil || !seg.LastCalculatedAt.Equal(at) {
		t.Errorf("LastCalculatedAt = %v, want %v", seg.LastCalculatedAt, at)
	}
}

func TestRepo_ListDueForRecalc(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	tenant := testhelper.SeedTenant(t, pool)

	never := testhelper.SeedSegment(t, pool, tenant.ID, domain.SegmentTypeDynamic,
		domain.EntityTypeContact, domain.RuleLogicAnd, nil, nil)
	stale := testhelper.SeedSegment(t, pool, tenant.ID, domain.SegmentTypeDynamic,
		domain.EntityTypeContact, domain.RuleLogicAnd, nil, nil)
	fresh := testhelper.SeedSegment(t, pool, tenant.ID, domain.SegmentTypeDynamic,
		domain.EntityTypeContact, domain.RuleLogicAnd, nil, nil)
	static := testhelper.SeedSegment(t, pool, tenant.ID, domain.SegmentTypeStatic,
		domain.EntityTypeContact, domain.RuleLogicAnd, nil, nil)

	now := time.Now().UTC()
	if err := repo.UpdateStats(ctx, stale, 0, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("UpdateStats stale: %v", err)
	}
	if err := repo.UpdateStats(ctx, fresh, 0, now); err != nil {
		t.Fatalf("UpdateStats fresh: %v", err)
	}
	if err := repo.UpdateStats(ctx, static, 0, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("UpdateStats static: %v", err)
	}

	due, err := repo.ListDueForRecalc(ctx, tenant.ID, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListDueForRecalc: unexpected error: %v", err)
	}

	if len(due) != 2 {
		t.Fatalf("ListDueForRecalc: got %d ids, want 2 (never + stale)", len(due))
	}
	// Never-calculated segments sort first.
	if due[0] != never {
		t.Errorf("due[0] = %s, want never-calculated %s", due[0], never)
	}
	if due[1] != stale {
		t.Errorf("due[1] = %s, want stale %s", due[1], stale)
	}
}

func TestRepo_StaticIDsRoundTrip(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	tenant := testhelper.SeedTenant(t, pool)
	a, b := uuid.New(), uuid.New()
	segID := testhelper.SeedSegment(t, pool, tenant.ID, domain.SegmentTypeStatic,
		domain.EntityTypeLead, domain.RuleLogicAnd, nil, []uuid.UUID{a, b})

	seg, err := repo.GetByID(ctx, tenant.ID, segID)
	if err != nil {
		t.Fatalf("GetByID: unexpected error: %v", err)
	}
	if len(seg.StaticIDs) != 2 || seg.StaticIDs[0] != a || seg.StaticIDs[1] != b {
		t.Fatalf("StaticIDs = %v, want [%s %s]", seg.StaticIDs, a, b)
	}
}
