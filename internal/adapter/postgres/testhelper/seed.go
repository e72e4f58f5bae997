package testhelper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

func attrsJSON(t *testing.T, attrs domain.Bag) []byte {
	t.Helper()
	if attrs == nil {
		attrs = domain.Bag{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		t.Fatalf("testhelper: marshal attrs: %v", err)
	}
	return b
}

// SeedTenant creates a tenant and returns it.
func SeedTenant(t *testing.T, pool *pgxpool.Pool) domain.Tenant {
	t.Helper()
	ctx := context.Background()

	tenant := domain.Tenant{
		ID:        uuid.New(),
		Name:      "Tenant " + uniqueSuffix(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`,
		tenant.ID, tenant.Name, tenant.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedTenant: %v", err)
	}

	return tenant
}

// SeedAccount creates an account with the given name and extension attrs.
func SeedAccount(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID, name string, attrs domain.Bag) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO accounts (id, tenant_id, name, attrs) VALUES ($1, $2, $3, $4)`,
		id, tenantID, name, attrsJSON(t, attrs),
	)
	if err != nil {
		t.Fatalf("testhelper: SeedAccount: %v", err)
	}
	return id
}

// SeedContact creates a contact with the given core fields and extension attrs.
func SeedContact(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID, firstName, email string, attrs domain.Bag) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO contacts (id, tenant_id, first_name, email, attrs) VALUES ($1, $2, $3, $4, $5)`,
		id, tenantID, firstName, email, attrsJSON(t, attrs),
	)
	if err != nil {
		t.Fatalf("testhelper: SeedContact: %v", err)
	}
	return id
}

// SeedLead creates a lead with the given core fields and extension attrs.
func SeedLead(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID, firstName string, attrs domain.Bag) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO leads (id, tenant_id, first_name, attrs) VALUES ($1, $2, $3, $4)`,
		id, tenantID, firstName, attrsJSON(t, attrs),
	)
	if err != nil {
		t.Fatalf("testhelper: SeedLead: %v", err)
	}
	return id
}

// SeedCustomModule creates a custom module and returns it.
func SeedCustomModule(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID, slug string) domain.CustomModule {
	t.Helper()
	ctx := context.Background()

	m := domain.CustomModule{
		ID:       uuid.New(),
		TenantID: tenantID,
		Slug:     slug,
		Name:     slug,
	}
	err := pool.QueryRow(ctx,
		`INSERT INTO custom_modules (id, tenant_id, slug, name) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		m.ID, m.TenantID, m.Slug, m.Name,
	).Scan(&m.CreatedAt)
	if err != nil {
		t.Fatalf("testhelper: SeedCustomModule: %v", err)
	}
	return m
}

// SeedModuleRecord creates a record inside a custom module.
func SeedModuleRecord(t *testing.T, pool *pgxpool.Pool, tenantID, moduleID uuid.UUID, attrs domain.Bag) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO module_records (id, tenant_id, module_id, attrs) VALUES ($1, $2, $3, $4)`,
		id, tenantID, moduleID, attrsJSON(t, attrs),
	)
	if err != nil {
		t.Fatalf("testhelper: SeedModuleRecord: %v", err)
	}
	return id
}

// SeedFieldDefinition creates a field definition.
func SeedFieldDefinition(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID, entityType domain.EntityType, key string, kind domain.FieldKind, relationTarget *domain.EntityType) domain.FieldDefinition {
	t.Helper()
	ctx := context.Background()

	def := domain.FieldDefinition{
		ID:             uuid.New(),
		TenantID:       tenantID,
		EntityType:     entityType,
		Key:            key,
		Kind:           kind,
		RelationTarget: relationTarget,
	}

	var target *string
	if relationTarget != nil {
		s := relationTarget.String()
		target = &s
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO field_definitions (id, tenant_id, entity_type, field_key, kind, relation_target)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		def.ID, def.TenantID, def.EntityType.String(), def.Key, def.Kind.String(), target,
	).Scan(&def.CreatedAt)
	if err != nil {
		t.Fatalf("testhelper: SeedFieldDefinition: %v", err)
	}
	return def
}

// SeedSegment creates a segment with the given rules.
func SeedSegment(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID, segType domain.SegmentType, target domain.EntityType, logic domain.RuleLogic, rules []domain.SegmentRule, staticIDs []uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	if staticIDs == nil {
		staticIDs = []uuid.UUID{}
	}

	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO segments (id, tenant_id, name, type, target_entity, logic, static_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, tenantID, "Segment "+uniqueSuffix(), segType.String(), target.String(), logic.String(), staticIDs,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSegment: %v", err)
	}

	for i, r := range rules {
		_, err := pool.Exec(ctx,
			`INSERT INTO segment_rules (id, segment_id, field_key, operator, value, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), id, r.FieldKey, r.Operator.String(), r.Value, i,
		)
		if err != nil {
			t.Fatalf("testhelper: SeedSegment rule: %v", err)
		}
	}

	return id
}
