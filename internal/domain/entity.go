package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the isolation boundary for all records and configuration.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Record is the uniform read model for any entity, built-in or custom.
// Built-in stores fold their typed core columns into Attrs on read so that
// relationship traversal and rule evaluation see a single shape.
type Record struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	EntityType EntityType
	Attrs      Bag
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CustomModule is a tenant-defined entity type, identified by slug. Its
// records live in the generic record store with fully schemaless attributes.
type CustomModule struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Slug      string
	Name      string
	CreatedAt time.Time
}

// Reference is one reverse-lookup hit: a field on a specific record whose
// stored relationship value points at the looked-up target.
type Reference struct {
	EntityType EntityType
	RecordID   uuid.UUID
	FieldKey   string
}

// RelationshipHop is one step of a relationship path: follow FieldKey on the
// current entity type into Target.
type RelationshipHop struct {
	FieldKey string
	Target   EntityType
}
