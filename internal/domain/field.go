package domain

import (
	"time"

	"github.com/google/uuid"
)

// FieldDefinition is the tenant-scoped schema metadata for one field of an
// entity type. RelationTarget is set iff Kind is RELATIONSHIP and names the
// entity type the stored identifier points into.
type FieldDefinition struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	EntityType     EntityType
	Key            string
	Kind           FieldKind
	Required       bool
	RelationTarget *EntityType
	CreatedAt      time.Time
}

// IsRelationship reports whether the field holds a cross-entity reference.
func (f FieldDefinition) IsRelationship() bool {
	return f.Kind == FieldKindRelationship
}

// Validate checks structural consistency of the definition.
func (f FieldDefinition) Validate() error {
	if f.Key == "" {
		return NewValidationError("key", "required")
	}
	if !f.Kind.IsValid() {
		return NewValidationError("kind", "unknown field kind "+f.Kind.String())
	}
	if f.Kind == FieldKindRelationship {
		if f.RelationTarget == nil || *f.RelationTarget == "" {
			return NewValidationError("relation_target", "required for relationship fields")
		}
	} else if f.RelationTarget != nil {
		return NewValidationError("relation_target", "only allowed for relationship fields")
	}
	return nil
}

// RelationshipFields filters defs down to relationship-kind fields.
func RelationshipFields(defs []FieldDefinition) []FieldDefinition {
	var out []FieldDefinition
	for _, d := range defs {
		if d.IsRelationship() {
			out = append(out, d)
		}
	}
	return out
}
