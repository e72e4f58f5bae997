package domain

import (
	"time"

	"github.com/google/uuid"
)

// Segment is a tenant-scoped audience over Contacts or Leads. DYNAMIC
// segments carry an ordered rule set combined under Logic; STATIC segments
// carry an explicit identifier list. MemberCount and LastCalculatedAt are
// caches maintained exclusively by the membership synchronizer.
type Segment struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Name             string
	Type             SegmentType
	TargetEntity     EntityType
	Logic            RuleLogic
	Rules            []SegmentRule
	StaticIDs        []uuid.UUID
	MemberCount      int
	LastCalculatedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SegmentRule is one (field, operator, value) condition. Value is ignored by
// operators that do not need one (IS_EMPTY / IS_NOT_EMPTY).
type SegmentRule struct {
	ID       uuid.UUID
	FieldKey string
	Operator RuleOperator
	Value    string
	Position int
}

// Validate checks structural consistency of the segment definition.
// Rule field keys are resolved later, at compilation time, against the field
// registry; unknown keys there degrade leniently rather than failing here.
func (s Segment) Validate() error {
	if s.Name == "" {
		return NewValidationError("name", "required")
	}
	if !s.Type.IsValid() {
		return NewValidationError("type", "unknown segment type "+s.Type.String())
	}
	if !s.TargetEntity.IsValidPopulation() {
		return NewValidationError("target_entity", "segments may target CONTACT or LEAD only")
	}
	if s.Type == SegmentTypeDynamic {
		if !s.Logic.IsValid() {
			return NewValidationError("logic", "unknown rule logic "+s.Logic.String())
		}
		for _, r := range s.Rules {
			if r.FieldKey == "" {
				return NewValidationError("rules", "rule field key is required")
			}
			if !r.Operator.IsValid() {
				return NewValidationError("rules", "unknown operator "+r.Operator.String())
			}
		}
	}
	return nil
}

// SegmentMember links a segment to one record of its target population.
type SegmentMember struct {
	SegmentID uuid.UUID
	RecordID  uuid.UUID
	AddedAt   time.Time
}
