package domain

// EntityType identifies an entity population. The three built-in types have
// fixed core columns plus a schemaless extension bag; any other non-empty
// value is treated as the slug of a tenant-defined custom module whose
// records are entirely schemaless.
type EntityType string

const (
	EntityTypeContact EntityType = "CONTACT"
	EntityTypeLead    EntityType = "LEAD"
	EntityTypeAccount EntityType = "ACCOUNT"
)

func (t EntityType) String() string { return string(t) }

// IsBuiltin reports whether the type is one of the fixed core entities.
func (t EntityType) IsBuiltin() bool {
	switch t {
	case EntityTypeContact, EntityTypeLead, EntityTypeAccount:
		return true
	}
	return false
}

// IsValidPopulation reports whether segments may target this type.
func (t EntityType) IsValidPopulation() bool {
	return t == EntityTypeContact || t == EntityTypeLead
}

// FieldKind is the declared value kind of a field definition.
type FieldKind string

const (
	FieldKindText         FieldKind = "TEXT"
	FieldKindNumber       FieldKind = "NUMBER"
	FieldKindBoolean      FieldKind = "BOOLEAN"
	FieldKindDate         FieldKind = "DATE"
	FieldKindSelect       FieldKind = "SELECT"
	FieldKindMultiSelect  FieldKind = "MULTI_SELECT"
	FieldKindRelationship FieldKind = "RELATIONSHIP"
)

func (k FieldKind) String() string { return string(k) }

func (k FieldKind) IsValid() bool {
	switch k {
	case FieldKindText, FieldKindNumber, FieldKindBoolean, FieldKindDate,
		FieldKindSelect, FieldKindMultiSelect, FieldKindRelationship:
		return true
	}
	return false
}

// SegmentType distinguishes rule-driven segments from fixed member lists.
type SegmentType string

const (
	SegmentTypeStatic  SegmentType = "STATIC"
	SegmentTypeDynamic SegmentType = "DYNAMIC"
)

func (t SegmentType) String() string { return string(t) }

func (t SegmentType) IsValid() bool {
	return t == SegmentTypeStatic || t == SegmentTypeDynamic
}

// RuleLogic is the combinator applied across a segment's rules.
type RuleLogic string

const (
	RuleLogicAnd RuleLogic = "AND"
	RuleLogicOr  RuleLogic = "OR"
)

func (l RuleLogic) String() string { return string(l) }

func (l RuleLogic) IsValid() bool {
	return l == RuleLogicAnd || l == RuleLogicOr
}

// RuleOperator is the comparison applied by a single segment rule.
type RuleOperator string

const (
	OperatorEquals      RuleOperator = "EQUALS"
	OperatorNotEquals   RuleOperator = "NOT_EQUALS"
	OperatorContains    RuleOperator = "CONTAINS"
	OperatorNotContains RuleOperator = "NOT_CONTAINS"
	OperatorStartsWith  RuleOperator = "STARTS_WITH"
	OperatorEndsWith    RuleOperator = "ENDS_WITH"
	OperatorGreaterThan RuleOperator = "GREATER_THAN"
	OperatorLessThan    RuleOperator = "LESS_THAN"
	OperatorIsEmpty     RuleOperator = "IS_EMPTY"
	OperatorIsNotEmpty  RuleOperator = "IS_NOT_EMPTY"
)

func (o RuleOperator) String() string { return string(o) }

func (o RuleOperator) IsValid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains,
		OperatorStartsWith, OperatorEndsWith, OperatorGreaterThan, OperatorLessThan,
		OperatorIsEmpty, OperatorIsNotEmpty:
		return true
	}
	return false
}

// NeedsValue reports whether the operator compares against a rule value.
// IS_EMPTY / IS_NOT_EMPTY operate on the stored value alone.
func (o RuleOperator) NeedsValue() bool {
	return o != OperatorIsEmpty && o != OperatorIsNotEmpty
}
