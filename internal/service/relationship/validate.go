package relationship

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// ValidateTarget checks that a stored or incoming relationship value
// resolves to an existing record of the target type within the tenant.
//
// Empty values are always valid; relationships are optional unless the
// field definition enforces them. A malformed identifier is rejected before
// any lookup. An unknown target entity type (e.g. a deleted custom module)
// is reported as an invalid result, not an error; only storage failures
// propagate as errors.
func (s *Service) ValidateTarget(ctx context.Context, tenantID uuid.UUID, target domain.EntityType, rawID string) (Validation, error) {
	if rawID == "" {
		return valid(), nil
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return invalid(fmt.Sprintf("malformed identifier %q", rawID)), nil
	}
	// uuid.Parse also accepts braced, urn-prefixed, uppercase, and
	// unhyphenated shapes. Stored values are compared as raw text by the
	// cleanup and reverse-lookup scans, so only the canonical lowercase
	// hyphenated form may pass validation.
	if rawID != id.String() {
		return invalid(fmt.Sprintf("non-canonical identifier %q, want %s", rawID, id)), nil
	}

	store, err := s.stores.For(target)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			return invalid(fmt.Sprintf("entity type %s does not exist", target)), nil
		}
		return Validation{}, err
	}

	exists, err := store.Exists(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Custom-module slug resolution failed: the type itself is gone.
			return invalid(fmt.Sprintf("entity type %s does not exist", target)), nil
		}
		return Validation{}, fmt.Errorf("existence check %s/%s: %w", target, id, err)
	}
	if !exists {
		return invalid(fmt.Sprintf("%s record %s does not exist", target, id)), nil
	}

	return valid(), nil
}

// ValidateAll applies ValidateTarget to every relationship-typed field
// present in a record payload and aggregates the outcomes per field key.
// All fields are checked even after the first failure.
func (s *Service) ValidateAll(ctx context.Context, tenantID uuid.UUID, fieldDefs []domain.FieldDefinition, recordData domain.Bag) (BatchValidation, error) {
	result := BatchValidation{
		Valid:         true,
		ErrorsByField: make(map[string]string),
	}

	for _, def := range domain.RelationshipFields(fieldDefs) {
		value, present := recordData.Get(def.Key)
		if !present {
			continue
		}
		if def.RelationTarget == nil {
			// A relationship field without a target cannot be checked.
			result.Valid = false
			result.ErrorsByField[def.Key] = "relationship field has no target entity type"
			continue
		}

		v, err := s.ValidateTarget(ctx, tenantID, *def.RelationTarget, value.AsText())
		if err != nil {
			return BatchValidation{}, err
		}
		if !v.Valid {
			result.Valid = false
			result.ErrorsByField[def.Key] = v.Error
		}
	}

	return result, nil
}
