package relationship

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// RelatedOf reads the relationship value stored under fieldKey on the source
// record and fetches the referenced target record. The current model stores
// one identifier per field, so the result holds at most one record; an
// orphaned or empty reference yields an empty result.
func (s *Service) RelatedOf(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType, id uuid.UUID, fieldKey string, target domain.EntityType) ([]domain.Record, error) {
	return s.ResolvePath(ctx, tenantID, entityType, id, []domain.RelationshipHop{
		{FieldKey: fieldKey, Target: target},
	})
}

// ResolvePath traverses relationship fields hop by hop, left to right,
// carrying forward a deduplicated identifier frontier. Traversal stops early
// with an empty result as soon as any hop produces zero candidates. Zero
// hops returns an empty result by contract.
func (s *Service) ResolvePath(ctx context.Context, tenantID uuid.UUID, start domain.EntityType, startID uuid.UUID, hops []domain.RelationshipHop) ([]domain.Record, error) {
	if len(hops) == 0 {
		return nil, nil
	}

	current := start
	frontier := []uuid.UUID{startID}

	for _, hop := range hops {
		store, err := s.stores.For(current)
		if err != nil {
			return nil, err
		}

		next := make(map[uuid.UUID]struct{})
		for _, id := range frontier {
			rec, err := store.Get(ctx, tenantID, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("resolve hop %s.%s: %w", current, hop.FieldKey, err)
			}

			raw := rec.Attrs.TextOf(hop.FieldKey)
			if raw == "" {
				continue
			}
			refID, err := uuid.Parse(raw)
			if err != nil {
				// Malformed stored reference: treated as absent during traversal.
				continue
			}
			next[refID] = struct{}{}
		}

		if len(next) == 0 {
			return nil, nil
		}

		frontier = frontier[:0]
		for id := range next {
			frontier = append(frontier, id)
		}
		sort.Slice(frontier, func(i, j int) bool {
			return frontier[i].String() < frontier[j].String()
		})
		current = hop.Target
	}

	store, err := s.stores.For(current)
	if err != nil {
		return nil, err
	}
	// GetByIDs drops identifiers that no longer resolve, so orphaned
	// references on the final hop fall out here.
	return store.GetByIDs(ctx, tenantID, frontier)
}

// ReferencingRecords returns every (entity type, record, field) whose stored
// relationship value points at the given target record. It shares the
// per-field attribute scan with Cleanup; after a completed cleanup of the
// target this returns an empty list.
func (s *Service) ReferencingRecords(ctx context.Context, tenantID uuid.UUID, target domain.EntityType, targetID uuid.UUID) ([]domain.Reference, error) {
	fields, err := s.fields.FieldsReferencing(ctx, tenantID, target)
	if err != nil {
		return nil, fmt.Errorf("referencing fields of %s: %w", target, err)
	}

	var refs []domain.Reference
	for _, field := range fields {
		store, err := s.stores.For(field.EntityType)
		if err != nil {
			return nil, err
		}

		ids, err := store.FindByAttr(ctx, tenantID, field.Key, targetID.String())
		if err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", field.EntityType, field.Key, err)
		}
		for _, id := range ids {
			refs = append(refs, domain.Reference{
				EntityType: field.EntityType,
				RecordID:   id,
				FieldKey:   field.Key,
			})
		}
	}

	return refs, nil
}
