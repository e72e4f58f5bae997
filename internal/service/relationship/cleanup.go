package relationship

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// Cleanup repairs orphaned references after a record deletion: every field
// in any entity type whose relationship target is deletedType has matching
// values nulled out.
//
// Repair is best-effort across fields: each referencing field is repaired in
// its own transaction, a failed field is recorded in Errors, and the
// remaining fields are still processed. The scan cost is
// O(referencing fields x records of each referencing type), the primary
// scalability bound of this subsystem.
func (s *Service) Cleanup(ctx context.Context, tenantID uuid.UUID, deletedType domain.EntityType, deletedID uuid.UUID) (CleanupResult, error) {
	fields, err := s.fields.FieldsReferencing(ctx, tenantID, deletedType)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("referencing fields of %s: %w", deletedType, err)
	}

	var (
		mu      sync.Mutex
		cleaned int64
		errs    []domain.FieldError
	)

	g := &errgroup.Group{}
	g.SetLimit(s.cfg.FieldConcurrency)

	for _, field := range fields {
		g.Go(func() error {
			count, fieldErr := s.cleanupField(ctx, tenantID, field, deletedID)

			mu.Lock()
			defer mu.Unlock()
			if fieldErr != nil {
				s.log.Warn("reference cleanup failed for field",
					slog.String("entity_type", field.EntityType.String()),
					slog.String("field_key", field.Key),
					slog.String("deleted_id", deletedID.String()),
					slog.String("error", fieldErr.Error()),
				)
				errs = append(errs, domain.FieldError{Field: field.Key, Message: fieldErr.Error()})
				return nil
			}
			cleaned += count
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are collected above

	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return CleanupResult{CleanedCount: int(cleaned), Errors: errs}, nil
}

func (s *Service) cleanupField(ctx context.Context, tenantID uuid.UUID, field domain.FieldDefinition, deletedID uuid.UUID) (int64, error) {
	store, err := s.stores.For(field.EntityType)
	if err != nil {
		return 0, err
	}

	var count int64
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var clearErr error
		count, clearErr = store.ClearAttr(txCtx, tenantID, field.Key, deletedID.String())
		return clearErr
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
