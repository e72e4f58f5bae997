package segment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// PreviewResult is a non-authoritative evaluation of a rule set: the total
// match count plus a capped record sample for UI display. Stored membership
// is not touched.
type PreviewResult struct {
	Count  int
	Sample []domain.Record
}

// Preview compiles and executes a rule set against the target population
// without mutating membership. limit caps the sample size; 0 applies the
// configured default, values above the configured maximum are clamped.
func (s *Service) Preview(ctx context.Context, tenantID uuid.UUID, target domain.EntityType, rules []domain.SegmentRule, logic domain.RuleLogic, limit int) (PreviewResult, error) {
	if !target.IsValidPopulation() {
		return PreviewResult{}, fmt.Errorf("entity type %s is not a segment population: %w", target, domain.ErrValidation)
	}
	pop, ok := s.populations[target]
	if !ok {
		return PreviewResult{}, fmt.Errorf("no population for %s: %w", target, domain.ErrValidation)
	}

	if limit <= 0 {
		limit = s.cfg.PreviewLimit
	}
	if limit > s.cfg.PreviewMaxLimit {
		limit = s.cfg.PreviewMaxLimit
	}

	fields, err := s.fields.FieldsOf(ctx, tenantID, target)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("fields of %s: %w", target, err)
	}

	pred, skipped, err := compileRules(target, fields, rules, logic)
	if err != nil {
		return PreviewResult{}, err
	}
	s.warnSkipped(tenantID, skipped)

	count, err := pop.MatchCount(ctx, tenantID, pred)
	if err != nil {
		return PreviewResult{}, err
	}

	ids, err := pop.MatchIDs(ctx, tenantID, pred, limit)
	if err != nil {
		return PreviewResult{}, err
	}

	sample, err := pop.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return PreviewResult{}, err
	}

	return PreviewResult{Count: count, Sample: sample}, nil
}
