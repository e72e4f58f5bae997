package segment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark/recordhub-backend/internal/domain"
)

// RecalcResult reports one completed membership synchronization.
type RecalcResult struct {
	MemberCount  int
	Added        int
	Removed      int
	CalculatedAt time.Time
}

// Recalculate recomputes a segment's membership and applies the difference.
//
// DYNAMIC segments compile their rule set and execute it against the target
// population; STATIC segments keep the intersection of their explicit list
// with records that still exist. Removals, additions, and the cached stats
// are applied inside one transaction, so partial application is never
// observable. Runs for the same segment are serialized; different segments
// proceed independently.
func (s *Service) Recalculate(ctx context.Context, tenantID, segmentID uuid.UUID) (RecalcResult, error) {
	release := s.locks.acquire(segmentID)
	defer release()

	seg, err := s.segments.GetByID(ctx, tenantID, segmentID)
	if err != nil {
		return RecalcResult{}, err
	}

	pop, ok := s.populations[seg.TargetEntity]
	if !ok {
		return RecalcResult{}, fmt.Errorf("segment %s targets %s: %w", segmentID, seg.TargetEntity, domain.ErrValidation)
	}

	matches, err := s.matchingIDs(ctx, seg, pop)
	if err != nil {
		return RecalcResult{}, err
	}

	calculatedAt := s.now().UTC()
	var added, removed []uuid.UUID

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.segments.MemberIDs(txCtx, segmentID)
		if err != nil {
			return err
		}

		added, removed = diffIDs(matches, current)

		if err := s.segments.RemoveMembers(txCtx, segmentID, removed); err != nil {
			return fmt.Errorf("remove members: %w", err)
		}
		if err := s.segments.AddMembers(txCtx, segmentID, added, calculatedAt); err != nil {
			return fmt.Errorf("add members: %w", err)
		}
		if err := s.segments.UpdateStats(txCtx, segmentID, len(matches), calculatedAt); err != nil {
			return fmt.Errorf("update stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return RecalcResult{}, err
	}

	s.log.Info("segment recalculated",
		slog.String("segment_id", segmentID.String()),
		slog.Int("member_count", len(matches)),
		slog.Int("added", len(added)),
		slog.Int("removed", len(removed)),
	)

	return RecalcResult{
		MemberCount:  len(matches),
		Added:        len(added),
		Removed:      len(removed),
		CalculatedAt: calculatedAt,
	}, nil
}

func (s *Service) matchingIDs(ctx context.Context, seg *domain.Segment, pop Population) ([]uuid.UUID, error) {
	if seg.Type == domain.SegmentTypeStatic {
		return pop.ExistingIDs(ctx, seg.TenantID, seg.StaticIDs)
	}

	fields, err := s.fields.FieldsOf(ctx, seg.TenantID, seg.TargetEntity)
	if err != nil {
		return nil, fmt.Errorf("fields of %s: %w", seg.TargetEntity, err)
	}

	pred, skipped, err := compileRules(seg.TargetEntity, fields, seg.Rules, seg.Logic)
	if err != nil {
		return nil, err
	}
	s.warnSkipped(seg.TenantID, skipped)

	return pop.MatchIDs(ctx, seg.TenantID, pred, 0)
}

// warnSkipped surfaces leniently dropped rules. Dropping understates
// membership silently, so every skip is logged.
func (s *Service) warnSkipped(tenantID uuid.UUID, skipped []domain.SegmentRule) {
	for _, rule := range skipped {
		s.log.Warn("segment rule skipped during compilation",
			slog.String("tenant_id", tenantID.String()),
			slog.String("field_key", rule.FieldKey),
			slog.String("operator", rule.Operator.String()),
		)
	}
}

// diffIDs computes added = matches − current and removed = current − matches.
func diffIDs(matches, current []uuid.UUID) (added, removed []uuid.UUID) {
	matchSet := make(map[uuid.UUID]struct{}, len(matches))
	for _, id := range matches {
		matchSet[id] = struct{}{}
	}
	currentSet := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}

	for _, id := range matches {
		if _, ok := currentSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if _, ok := matchSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
