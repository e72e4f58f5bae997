package segment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark/recordhub-backend/internal/config"
	"github.com/tidemark/recordhub-backend/internal/domain"
)

// ===========================================================================
// Manual mocks (moq-style with func fields)
// ===========================================================================

type mockSegmentRepo struct {
	GetByIDFunc       func(ctx context.Context, tenantID, segmentID uuid.UUID) (*domain.Segment, error)
	MemberIDsFunc     func(ctx context.Context, segmentID uuid.UUID) ([]uuid.UUID, error)
	AddMembersFunc    func(ctx context.Context, segmentID uuid.UUID, ids []uuid.UUID, at time.Time) error
	RemoveMembersFunc func(ctx context.Context, segmentID uuid.UUID, ids []uuid.UUID) error
	UpdateStatsFunc   func(ctx context.Context, segmentID uuid.UUID, memberCount int, calculatedAt time.Time) error
}

func (m *mockSegmentRepo) GetByID(ctx context.Context, tenantID, segmentID uuid.UUID) (*domain.Segment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, segmentID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockSegmentRepo) MemberIDs(ctx context.Context, segmentID uuid.UUID) ([]uuid.UUID, error) {
	if m.MemberIDsFunc != nil {
		return m.MemberIDsFunc(ctx, segmentID)
	}
	return nil, nil
}

func (m *mockSegmentRepo) AddMembers(ctx context.Context, segmentID uuid.UUID, ids []uuid.UUID, at time.Time) error {
	if m.AddMembersFunc != nil {
		return m.AddMembersFunc(ctx, segmentID, ids, at)
	}
	return nil
}

func (m *mockSegmentRepo) RemoveMembers(ctx context.Context, segmentID uuid.UUID, ids []uuid.UUID) error {
	if m.RemoveMembersFunc != nil {
		return m.RemoveMembersFunc(ctx, segmentID, ids)
	}
	return nil
}

func (m *mockSegmentRepo) UpdateStats(ctx context.Context, segmentID uuid.UUID, memberCount int, calculatedAt time.Time) error {
	if m.UpdateStatsFunc != nil {
		return m.UpdateStatsFunc(ctx, segmentID, memberCount, calculatedAt)
	}
	return nil
}

type mockPopulation struct {
	MatchIDsFunc    func(ctx context.Context, tenantID uuid.UUID, pred sq.Sqlizer, limit int) ([]uuid.UUID, error)
	MatchCountFunc  func(ctx context.Context, tenantID uuid.UUID, pred sq.Sqlizer) (int, error)
	ExistingIDsFunc func(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	GetByIDsFunc    func(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Record, error)
}

func (m *mockPopulation) MatchIDs(ctx context.Context, tenantID uuid.UUID, pred sq.Sqlizer, limit int) ([]uuid.UUID, error) {
	if m.MatchIDsFunc != nil {
		return m.MatchIDsFunc(ctx, tenantID, pred, limit)
	}
	return nil, nil
}

func (m *mockPopulation) MatchCount(ctx context.Context, tenantID uuid.UUID, pred sq.Sqlizer) (int, error) {
	if m.MatchCountFunc != nil {
		return m.MatchCountFunc(ctx, tenantID, pred)
	}
	return 0, nil
}

func (m *mockPopulation) ExistingIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if m.ExistingIDsFunc != nil {
		return m.ExistingIDsFunc(ctx, tenantID, ids)
	}
	return ids, nil
}

func (m *mockPopulation) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Record, error) {
	if m.GetByIDsFunc != nil {
		return m.GetByIDsFunc(ctx, tenantID, ids)
	}
	records := make([]domain.Record, len(ids))
	for i, id := range ids {
		records[i] = domain.Record{ID: id, TenantID: tenantID}
	}
	return records, nil
}

type mockFieldRegistry struct {
	FieldsOfFunc func(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.FieldDefinition, error)
}

func (m *mockFieldRegistry) FieldsOf(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.FieldDefinition, error) {
	if m.FieldsOfFunc != nil {
		return m.FieldsOfFunc(ctx, tenantID, entityType)
	}
	return nil, nil
}

type mockTxManager struct{}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ===========================================================================
// Helpers
// ===========================================================================

type testDeps struct {
	segments *mockSegmentRepo
	contacts *mockPopulation
	leads    *mockPopulation
	fields   *mockFieldRegistry
}

func newTestService(cfg config.SegmentsConfig) (*Service, *testDeps) {
	deps := &testDeps{
		segments: &mockSegmentRepo{},
		contacts: &mockPopulation{},
		leads:    &mockPopulation{},
		fields:   &mockFieldRegistry{},
	}
	svc := NewService(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		deps.segments,
		map[domain.EntityType]Population{
			domain.EntityTypeContact: deps.contacts,
			domain.EntityTypeLead:    deps.leads,
		},
		deps.fields,
		&mockTxManager{},
		cfg,
	)
	return svc, deps
}

func defaultCfg() config.SegmentsConfig {
	return config.SegmentsConfig{PreviewLimit: 25, PreviewMaxLimit: 100, RecalcStaleness: time.Hour}
}

func dynamicSegment(tenantID, segmentID uuid.UUID, rules []domain.SegmentRule) *domain.Segment {
	return &domain.Segment{
		ID:           segmentID,
		TenantID:     tenantID,
		Name:         "test",
		Type:         domain.SegmentTypeDynamic,
		TargetEntity: domain.EntityTypeContact,
		Logic:        domain.RuleLogicAnd,
		Rules:        rules,
	}
}

// ===========================================================================
// Recalculate
// ===========================================================================

func TestService_Recalculate_AppliesDiff(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(defaultCfg())

	tenantID := uuid.New()
	segmentID := uuid.New()
	keep := uuid.New()
	add := uuid.New()
	drop := uuid.New()

	deps.segments.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.Segment, error) {
		return dynamicSegment(tenantID, segmentID, []domain.SegmentRule{
			{FieldKey: "firstName", Operator: domain.OperatorEquals, Value: "Ada"},
		}), nil
	}
	deps.contacts.MatchIDsFunc = func(_ context.Context, _ uuid.UUID, pred sq.Sqlizer, _ int) ([]uuid.UUID, error) {
		require.NotNil(t, pred)
		return []uuid.UUID{keep, add}, nil
	}
	deps.segments.MemberIDsFunc = func(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
		return []uuid.UUID{keep, drop}, nil
	}

	var addedIDs, removedIDs []uuid.UUID
	var statsCount int
	deps.segments.AddMembersFunc = func(_ context.Context, _ uuid.UUID, ids []uuid.UUID, _ time.Time) error {
		addedIDs = ids
		return nil
	}
	deps.segments.RemoveMembersFunc = func(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
		removedIDs = ids
		return nil
	}
	deps.segments.UpdateStatsFunc = func(_ context.Context, _ uuid.UUID, count int, _ time.Time) error {
		statsCount = count
		return nil
	}

	result, err := svc.Recalculate(context.Background(), tenantID, segmentID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.MemberCount)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []uuid.UUID{add}, addedIDs)
	assert.Equal(t, []uuid.UUID{drop}, removedIDs)
	assert.Equal(t, 2, statsCount)
}

func TestService_Recalculate_SecondRunIsNoop(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(defaultCfg())

	tenantID := uuid.New()
	segmentID := uuid.New()
	members := []uuid.UUID{uuid.New(), uuid.New()}

	deps.segments.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.Segment, error) {
		return dynamicSegment(tenantID, segmentID, nil), nil
	}
	deps.contacts.MatchIDsFunc = func(_ context.Context, _ uuid.UUID, pred sq.Sqlizer, _ int) ([]uuid.UUID, error) {
		assert.Nil(t, pred)
		return members, nil
	}
	deps.segments.MemberIDsFunc = func(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
		return members, nil
	}

	result, err := svc.Recalculate(context.Background(), tenantID, segmentID)
	require.NoError(t, err)

	assert.Equal(t, 2, result.MemberCount)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 0, result.Removed)
}

func TestService_Recalculate_StaticFiltersDeletedRecords(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(defaultCfg())

	tenantID := uuid.New()
	segmentID := uuid.New()
	alive := uuid.New()
	deleted := uuid.New()

	deps.segments.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.Segment, error) {
		return &domain.Segment{
			ID:           segmentID,
			TenantID:     tenantID,
			Name:         "static",
			Type:         domain.SegmentTypeStatic,
			TargetEntity: domain.EntityTypeLead,
			StaticIDs:    []uuid.UUID{alive, deleted},
		}, nil
	}
	deps.leads.ExistingIDsFunc = func(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
		assert.Equal(t, []uuid.UUID{alive, deleted}, ids)
		return []uuid.UUID{alive}, nil
	}

	var rulesCompiled bool
	deps.fields.FieldsOfFunc = func(_ context.Context, _ uuid.UUID, _ domain.EntityType) ([]domain.FieldDefinition, error) {
		rulesCompiled = true
		return nil, nil
	}

	result, err := svc.Recalculate(context.Background(), tenantID, segmentID)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MemberCount)
	assert.False(t, rulesCompiled)
}

func TestService_Recalculate_NotFound(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(defaultCfg())

	_, err := svc.Recalculate(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Recalculate_TxFailureDiscardsResult(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(defaultCfg())

	tenantID := uuid.New()
	segmentID := uuid.New()

	deps.segments.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.Segment, error) {
		return dynamicSegment(tenantID, segmentID, nil), nil
	}
	deps.segments.UpdateStatsFunc = func(_ context.Context, _ uuid.UUID, _ int, _ time.Time) error {
		return errors.New("connection reset")
	}

	_, err := svc.Recalculate(context.Background(), tenantID, segmentID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update stats")
}

func TestService_Recalculate_SerializedPerSegment(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(defaultCfg())

	tenantID := uuid.New()
	segmentID := uuid.New()

	deps.segments.GetByIDFunc = func(_ context.Context, _, _ uuid.UUID) (*domain.Segment, error) {
		return dynamicSegment(tenantID, segmentID, nil), nil
	}

	var mu sync.Mutex
	var inFlight, maxInFlight int
	deps.segments.MemberIDsFunc = func(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Recalculate(context.Background(), tenantID, segmentID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}

// ===========================================================================
// Preview
// ===========================================================================

func TestService_Preview_ReturnsCountAndSample(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(defaultCfg())

	tenantID := uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	deps.contacts.MatchCountFunc = func(_ context.Context, _ uuid.UUID, _ sq.Sqlizer) (int, error) {
		return 42, nil
	}
	deps.contacts.MatchIDsFunc = func(_ context.Context, _ uuid.UUID, _ sq.Sqlizer, limit int) ([]uuid.UUID, error) {
		assert.Equal(t, 25, limit)
		return ids, nil
	}

	result, err := svc.Preview(context.Background(), tenantID, domain.EntityTypeContact,
		[]domain.SegmentRule{{FieldKey: "firstName", Operator: domain.OperatorEquals, Value: "Ada"}},
		domain.RuleLogicAnd, 0)
	require.NoError(t, err)

	assert.Equal(t, 42, result.Count)
	require.Len(t, result.Sample, 2)
	assert.Equal(t, ids[0], result.Sample[0].ID)
}

func TestService_Preview_LimitClamp(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(defaultCfg())

	var gotLimit int
	deps.leads.MatchIDsFunc = func(_ context.Context, _ uuid.UUID, _ sq.Sqlizer, limit int) ([]uuid.UUID, error) {
		gotLimit = limit
		return nil, nil
	}

	_, err := svc.Preview(context.Background(), uuid.New(), domain.EntityTypeLead, nil, domain.RuleLogicAnd, 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
}

func TestService_Preview_DoesNotTouchMembership(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(defaultCfg())

	deps.segments.AddMembersFunc = func(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _ time.Time) error {
		t.Fatal("preview must not add members")
		return nil
	}
	deps.segments.RemoveMembersFunc = func(_ context.Context, _ uuid.UUID, _ []uuid.UUID) error {
		t.Fatal("preview must not remove members")
		return nil
	}

	_, err := svc.Preview(context.Background(), uuid.New(), domain.EntityTypeContact, nil, domain.RuleLogicAnd, 10)
	require.NoError(t, err)
}

func TestService_Preview_RejectsInvalidPopulation(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(defaultCfg())

	_, err := svc.Preview(context.Background(), uuid.New(), domain.EntityTypeAccount, nil, domain.RuleLogicAnd, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ===========================================================================
// diffIDs
// ===========================================================================

func TestDiffIDs(t *testing.T) {
	t.Parallel()

	a, b, c := uuid.New(), uuid.New(), uuid.New()

	added, removed := diffIDs([]uuid.UUID{a, b}, []uuid.UUID{b, c})
	assert.Equal(t, []uuid.UUID{a}, added)
	assert.Equal(t, []uuid.UUID{c}, removed)

	added, removed = diffIDs(nil, nil)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}
