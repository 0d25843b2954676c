package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/rubric"
	"sel_rubric_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is a DistributionStore with the same compare-and-swap semantics as the repository.
type memoryStore struct {
	mu     sync.Mutex
	rows   map[model.CohortKey]model.CohortDistribution
	nextID int

	findErr   error
	createErr error
	updateErr error
	alwaysCAS bool // UpdateCounts always loses
	raceOnce  bool // first Create reports a duplicate after another writer inserted
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[model.CohortKey]model.CohortDistribution)}
}

func (m *memoryStore) Find(_ context.Context, key model.CohortKey) (*model.CohortDistribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	row, ok := m.rows[key]
	if !ok {
		return nil, nil
	}
	row.SetDistribution(row.Distribution())
	return &row, nil
}

func (m *memoryStore) Create(_ context.Context, d *model.CohortDistribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	key := d.Key()
	if m.raceOnce {
		m.raceOnce = false
		m.nextID++
		row := *model.NewCohortDistribution(key, rubric.NewDistribution())
		row.ID = fmt.Sprintf("row-%d", m.nextID)
		m.rows[key] = row
		return repository.ErrDuplicateKey
	}
	if _, ok := m.rows[key]; ok {
		return repository.ErrDuplicateKey
	}
	m.nextID++
	d.ID = fmt.Sprintf("row-%d", m.nextID)
	m.rows[key] = *d
	return nil
}

func (m *memoryStore) UpdateCounts(_ context.Context, id string, expectedVersion int, dist rubric.Distribution) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return false, m.updateErr
	}
	if m.alwaysCAS {
		return false, nil
	}
	for key, row := range m.rows {
		if row.ID != id {
			continue
		}
		if row.Version != expectedVersion {
			return false, nil
		}
		row.SetDistribution(dist)
		row.Version++
		m.rows[key] = row
		return true, nil
	}
	return false, nil
}

func (m *memoryStore) put(key model.CohortKey, dist rubric.Distribution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	row := *model.NewCohortDistribution(key, dist)
	row.ID = fmt.Sprintf("row-%d", m.nextID)
	m.rows[key] = row
}

type countingHooks struct {
	ops       sync.Map
	conflicts atomic.Int64
	retries   atomic.Int64
}

func (h *countingHooks) ObserveOperation(name, status string, _ time.Duration) {
	v, _ := h.ops.LoadOrStore(name+"/"+status, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func (h *countingHooks) IncConflict(string) { h.conflicts.Add(1) }
func (h *countingHooks) IncRetry(string)    { h.retries.Add(1) }

func (h *countingHooks) count(name, status string) int64 {
	v, ok := h.ops.Load(name + "/" + status)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

var cohort = model.CohortKey{
	School:         "Sunrise Primary",
	Grade:          "3",
	Section:        "B",
	Zone:           "North",
	AssessmentName: "SEL",
	TestType:       "PRE",
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func scoreOf(t *testing.T, raw ...string) rubric.Result {
	t.Helper()
	answers, err := rubric.ParseAnswerSet(raw)
	require.NoError(t, err)
	return rubric.Score(answers)
}

func expertResult(t *testing.T) rubric.Result {
	return scoreOf(t, "3", "3", "3", "3", "3", "3", "3", "3", "3", "3", "3")
}

func beginnerResult(t *testing.T) rubric.Result {
	return scoreOf(t, "0", "0", "0", "0", "0", "0", "0", "0", "0", "0", "0")
}

func TestAggregator_FirstWriteCreatesDistribution(t *testing.T) {
	store := newMemoryStore()
	agg := NewAggregatorService(store, nil, nil, fastPolicy(3))

	d, err := agg.RecordAssessment(context.Background(), cohort, expertResult(t))
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, 1, d.OverallLevelDistribution.Data().Expert)
	for _, s := range rubric.Skills() {
		assert.Equal(t, 1, d.CategoryLevelDistributions.Data()[s].Expert, s)
	}

	d, err = agg.RecordAssessment(context.Background(), cohort, beginnerResult(t))
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalStudents)
	assert.Equal(t, 1, d.Version)
	assert.Equal(t, rubric.LevelCounts{Beginner: 1, Expert: 1}, d.OverallLevelDistribution.Data())
}

func TestAggregator_KeyIsTrimmed(t *testing.T) {
	store := newMemoryStore()
	agg := NewAggregatorService(store, nil, nil, fastPolicy(3))

	padded := cohort
	padded.School = "  Sunrise Primary "
	_, err := agg.RecordAssessment(context.Background(), padded, expertResult(t))
	require.NoError(t, err)

	got, err := store.Find(context.Background(), cohort)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.TotalStudents)
}

func TestAggregator_ConcurrentRecordsAreNotLost(t *testing.T) {
	const n = 40
	store := newMemoryStore()
	hooks := &countingHooks{}
	agg := NewAggregatorService(store, nil, hooks, fastPolicy(500))

	expert, beginner := expertResult(t), beginnerResult(t)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := expert
			if i%2 == 0 {
				r = beginner
			}
			_, err := agg.RecordAssessment(context.Background(), cohort, r)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Find(context.Background(), cohort)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, n, got.TotalStudents)
	assert.Equal(t, rubric.LevelCounts{Beginner: n / 2, Expert: n / 2}, got.OverallLevelDistribution.Data())
	assert.NoError(t, got.Distribution().Validate())
	assert.Equal(t, int64(n), hooks.count(opRecord, "success"))
	assert.Equal(t, hooks.conflicts.Load(), hooks.retries.Load())
}

func TestAggregator_ConcurrentCreateRaceIsRetried(t *testing.T) {
	store := newMemoryStore()
	store.raceOnce = true
	hooks := &countingHooks{}
	agg := NewAggregatorService(store, nil, hooks, fastPolicy(3))

	d, err := agg.RecordAssessment(context.Background(), cohort, expertResult(t))
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, int64(1), hooks.conflicts.Load())
	assert.Equal(t, int64(1), hooks.retries.Load())
}

func TestAggregator_ConflictExhaustion(t *testing.T) {
	store := newMemoryStore()
	store.put(cohort, rubric.NewDistribution())
	store.alwaysCAS = true
	hooks := &countingHooks{}
	agg := NewAggregatorService(store, nil, hooks, fastPolicy(4))

	_, err := agg.RecordAssessment(context.Background(), cohort, expertResult(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrDistributionConflict)
	assert.Equal(t, int64(4), hooks.conflicts.Load())
	assert.Equal(t, int64(3), hooks.retries.Load())
	assert.Equal(t, int64(1), hooks.count(opRecord, "conflict"))
}

func TestAggregator_StoreErrorIsNotRetried(t *testing.T) {
	boom := errors.New("connection reset")
	store := newMemoryStore()
	store.findErr = boom
	hooks := &countingHooks{}
	agg := NewAggregatorService(store, nil, hooks, fastPolicy(5))

	_, err := agg.RecordAssessment(context.Background(), cohort, expertResult(t))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), hooks.retries.Load())
	assert.Equal(t, int64(1), hooks.count(opRecord, "error"))
}

func TestAggregator_CreateErrorIsNotRetried(t *testing.T) {
	boom := errors.New("disk full")
	store := newMemoryStore()
	store.createErr = boom
	hooks := &countingHooks{}
	agg := NewAggregatorService(store, nil, hooks, fastPolicy(5))
	ctx := context.Background()

	_, err := agg.RecordAssessment(ctx, cohort, expertResult(t))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), hooks.retries.Load())
	assert.Equal(t, int64(0), hooks.conflicts.Load())
	assert.Equal(t, int64(1), hooks.count(opRecord, "error"))

	stored, err := store.Find(ctx, cohort)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestAggregator_UpdateErrorIsNotRetried(t *testing.T) {
	boom := errors.New("connection reset")
	store := newMemoryStore()
	hooks := &countingHooks{}
	agg := NewAggregatorService(store, nil, hooks, fastPolicy(5))
	ctx := context.Background()

	_, err := agg.RecordAssessment(ctx, cohort, beginnerResult(t))
	require.NoError(t, err)
	before, err := store.Find(ctx, cohort)
	require.NoError(t, err)

	store.updateErr = boom
	_, err = agg.RecordAssessment(ctx, cohort, expertResult(t))
	assert.ErrorIs(t, err, boom)
	_, err = agg.ReviseAssessment(ctx, cohort, beginnerResult(t), expertResult(t))
	assert.ErrorIs(t, err, boom)
	_, err = agg.RetractAssessment(ctx, cohort, beginnerResult(t))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), hooks.retries.Load())
	assert.Equal(t, int64(0), hooks.conflicts.Load())

	after, err := store.Find(ctx, cohort)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Distribution(), after.Distribution())
}

func TestAggregator_Revise(t *testing.T) {
	store := newMemoryStore()
	agg := NewAggregatorService(store, nil, nil, fastPolicy(3))
	ctx := context.Background()

	_, err := agg.RecordAssessment(ctx, cohort, beginnerResult(t))
	require.NoError(t, err)

	d, err := agg.ReviseAssessment(ctx, cohort, beginnerResult(t), expertResult(t))
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, rubric.LevelCounts{Expert: 1}, d.OverallLevelDistribution.Data())
	assert.NoError(t, d.Distribution().Validate())
}

func TestAggregator_ReviseSeedsMissingCohort(t *testing.T) {
	store := newMemoryStore()
	agg := NewAggregatorService(store, nil, nil, fastPolicy(3))

	d, err := agg.ReviseAssessment(context.Background(), cohort, beginnerResult(t), expertResult(t))
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, 1, d.OverallLevelDistribution.Data().Expert)
}

func TestAggregator_Retract(t *testing.T) {
	store := newMemoryStore()
	agg := NewAggregatorService(store, nil, nil, fastPolicy(3))
	ctx := context.Background()

	d, err := agg.RetractAssessment(ctx, cohort, expertResult(t))
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = agg.RecordAssessment(ctx, cohort, expertResult(t))
	require.NoError(t, err)

	// removing a student from an empty band must not go negative
	_, err = agg.RetractAssessment(ctx, cohort, beginnerResult(t))
	assert.ErrorIs(t, err, rubric.ErrInvariant)

	d, err = agg.RetractAssessment(ctx, cohort, expertResult(t))
	require.NoError(t, err)
	assert.Equal(t, 0, d.TotalStudents)
	assert.NoError(t, d.Distribution().Validate())
}

func TestAggregator_CorruptStoredDistributionBlocksWritesButNotReplace(t *testing.T) {
	store := newMemoryStore()
	broken := rubric.NewDistribution()
	broken.TotalStudents = 3
	store.put(cohort, broken)
	agg := NewAggregatorService(store, nil, nil, fastPolicy(3))
	ctx := context.Background()

	_, err := agg.RecordAssessment(ctx, cohort, expertResult(t))
	assert.ErrorIs(t, err, rubric.ErrInvariant)

	fixed := rubric.ApplyOne(rubric.NewDistribution(), expertResult(t))
	d, err := agg.Replace(ctx, cohort, fixed)
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.NoError(t, d.Distribution().Validate())

	_, err = agg.RecordAssessment(ctx, cohort, expertResult(t))
	assert.NoError(t, err)
}

func TestAggregator_SetRetryPolicy(t *testing.T) {
	agg := NewAggregatorService(newMemoryStore(), nil, nil, fastPolicy(3))
	agg.SetRetryPolicy(fastPolicy(9))
	assert.Equal(t, 9, agg.RetryPolicy().MaxAttempts)

	scoped := agg.WithStore(newMemoryStore())
	assert.Equal(t, 9, scoped.RetryPolicy().MaxAttempts)
}
