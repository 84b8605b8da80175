package optimizer

import (
	"context"
	"testing"
	"time"

	"agentmemory/internal/cache"
	"agentmemory/internal/logging"
	"agentmemory/internal/memmodel"
	"agentmemory/internal/temporal"
	"agentmemory/internal/vectorstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *vectorstore.SQLiteStore {
	t.Helper()
	s, err := vectorstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemory(tenant string, typ memmodel.Type, content string, embedding []float32) *memmodel.Memory {
	now := time.Now()
	return &memmodel.Memory{
		ID:             uuid.New(),
		TenantID:       tenant,
		Type:           typ,
		Content:        content,
		Embedding:      embedding,
		Confidence:     1.0,
		Importance:     0.5,
		Tags:           map[string]struct{}{},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
}

func newTestOptimizer(store vectorstore.Store) *Optimizer {
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	return New(cfg, store, temporal.New(), nil, nil, nil, logging.NewLogger(logging.FATAL))
}

func TestOptimizeTTLPurgeDeletesExpiredMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	expired := newMemory("t1", memmodel.TypeFact, "stale", []float32{1, 0, 0})
	expired.TTL = &past
	fresh := newMemory("t1", memmodel.TypeFact, "still good", []float32{0, 1, 0})

	require.NoError(t, store.Upsert(ctx, expired))
	require.NoError(t, store.Upsert(ctx, fresh))

	o := newTestOptimizer(store)
	run, err := o.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.TTLPurged)

	remaining, err := store.ListAll(ctx, vectorstore.Filter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestOptimizeLowActivitySweepDeletesIdleMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	idle := newMemory("t1", memmodel.TypeFact, "forgotten idea", []float32{1, 0, 0})
	idle.AccessCount = 0
	idle.LastAccessedAt = time.Now().Add(-30 * 24 * time.Hour)
	active := newMemory("t1", memmodel.TypeFact, "used often", []float32{0, 1, 0})
	active.AccessCount = 50
	active.LastAccessedAt = time.Now()

	require.NoError(t, store.Upsert(ctx, idle))
	require.NoError(t, store.Upsert(ctx, active))

	o := newTestOptimizer(store)
	run, err := o.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.LowActivityPurged)

	remaining, err := store.ListAll(ctx, vectorstore.Filter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, active.ID, remaining[0].ID)
}

// TestOptimizeFusionMergesDuplicates covers spec's optimizer fusion scenario:
// two identical-content memories inserted with skip_duplicate_check=true
// must fuse into one on optimize, with access_count summed and tags unioned.
func TestOptimizeFusionMergesDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newMemory("t1", memmodel.TypeFact, "the sky is blue", []float32{1, 0, 0})
	a.AccessCount = 3
	a.Importance = 0.5
	a.Tags = map[string]struct{}{"weather": {}}

	b := newMemory("t1", memmodel.TypeFact, "the sky is blue", []float32{1, 0, 0})
	b.AccessCount = 4
	b.Importance = 0.9
	b.Tags = map[string]struct{}{"science": {}}

	require.NoError(t, store.Upsert(ctx, a))
	require.NoError(t, store.Upsert(ctx, b))

	o := newTestOptimizer(store)
	run, err := o.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Fused)

	remaining, err := store.ListAll(ctx, vectorstore.Filter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	survivor := remaining[0]
	assert.Equal(t, b.ID, survivor.ID, "higher-importance memory wins")
	assert.Equal(t, uint64(7), survivor.AccessCount)
	assert.Len(t, survivor.Tags, 2)
	assert.Contains(t, survivor.Tags, "weather")
	assert.Contains(t, survivor.Tags, "science")
}

func TestOptimizeFusionLeavesDissimilarMemoriesAlone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newMemory("t1", memmodel.TypeFact, "alpha", []float32{1, 0, 0})
	b := newMemory("t1", memmodel.TypeFact, "beta", []float32{0, 1, 0})
	require.NoError(t, store.Upsert(ctx, a))
	require.NoError(t, store.Upsert(ctx, b))

	o := newTestOptimizer(store)
	run, err := o.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, run.Fused)

	remaining, err := store.ListAll(ctx, vectorstore.Filter{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestOptimizeTriageForgetsVeryLowScoreMemory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale := newMemory("t1", memmodel.TypeTask, "ancient todo", []float32{1, 0, 0})
	stale.CreatedAt = time.Now().Add(-365 * 24 * time.Hour)
	stale.LastAccessedAt = stale.CreatedAt
	stale.Confidence = 0.2
	stale.Importance = 0
	stale.AccessCount = 100 // keep it above the low-activity floor

	require.NoError(t, store.Upsert(ctx, stale))

	o := newTestOptimizer(store)
	run, err := o.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Forgotten)

	remaining, err := store.ListAll(ctx, vectorstore.Filter{TenantID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestOptimizeTriageArchivesLowButNotForgottenScoreMemory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tmp := temporal.New()
	now := time.Now()

	// Scan day by day for a created_at age whose score lands strictly between the
	// forget and archive thresholds, so triage archives rather than forgets.
	var target *memmodel.Memory
	for days := 40.0; days < 400; days += 1 {
		m := newMemory("t1", memmodel.TypeFact, "fading memory", []float32{1, 0, 0})
		m.CreatedAt = now.Add(-time.Duration(days*24) * time.Hour)
		m.LastAccessedAt = m.CreatedAt
		m.AccessCount = 100
		m.Confidence = 1.0
		score := tmp.Score(m, now)
		if score < 0.10 && score >= 0.05 {
			target = m
			break
		}
	}
	require.NotNil(t, target, "expected to find an age band scoring into the archive range")

	require.NoError(t, store.Upsert(ctx, target))

	o := newTestOptimizer(store)
	run, err := o.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, run.Forgotten)
	assert.Equal(t, 1, run.Archived)

	remaining, err := store.ListAll(ctx, vectorstore.Filter{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.True(t, remaining[0].Archived)
}

func TestOptimizeCachePruneClearsNearFullTier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	resultCache := cache.NewResultCache(2, time.Hour)
	resultCache.Set(cache.ResultKey{Query: "q1", Options: cache.RecallOptions{TenantID: "t1"}}, []memmodel.Result{})
	resultCache.Set(cache.ResultKey{Query: "q2", Options: cache.RecallOptions{TenantID: "t1"}}, []memmodel.Result{})

	cfg := DefaultConfig()
	o := New(cfg, store, temporal.New(), resultCache, nil, nil, logging.NewLogger(logging.FATAL))

	run, err := o.Optimize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, run.CachePruned)
	assert.Equal(t, 0, resultCache.Stats().Size)
}

func TestTrackedTenantsIncludeExplicitOptimizeCalls(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	o := newTestOptimizer(store)
	_, err := o.Optimize(ctx, "t1")
	require.NoError(t, err)

	assert.Contains(t, o.trackedTenants(), "t1")
}

func TestStartRunsImmediatelyThenStopTerminatesLoop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := newMemory("t1", memmodel.TypeFact, "tracked before start", []float32{1, 0, 0})
	require.NoError(t, store.Upsert(ctx, m))

	cfg := DefaultConfig()
	cfg.Interval = time.Hour
	o := New(cfg, store, temporal.New(), nil, nil, nil, logging.NewLogger(logging.FATAL))
	o.Track("t1")

	require.NoError(t, o.Start(ctx))
	o.Stop()

	assert.Equal(t, 1, o.LastScheduledRun().TenantsProcessed)
}
