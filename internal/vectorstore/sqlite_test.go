package vectorstore

import (
	"context"
	"testing"
	"time"

	"agentmemory/internal/memmodel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testMemory(tenant string, embedding []float32, content string) *memmodel.Memory {
	now := time.Now()
	m := &memmodel.Memory{
		ID:             uuid.New(),
		TenantID:       tenant,
		AgentID:        "agent-1",
		Type:           memmodel.TypeFact,
		Content:        content,
		Embedding:      embedding,
		Confidence:     0.9,
		Importance:     0.5,
		Tags:           map[string]struct{}{},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
	return m
}

func TestSQLiteStoreUpsertAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testMemory("tenant-1", []float32{1, 0, 0}, "alpha")
	b := testMemory("tenant-1", []float32{0, 1, 0}, "beta")
	require.NoError(t, s.Upsert(ctx, a))
	require.NoError(t, s.Upsert(ctx, b))

	results, err := s.Search(ctx, []float32{1, 0, 0}, Filter{TenantID: "tenant-1"}, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, a.ID, results[0].Memory.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestSQLiteStoreSearchExcludesArchivedByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	archived := testMemory("tenant-1", []float32{1, 0, 0}, "archived")
	archived.Archived = true
	require.NoError(t, s.Upsert(ctx, archived))

	results, err := s.Search(ctx, []float32{1, 0, 0}, Filter{TenantID: "tenant-1"}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search(ctx, []float32{1, 0, 0}, Filter{TenantID: "tenant-1", IncludeArchive: true}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, ArchivePenalty, results[0].Score, 1e-6)
}

func TestSQLiteStoreSearchScopedToTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testMemory("tenant-1", []float32{1, 0, 0}, "alpha")
	other := testMemory("tenant-2", []float32{1, 0, 0}, "other tenant")
	require.NoError(t, s.Upsert(ctx, a))
	require.NoError(t, s.Upsert(ctx, other))

	results, err := s.Search(ctx, []float32{1, 0, 0}, Filter{TenantID: "tenant-1"}, 10, 0)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "tenant-1", r.Memory.TenantID)
	}
}

func TestSQLiteStoreFindDuplicateByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := testMemory("tenant-1", []float32{1, 0, 0}, "dup me")
	m.ContentHash = [32]byte{1, 2, 3}
	require.NoError(t, s.Upsert(ctx, m))

	found, err := s.FindDuplicateByHash(ctx, m.ContentHash, Filter{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, m.ID, found.ID)

	notFound, err := s.FindDuplicateByHash(ctx, [32]byte{9, 9, 9}, Filter{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.Nil(t, notFound)
}

func TestSQLiteStoreTouchUpdatesAccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := testMemory("tenant-1", []float32{1, 0, 0}, "touch me")
	require.NoError(t, s.Upsert(ctx, m))

	require.NoError(t, s.Touch(ctx, m.ID, time.Now()))

	found, err := s.FindDuplicateByHash(ctx, m.ContentHash, Filter{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, uint64(1), found.AccessCount)
}

func TestSQLiteStoreTouchMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Touch(context.Background(), uuid.New(), time.Now())
	require.Error(t, err)
}

func TestSQLiteStoreRecentOrdersByLastAccessedThenCreated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := testMemory("tenant-1", []float32{1, 0, 0}, "older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	older.LastAccessedAt = time.Now().Add(-time.Hour)
	newer := testMemory("tenant-1", []float32{0, 1, 0}, "newer")
	require.NoError(t, s.Upsert(ctx, older))
	require.NoError(t, s.Upsert(ctx, newer))

	results, err := s.Recent(ctx, Filter{TenantID: "tenant-1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer.ID, results[0].Memory.ID)
}

func TestSQLiteStoreListAllReturnsEveryMemoryInScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testMemory("tenant-1", []float32{1, 0, 0}, "a")
	b := testMemory("tenant-1", []float32{0, 1, 0}, "b")
	other := testMemory("tenant-2", []float32{0, 0, 1}, "other")
	require.NoError(t, s.Upsert(ctx, a))
	require.NoError(t, s.Upsert(ctx, b))
	require.NoError(t, s.Upsert(ctx, other))

	all, err := s.ListAll(ctx, Filter{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStoreDeleteAndDeleteBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testMemory("tenant-1", []float32{1, 0, 0}, "a")
	b := testMemory("tenant-1", []float32{0, 1, 0}, "b")
	require.NoError(t, s.Upsert(ctx, a))
	require.NoError(t, s.Upsert(ctx, b))

	require.NoError(t, s.Delete(ctx, "tenant-1", a.ID))
	results, err := s.Search(ctx, []float32{1, 0, 0}, Filter{TenantID: "tenant-1"}, 10, 0)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, a.ID, r.Memory.ID)
	}

	require.NoError(t, s.DeleteBatch(ctx, "tenant-1", []uuid.UUID{b.ID}))
	results, err = s.Search(ctx, []float32{0, 1, 0}, Filter{TenantID: "tenant-1"}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteStoreDeleteRejectsWrongTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testMemory("tenant-1", []float32{1, 0, 0}, "a")
	require.NoError(t, s.Upsert(ctx, a))

	err := s.Delete(ctx, "tenant-2", a.ID)
	require.Error(t, err)

	results, searchErr := s.Search(ctx, []float32{1, 0, 0}, Filter{TenantID: "tenant-1"}, 10, 0)
	require.NoError(t, searchErr)
	require.Len(t, results, 1)
	assert.Equal(t, a.ID, results[0].Memory.ID)
}
