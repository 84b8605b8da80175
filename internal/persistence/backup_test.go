package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmemory/internal/memmodel"
	"agentmemory/internal/vectorstore"
)

func newMemory(tenantID, content string) *memmodel.Memory {
	return &memmodel.Memory{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      memmodel.TypeFact,
		Content:   content,
		Embedding: []float32{0.1, 0.2, 0.3},
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	require.NoError(t, store.Upsert(ctx, newMemory("tenant-a", "first memory")))
	require.NoError(t, store.Upsert(ctx, newMemory("tenant-a", "second memory")))
	require.NoError(t, store.Upsert(ctx, newMemory("tenant-b", "other tenant's memory")))

	dir := t.TempDir()
	mgr := NewManager(store, dir)

	meta, err := mgr.CreateBackup(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, meta.MemoryCount)
	assert.Equal(t, "tenant-a", meta.TenantID)

	freshStore, err := vectorstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, freshStore.Initialize(ctx))
	defer freshStore.Close()

	restoreMgr := NewManager(freshStore, dir)
	restored, err := restoreMgr.RestoreBackup(ctx, meta.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	all, err := freshStore.ListAll(ctx, vectorstore.Filter{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListBackupsReturnsCreatedArchives(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()
	require.NoError(t, store.Upsert(ctx, newMemory("tenant-a", "content")))

	dir := t.TempDir()
	mgr := NewManager(store, dir)
	_, err = mgr.CreateBackup(ctx, "tenant-a")
	require.NoError(t, err)

	backups, err := mgr.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "tenant-a", backups[0].TenantID)
}
