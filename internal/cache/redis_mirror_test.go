package cache

import (
	"context"
	"testing"
	"time"

	"agentmemory/internal/memmodel"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, string) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, mr.Addr()
}

func TestRedisMirrorSetGetRoundTrip(t *testing.T) {
	_, addr := setupMiniRedis(t)
	m := NewRedisMirror(addr, "", 0, "test", time.Minute)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Ping(ctx))

	key := ResultKey{Query: "q", Options: RecallOptions{TenantID: "tenant-a"}}
	want := []memmodel.Result{{Score: 0.87}}
	require.NoError(t, m.Set(ctx, key, want))

	got, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRedisMirrorMissReturnsFalse(t *testing.T) {
	_, addr := setupMiniRedis(t)
	m := NewRedisMirror(addr, "", 0, "test", time.Minute)
	defer m.Close()

	_, ok, err := m.Get(context.Background(), ResultKey{Query: "nope"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisMirrorInvalidateTenant(t *testing.T) {
	_, addr := setupMiniRedis(t)
	m := NewRedisMirror(addr, "", 0, "test", time.Minute)
	defer m.Close()

	ctx := context.Background()
	keyA := ResultKey{Query: "q1", Options: RecallOptions{TenantID: "tenant-a"}}
	keyA2 := ResultKey{Query: "q2", Options: RecallOptions{TenantID: "tenant-a"}}
	keyB := ResultKey{Query: "q1", Options: RecallOptions{TenantID: "tenant-b"}}

	require.NoError(t, m.Set(ctx, keyA, []memmodel.Result{{Score: 1}}))
	require.NoError(t, m.Set(ctx, keyA2, []memmodel.Result{{Score: 2}}))
	require.NoError(t, m.Set(ctx, keyB, []memmodel.Result{{Score: 3}}))

	removed, err := m.InvalidateTenant(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, _ := m.Get(ctx, keyA)
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, keyB)
	assert.True(t, ok)
}
