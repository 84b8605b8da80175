package cache

import (
	"testing"
	"time"

	"agentmemory/internal/memmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheRoundTripAndIsolation(t *testing.T) {
	c := NewEmbeddingCache(10, time.Hour)
	key := EmbeddingKey{ModelID: "text-embedding-3-small", ContentHash: HashContent("hello")}

	c.Set(key, []float32{1, 2, 3})
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)

	got[0] = 99
	got2, _ := c.Get(key)
	assert.Equal(t, float32(1), got2[0])
}

func TestEmbeddingCacheDistinguishesModels(t *testing.T) {
	c := NewEmbeddingCache(10, time.Hour)
	hash := HashContent("same content")
	c.Set(EmbeddingKey{ModelID: "model-a", ContentHash: hash}, []float32{1})
	_, ok := c.Get(EmbeddingKey{ModelID: "model-b", ContentHash: hash})
	assert.False(t, ok)
}

func TestResultCacheInvalidateTenant(t *testing.T) {
	c := NewResultCache(10, time.Hour)
	keyA := ResultKey{Query: "q", Options: RecallOptions{TenantID: "tenant-a"}}
	keyB := ResultKey{Query: "q", Options: RecallOptions{TenantID: "tenant-b"}}

	c.Set(keyA, []memmodel.Result{{Score: 0.9}})
	c.Set(keyB, []memmodel.Result{{Score: 0.5}})

	removed := c.InvalidateTenant("tenant-a")
	assert.Equal(t, 1, removed)

	_, ok := c.Get(keyA)
	assert.False(t, ok)
	_, ok = c.Get(keyB)
	assert.True(t, ok)
}

func TestResultCacheKeyVariesWithOptions(t *testing.T) {
	c := NewResultCache(10, time.Hour)
	base := RecallOptions{TenantID: "t1", Limit: 10}
	withArchive := base
	withArchive.IncludeArchive = true

	c.Set(ResultKey{Query: "q", Options: base}, []memmodel.Result{{Score: 1}})
	_, ok := c.Get(ResultKey{Query: "q", Options: withArchive})
	assert.False(t, ok, "differing options must not collide in the cache")
}
