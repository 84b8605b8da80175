package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"agentmemory/internal/memmodel"
)

// EmbeddingKey identifies a cached embedding by the model that produced it
// and the hash of the content it embeds.
type EmbeddingKey struct {
	ModelID     string
	ContentHash string
}

func (k EmbeddingKey) cacheKey() string {
	return k.ModelID + ":" + k.ContentHash
}

// HashContent returns the hex-encoded sha256 of content, the canonical
// content hash used throughout the engine (embedding cache keys, duplicate
// detection).
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EmbeddingCache caches embedding vectors keyed by model + content hash.
type EmbeddingCache struct {
	store *Store[string, []float32]
}

// NewEmbeddingCache builds an EmbeddingCache bounded to maxSize entries with
// the given TTL.
func NewEmbeddingCache(maxSize int, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{store: New[string, []float32](maxSize, ttl)}
}

func (c *EmbeddingCache) Get(key EmbeddingKey) ([]float32, bool) {
	v, ok := c.store.Get(key.cacheKey())
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

func (c *EmbeddingCache) Set(key EmbeddingKey, embedding []float32) {
	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	c.store.Set(key.cacheKey(), cp)
}

func (c *EmbeddingCache) Stats() Stats          { return c.store.Stats() }
func (c *EmbeddingCache) CleanExpired() int     { return c.store.CleanExpired() }
func (c *EmbeddingCache) Clear()                { c.store.Clear() }

// RecallOptions captures the knobs that affect a recall result beyond the
// query text itself, so they can be folded into the result cache key.
type RecallOptions struct {
	TenantID       string
	AgentID        string
	Types          []memmodel.Type
	Limit          int
	MinScore       float64
	IncludeArchive bool
}

func (o RecallOptions) canonical() string {
	var sb strings.Builder
	sb.WriteString(o.TenantID)
	sb.WriteByte('|')
	sb.WriteString(o.AgentID)
	sb.WriteByte('|')
	types := append([]memmodel.Type(nil), o.Types...)
	for _, t := range types {
		sb.WriteString(string(t))
		sb.WriteByte(',')
	}
	sb.WriteByte('|')
	fmt.Fprintf(&sb, "limit=%d|min=%f|archive=%t", o.Limit, o.MinScore, o.IncludeArchive)
	return sb.String()
}

// ResultKey identifies a cached recall result by query text and the scope
// and options that shaped it. Its cache key is prefixed with the tenant id,
// which lets the cache be invalidated for a whole tenant without knowing
// every query that tenant has issued.
type ResultKey struct {
	Query   string
	Options RecallOptions
}

func (k ResultKey) cacheKey() string {
	sum := sha256.Sum256([]byte(k.Query + "||" + k.Options.canonical()))
	return k.Options.TenantID + ":" + hex.EncodeToString(sum[:])
}

// ResultCache caches recall results keyed by query + scope + options.
// Keys are prefixed with the tenant id so tenant-scoped invalidation can
// match by prefix without a reverse index.
type ResultCache struct {
	store *Store[string, []memmodel.Result]
}

// NewResultCache builds a ResultCache bounded to maxSize entries with the
// given TTL.
func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	return &ResultCache{store: New[string, []memmodel.Result](maxSize, ttl)}
}

func (c *ResultCache) Get(key ResultKey) ([]memmodel.Result, bool) {
	v, ok := c.store.Get(key.cacheKey())
	if !ok {
		return nil, false
	}
	out := make([]memmodel.Result, len(v))
	copy(out, v)
	return out, true
}

func (c *ResultCache) Set(key ResultKey, results []memmodel.Result) {
	cp := make([]memmodel.Result, len(results))
	copy(cp, results)
	c.store.Set(key.cacheKey(), cp)
}

// InvalidateTenant drops every cached result belonging to tenantID,
// returning the count removed.
func (c *ResultCache) InvalidateTenant(tenantID string) int {
	prefix := tenantID + ":"
	return c.store.DeleteMatching(func(k string) bool {
		return strings.HasPrefix(k, prefix)
	})
}

func (c *ResultCache) Stats() Stats      { return c.store.Stats() }
func (c *ResultCache) CleanExpired() int { return c.store.CleanExpired() }
func (c *ResultCache) Clear()            { c.store.Clear() }
