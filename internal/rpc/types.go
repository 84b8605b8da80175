package rpc

import (
	"encoding/json"
	"time"

	"agentmemory/internal/engine"
	"agentmemory/internal/memmodel"
)

// Request is a single JSON-RPC-2.0-shaped call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response is a single JSON-RPC-2.0-shaped reply. Exactly one of Result or
// Error is set, matching the request's id.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RememberParams is the payload for memory/remember.
type RememberParams struct {
	TenantID           string                 `json:"tenant_id"`
	AgentID            string                 `json:"agent_id,omitempty"`
	Content            string                 `json:"content"`
	Type               *string                `json:"type,omitempty"`
	Importance         *float64               `json:"importance,omitempty"`
	Confidence         *float64               `json:"confidence,omitempty"`
	EmotionalWeight    *float64               `json:"emotional_weight,omitempty"`
	Tags               []string               `json:"tags,omitempty"`
	Context            map[string]interface{} `json:"context,omitempty"`
	TTLSeconds         *int                   `json:"ttl_seconds,omitempty"`
	SkipDuplicateCheck bool                   `json:"skip_duplicate_check,omitempty"`
}

// RememberResult is the reply for memory/remember.
type RememberResult struct {
	ID string `json:"id"`
}

// RecallParams is the payload for memory/recall.
type RecallParams struct {
	TenantID       string   `json:"tenant_id"`
	AgentID        string   `json:"agent_id,omitempty"`
	Query          string   `json:"query"`
	Types          []string `json:"types,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Threshold      *float64 `json:"threshold,omitempty"`
	DisableCache   bool     `json:"disable_cache,omitempty"`
	DisableDecay   bool     `json:"disable_decay,omitempty"`
	IncludeArchive bool     `json:"include_archive,omitempty"`
}

// RecallResult is the reply for memory/recall.
type RecallResult struct {
	Results []ResultDTO `json:"results"`
}

// ResultDTO is the wire shape of a memmodel.Result.
type ResultDTO struct {
	Memory          MemoryDTO `json:"memory"`
	Score           float64   `json:"score"`
	RelevanceReason string    `json:"relevance_reason"`
}

// MemoryDTO is the wire shape of a memmodel.Memory. It drops the embedding
// vector and content hash, neither of which a caller needs back.
type MemoryDTO struct {
	ID              string                 `json:"id"`
	TenantID        string                 `json:"tenant_id"`
	AgentID         string                 `json:"agent_id,omitempty"`
	Type            string                 `json:"type"`
	Content         string                 `json:"content"`
	Confidence      float64                `json:"confidence"`
	Importance      float64                `json:"importance"`
	EmotionalWeight *float64               `json:"emotional_weight,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Context         map[string]interface{} `json:"context,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	LastAccessedAt  time.Time              `json:"last_accessed_at"`
	AccessCount     uint64                 `json:"access_count"`
	Archived        bool                   `json:"archived"`
}

func memoryToDTO(m *memmodel.Memory) MemoryDTO {
	return MemoryDTO{
		ID:              m.ID.String(),
		TenantID:        m.TenantID,
		AgentID:         m.AgentID,
		Type:            string(m.Type),
		Content:         m.Content,
		Confidence:      m.Confidence,
		Importance:      m.Importance,
		EmotionalWeight: m.EmotionalWeight,
		Tags:            m.TagSlice(),
		Context:         m.Context,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		LastAccessedAt:  m.LastAccessedAt,
		AccessCount:     m.AccessCount,
		Archived:        m.Archived,
	}
}

func resultToDTO(r *memmodel.Result) ResultDTO {
	return ResultDTO{
		Memory:          memoryToDTO(&r.Memory),
		Score:           r.Score,
		RelevanceReason: r.RelevanceReason,
	}
}

// ForgetParams is the payload for memory/forget.
type ForgetParams struct {
	TenantID      string `json:"tenant_id"`
	ID            string `json:"id"`
	IgnoreMissing bool   `json:"ignore_missing,omitempty"`
}

// ForgetResult is the reply for memory/forget.
type ForgetResult struct {
	Forgotten bool `json:"forgotten"`
}

// ContextParams is the payload for memory/context.
type ContextParams struct {
	TenantID    string `json:"tenant_id"`
	AgentID     string `json:"agent_id,omitempty"`
	MaxMemories int    `json:"max_memories,omitempty"`
}

// ContextResult is the reply for memory/context.
type ContextResult struct {
	Memories    []MemoryDTO    `json:"memories"`
	TypeCounts  map[string]int `json:"type_counts"`
	Confidence  float64        `json:"confidence"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func contextToResult(resp engine.ContextResponse) ContextResult {
	out := ContextResult{
		Memories:    make([]MemoryDTO, len(resp.Memories)),
		TypeCounts:  make(map[string]int, len(resp.TypeCounts)),
		Confidence:  resp.Confidence,
		GeneratedAt: resp.GeneratedAt,
	}
	for i := range resp.Memories {
		out.Memories[i] = memoryToDTO(&resp.Memories[i])
	}
	for t, n := range resp.TypeCounts {
		out.TypeCounts[string(t)] = n
	}
	return out
}

// StatsResult is the reply for memory/stats.
type StatsResult struct {
	State           string  `json:"state"`
	RememberCount   uint64  `json:"remember_count"`
	RecallCount     uint64  `json:"recall_count"`
	ForgetCount     uint64  `json:"forget_count"`
	DuplicatesFound uint64  `json:"duplicates_found"`
	CacheHits       uint64  `json:"cache_hits"`
	CacheMisses     uint64  `json:"cache_misses"`
	ResultCacheSize int     `json:"result_cache_size"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	BreakerState    string  `json:"breaker_state"`
}

func statsToResult(s engine.Stats) StatsResult {
	return StatsResult{
		State:           s.State,
		RememberCount:   s.RememberCount,
		RecallCount:     s.RecallCount,
		ForgetCount:     s.ForgetCount,
		DuplicatesFound: s.DuplicatesFound,
		CacheHits:       s.CacheHits,
		CacheMisses:     s.CacheMisses,
		ResultCacheSize: s.ResultCache.Size,
		CacheHitRate:    s.ResultCache.HitRate,
		BreakerState:    s.Breaker.State.String(),
	}
}
