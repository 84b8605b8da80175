// Package engine implements the memory engine: the stateful orchestrator
// that turns remember/recall/forget/context/stats/health calls into
// validated, cached, resilient operations against an embedder and a vector
// store. Its lifecycle and error-surfacing discipline are grounded on the
// teacher's service layer (internal/mcp's request handlers wrapping
// storage + embeddings + decay behind one state machine), generalized to
// the seven-type, tenant-scoped memory model of this package tree.
package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"agentmemory/internal/cache"
	"agentmemory/internal/embedder"
	"agentmemory/internal/logging"
	"agentmemory/internal/memerr"
	"agentmemory/internal/memmodel"
	"agentmemory/internal/resilience"
	"agentmemory/internal/security"
	"agentmemory/internal/temporal"
	"agentmemory/internal/vectorstore"

	"github.com/google/uuid"
)

// State is the engine's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config tunes engine behavior; every field has a documented default.
type Config struct {
	MaxContentBytes    int
	DefaultRecallLimit int
	MaxRecallLimit     int
	DefaultThreshold   float64
	ResultTTL          time.Duration
	ResultTTLLarge     time.Duration
	LargeResultSize    int
	ContextCacheTTL    time.Duration
	MaxContextMemories int
	VectorStoreTimeout time.Duration
	TenantIsolation    bool
}

// DefaultConfig returns the documented defaults from the engine's external
// interface table.
func DefaultConfig() Config {
	return Config{
		MaxContentBytes:    32 * 1024,
		DefaultRecallLimit: 10,
		MaxRecallLimit:     50,
		DefaultThreshold:   0.6,
		ResultTTL:          300 * time.Second,
		ResultTTLLarge:     60 * time.Second,
		LargeResultSize:    100,
		ContextCacheTTL:    5 * time.Minute,
		MaxContextMemories: 25,
		VectorStoreTimeout: 15 * time.Second,
		TenantIsolation:    true,
	}
}

// RememberOptions customizes a single remember call.
type RememberOptions struct {
	AgentID            string
	Type               *memmodel.Type
	Importance         *float64
	Confidence         *float64
	EmotionalWeight    *float64
	Tags               []string
	Context            map[string]interface{}
	TTL                *time.Duration
	SkipDuplicateCheck bool
}

// RecallOptions customizes a single recall call.
type RecallOptions struct {
	AgentID        string
	Types          []memmodel.Type
	Limit          int
	Threshold      *float64
	DisableCache   bool
	DisableDecay   bool
	IncludeArchive bool
}

// ContextRequest scopes a get_context call.
type ContextRequest struct {
	TenantID    string
	AgentID     string
	MaxMemories int
}

// ContextResponse is the bounded "recent memories" view.
type ContextResponse struct {
	Memories    []memmodel.Memory
	TypeCounts  map[memmodel.Type]int
	Confidence  float64
	GeneratedAt time.Time
}

// Stats reports engine-wide counters and collaborator status.
type Stats struct {
	State           string
	RememberCount   uint64
	RecallCount     uint64
	ForgetCount     uint64
	DuplicatesFound uint64
	CacheHits       uint64
	CacheMisses     uint64
	ResultCache     cache.Stats
	EmbeddingCache  cache.Stats
	Breaker         resilience.Status
}

// HealthStatus is one of healthy, degraded, unhealthy.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is one sub-check contributing to overall Health.
type HealthCheck struct {
	Name    string
	Status  HealthStatus
	Detail  string
}

// Health is the aggregated result of getHealth.
type Health struct {
	Status HealthStatus
	Checks []HealthCheck
}

// Engine orchestrates remember/recall/forget/context/stats/health over an
// embedder and a vector store, through the Uninitialized -> Ready -> Closed
// lifecycle.
type Engine struct {
	mu    sync.RWMutex
	state State

	cfg      Config
	store    vectorstore.Store
	embedder embedder.Embedder
	temporal *temporal.Engine
	logger   logging.Logger

	resultCache      *cache.ResultCache
	resultCacheLarge *cache.ResultCache
	contextCache     *cache.ResultCache
	embeddingCache   *cache.EmbeddingCache
	redisMirror      *cache.RedisMirror
	crypto           *security.Manager

	storeGuard *resilience.Guard

	rememberCount   uint64
	recallCount     uint64
	forgetCount     uint64
	duplicatesFound uint64
	cacheHits       uint64
	cacheMisses     uint64
}

// New builds an Engine in the Uninitialized state. embeddingCache backs
// every embed call Engine makes (see embed), and is the same instance
// passed to optimizer.New so pruning and statistics observe real traffic;
// pass nil to skip caching and let Stats report a zero-valued cache.Stats
// for it.
func New(cfg Config, store vectorstore.Store, emb embedder.Embedder, temporalEngine *temporal.Engine, embeddingCache *cache.EmbeddingCache, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO)
	}
	breaker := resilience.NewCircuitBreaker("vectorstore", resilience.DefaultBreakerConfig())
	retrier := resilience.NewRetrier(resilience.DefaultRetryConfig())

	return &Engine{
		cfg:              cfg,
		store:            store,
		embedder:         emb,
		temporal:         temporalEngine,
		logger:           logger.WithComponent("engine"),
		resultCache:      cache.NewResultCache(2000, cfg.ResultTTL),
		resultCacheLarge: cache.NewResultCache(500, cfg.ResultTTLLarge),
		contextCache:     cache.NewResultCache(500, cfg.ContextCacheTTL),
		embeddingCache:   embeddingCache,
		storeGuard:       resilience.NewGuard(breaker, retrier),
	}
}

// WithRedisMirror attaches an optional result-cache mirror. Must be called
// before Initialize.
func (e *Engine) WithRedisMirror(m *cache.RedisMirror) *Engine {
	e.redisMirror = m
	return e
}

// WithEncryption enables at-rest content encryption. A disabled Manager
// (built from an empty passphrase) is a harmless default, so callers can
// always pass one rather than branching on whether encryption is on.
func (e *Engine) WithEncryption(m *security.Manager) *Engine {
	e.crypto = m
	return e
}

// Initialize transitions Uninitialized -> Ready, initializing the vector
// store.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateUninitialized {
		return nil
	}

	if err := e.store.Initialize(ctx); err != nil {
		return err
	}

	e.state = StateReady
	e.logger.Info("engine initialized")
	return nil
}

// Close transitions Ready -> Closed, releasing the vector store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateClosed {
		return nil
	}
	e.state = StateClosed

	var err error
	if e.store != nil {
		err = e.store.Close()
	}
	if e.redisMirror != nil {
		_ = e.redisMirror.Close()
	}
	return err
}

func (e *Engine) requireReady() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateReady {
		return memerr.New(memerr.NotInitialized, fmt.Errorf("engine is %s", e.state))
	}
	return nil
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.VectorStoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.VectorStoreTimeout)
}

// Remember validates, deduplicates, embeds, classifies, and stores content
// as a new memory, returning its id.
func (e *Engine) Remember(ctx context.Context, tenantID, content string, opts RememberOptions) (uuid.UUID, error) {
	if err := e.requireReady(); err != nil {
		return uuid.Nil, err
	}
	if tenantID == "" {
		return uuid.Nil, memerr.New(memerr.InvalidContent, fmt.Errorf("tenant id is required"))
	}

	clean, err := sanitizeContent(content, e.cfg.MaxContentBytes)
	if err != nil {
		return uuid.Nil, err
	}

	hash := sha256.Sum256([]byte(clean + "\x00" + tenantID))

	storeCtx, cancel := e.storeCtx(ctx)
	defer cancel()

	if !opts.SkipDuplicateCheck {
		existing, err := e.findDuplicate(storeCtx, hash, tenantID, opts.AgentID)
		if err != nil {
			return uuid.Nil, err
		}
		if existing != nil {
			now := time.Now()
			if err := e.store.Touch(storeCtx, existing.ID, now); err != nil {
				return uuid.Nil, err
			}
			e.invalidateTenant(tenantID)
			atomic.AddUint64(&e.duplicatesFound, 1)
			return existing.ID, nil
		}
	}

	vec, err := e.embed(ctx, clean)
	if err != nil {
		return uuid.Nil, err
	}

	memType := classify(clean)
	if opts.Type != nil {
		memType = *opts.Type
	}

	importance := importanceFor(clean)
	if opts.Importance != nil {
		importance = *opts.Importance
	}

	confidence := 1.0
	if opts.Confidence != nil {
		confidence = *opts.Confidence
	}

	stored := clean
	if e.crypto != nil {
		stored, err = e.crypto.EncryptForStorage(clean)
		if err != nil {
			return uuid.Nil, memerr.New(memerr.Internal, fmt.Errorf("encrypt content: %w", err))
		}
	}

	now := time.Now()
	mem := &memmodel.Memory{
		ID:              uuid.New(),
		TenantID:        tenantID,
		AgentID:         opts.AgentID,
		Type:            memType,
		Content:         stored,
		Embedding:       vec,
		Confidence:      confidence,
		Importance:      importance,
		EmotionalWeight: opts.EmotionalWeight,
		Tags:            toTagSet(opts.Tags),
		Context:         opts.Context,
		CreatedAt:       now,
		UpdatedAt:       now,
		LastAccessedAt:  now,
		AccessCount:     0,
		ContentHash:     hash,
	}
	if opts.TTL != nil {
		deadline := now.Add(*opts.TTL)
		mem.TTL = &deadline
	}

	if err := e.storeGuard.Run(storeCtx, func(ctx context.Context) error {
		return e.store.Upsert(ctx, mem)
	}); err != nil {
		return uuid.Nil, err
	}

	e.invalidateTenant(tenantID)
	atomic.AddUint64(&e.rememberCount, 1)
	return mem.ID, nil
}

func (e *Engine) findDuplicate(ctx context.Context, hash [32]byte, tenantID, agentID string) (*memmodel.Memory, error) {
	var found *memmodel.Memory
	err := e.storeGuard.Run(ctx, func(ctx context.Context) error {
		m, err := e.store.FindDuplicateByHash(ctx, hash, vectorstore.Filter{TenantID: tenantID, AgentID: agentID})
		if err != nil {
			if memerr.Is(err, memerr.NotFound) {
				return nil
			}
			return err
		}
		found = m
		return nil
	})
	return found, err
}

// embed returns content's embedding, consulting embeddingCache first so the
// cache that backs GetStats().EmbeddingCache and the optimizer's prune step
// is the one every embed call actually goes through, regardless of which
// embedder.Embedder implementation is wired in.
func (e *Engine) embed(ctx context.Context, content string) ([]float32, error) {
	if e.embeddingCache == nil {
		return e.embedder.Embed(ctx, content)
	}

	key := cache.EmbeddingKey{ModelID: e.embedder.ModelID(), ContentHash: cache.HashContent(content)}
	if cached, ok := e.embeddingCache.Get(key); ok {
		return cached, nil
	}

	vec, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}
	e.embeddingCache.Set(key, vec)
	return vec, nil
}

// decryptResults reverses at-rest encryption on every result's content, in
// place. A no-op when encryption is disabled.
func (e *Engine) decryptResults(results []memmodel.Result) error {
	if e.crypto == nil {
		return nil
	}
	for i := range results {
		plain, err := e.crypto.DecryptFromStorage(results[i].Memory.Content)
		if err != nil {
			return memerr.New(memerr.Internal, fmt.Errorf("decrypt content: %w", err))
		}
		results[i].Memory.Content = plain
	}
	return nil
}

func toTagSet(tags []string) map[string]struct{} {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// Recall embeds (or serves from cache) a query and returns ranked, decayed
// results, tenant- and agent-scoped.
func (e *Engine) Recall(ctx context.Context, tenantID, query string, opts RecallOptions) ([]memmodel.Result, error) {
	if err := e.requireReady(); err != nil {
		return nil, err
	}
	if tenantID == "" {
		return nil, memerr.New(memerr.InvalidQuery, fmt.Errorf("tenant id is required"))
	}
	if strings.TrimSpace(query) == "" {
		return nil, memerr.New(memerr.InvalidQuery, fmt.Errorf("query is empty"))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultRecallLimit
	}
	if limit > e.cfg.MaxRecallLimit {
		limit = e.cfg.MaxRecallLimit
	}
	threshold := e.cfg.DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	cacheOpts := cache.RecallOptions{
		TenantID:       tenantID,
		AgentID:        opts.AgentID,
		Types:          opts.Types,
		Limit:          limit,
		MinScore:       threshold,
		IncludeArchive: opts.IncludeArchive,
	}
	key := cache.ResultKey{Query: query, Options: cacheOpts}

	if !opts.DisableCache {
		if cached, ok := e.lookupResultCache(ctx, key); ok {
			atomic.AddUint64(&e.cacheHits, 1)
			return cached, nil
		}
	}
	atomic.AddUint64(&e.cacheMisses, 1)

	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := e.storeCtx(ctx)
	defer cancel()

	var results []memmodel.Result
	err = e.storeGuard.Run(storeCtx, func(ctx context.Context) error {
		res, err := e.store.Search(ctx, vec, vectorstore.Filter{TenantID: tenantID, AgentID: opts.AgentID, Types: opts.Types, IncludeArchive: opts.IncludeArchive}, limit, threshold)
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.decryptResults(results); err != nil {
		return nil, err
	}

	now := time.Now()
	results = filterExpired(results, now)

	if !opts.DisableDecay && e.temporal != nil {
		for i := range results {
			results[i].Score = results[i].Score * e.temporal.Score(&results[i].Memory, now)
		}
		sort.Slice(results, func(i, j int) bool {
			if results[i].Score != results[j].Score {
				return results[i].Score > results[j].Score
			}
			if !results[i].Memory.LastAccessedAt.Equal(results[j].Memory.LastAccessedAt) {
				return results[i].Memory.LastAccessedAt.After(results[j].Memory.LastAccessedAt)
			}
			return results[i].Memory.ID.String() < results[j].Memory.ID.String()
		})
	}

	for i := range results {
		results[i].RelevanceReason = e.relevanceReason(&results[i].Memory, now)
	}

	ttlCache := e.resultCache
	if len(results) > e.cfg.LargeResultSize {
		ttlCache = e.resultCacheLarge
	}
	ttlCache.Set(key, results)
	if e.redisMirror != nil {
		_ = e.redisMirror.Set(ctx, key, results)
	}

	atomic.AddUint64(&e.recallCount, 1)
	return results, nil
}

// filterExpired drops memories past their TTL from a search result set, so
// recall never serves an expired memory even before the optimizer has
// physically deleted it.
func filterExpired(results []memmodel.Result, now time.Time) []memmodel.Result {
	out := results[:0]
	for _, r := range results {
		if r.Memory.Expired(now) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) lookupResultCache(ctx context.Context, key cache.ResultKey) ([]memmodel.Result, bool) {
	if cached, ok := e.resultCache.Get(key); ok {
		return cached, true
	}
	if cached, ok := e.resultCacheLarge.Get(key); ok {
		return cached, true
	}
	if e.redisMirror != nil {
		if cached, ok, err := e.redisMirror.Get(ctx, key); err == nil && ok {
			return cached, true
		}
	}
	return nil, false
}

func (e *Engine) invalidateTenant(tenantID string) {
	e.resultCache.InvalidateTenant(tenantID)
	e.resultCacheLarge.InvalidateTenant(tenantID)
	e.contextCache.InvalidateTenant(tenantID)
	if e.redisMirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = e.redisMirror.InvalidateTenant(ctx, tenantID)
	}
}

// relevanceReason derives a short human-readable explanation of why a
// result ranked where it did, per the per-type temporal decay rules.
func (e *Engine) relevanceReason(m *memmodel.Memory, now time.Time) string {
	recency := temporal.Recency(m, now)
	if e.temporal != nil {
		recency = e.temporal.Score(m, now)
	}
	switch {
	case m.AccessCount > 10:
		return "frequently accessed"
	case recency > 0.8:
		return "recently created"
	case m.Importance > 0.8:
		return "high importance"
	default:
		return "semantic match"
	}
}

// GetContext returns a bounded, recency-ordered view of a tenant/agent's
// memories, cached for ContextCacheTTL.
func (e *Engine) GetContext(ctx context.Context, req ContextRequest) (ContextResponse, error) {
	if err := e.requireReady(); err != nil {
		return ContextResponse{}, err
	}
	if req.TenantID == "" {
		return ContextResponse{}, memerr.New(memerr.InvalidQuery, fmt.Errorf("tenant id is required"))
	}

	maxMemories := req.MaxMemories
	if maxMemories <= 0 || maxMemories > e.cfg.MaxContextMemories {
		maxMemories = e.cfg.MaxContextMemories
	}

	cacheKey := cache.ResultKey{
		Query: "__context__",
		Options: cache.RecallOptions{
			TenantID: req.TenantID,
			AgentID:  req.AgentID,
			Limit:    maxMemories,
		},
	}
	if cached, ok := e.contextCache.Get(cacheKey); ok {
		return resultsToContext(cached, maxMemories), nil
	}

	storeCtx, cancel := e.storeCtx(ctx)
	defer cancel()

	var results []memmodel.Result
	err := e.storeGuard.Run(storeCtx, func(ctx context.Context) error {
		res, err := e.store.Recent(ctx, vectorstore.Filter{TenantID: req.TenantID, AgentID: req.AgentID}, maxMemories)
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return ContextResponse{}, err
	}
	if err := e.decryptResults(results); err != nil {
		return ContextResponse{}, err
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Memory.LastAccessedAt.Equal(results[j].Memory.LastAccessedAt) {
			return results[i].Memory.LastAccessedAt.After(results[j].Memory.LastAccessedAt)
		}
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})
	if len(results) > maxMemories {
		results = results[:maxMemories]
	}

	e.contextCache.Set(cacheKey, results)
	return resultsToContext(results, maxMemories), nil
}

func resultsToContext(results []memmodel.Result, maxMemories int) ContextResponse {
	if len(results) > maxMemories {
		results = results[:maxMemories]
	}
	resp := ContextResponse{
		Memories:    make([]memmodel.Memory, len(results)),
		TypeCounts:  make(map[memmodel.Type]int),
		GeneratedAt: time.Now(),
	}
	var importanceSum float64
	for i, r := range results {
		resp.Memories[i] = r.Memory
		resp.TypeCounts[r.Memory.Type]++
		importanceSum += r.Memory.Importance
	}
	if len(results) > 0 {
		meanImportance := importanceSum / float64(len(results))
		resp.Confidence = meanImportance * 1.0
	}
	return resp
}

// Forget deletes a memory by id, invalidating the tenant's result cache.
// The delete is scoped to tenantID at the store layer, so a memory owned by
// a different tenant is reported NotFound rather than deleted. When
// ignoreMissing is true, a NotFound is swallowed.
func (e *Engine) Forget(ctx context.Context, tenantID string, id uuid.UUID, ignoreMissing bool) error {
	if err := e.requireReady(); err != nil {
		return err
	}

	storeCtx, cancel := e.storeCtx(ctx)
	defer cancel()

	err := e.storeGuard.Run(storeCtx, func(ctx context.Context) error {
		return e.store.Delete(ctx, tenantID, id)
	})
	if err != nil {
		if ignoreMissing && memerr.Is(err, memerr.NotFound) {
			return nil
		}
		return err
	}

	e.invalidateTenant(tenantID)
	atomic.AddUint64(&e.forgetCount, 1)
	return nil
}

// Caches exposes the engine's cache tiers so cmd/memoryd can hand them to
// the optimizer's cache-prune step; the engine itself never prunes them
// proactively, only via normal LRU eviction and tenant invalidation.
func (e *Engine) Caches() (resultCache, resultCacheLarge *cache.ResultCache, embeddingCache *cache.EmbeddingCache) {
	return e.resultCache, e.resultCacheLarge, e.embeddingCache
}

// GetStats reports engine-wide counters and collaborator status.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()

	var embStats cache.Stats
	if e.embeddingCache != nil {
		embStats = e.embeddingCache.Stats()
	}

	return Stats{
		State:           state.String(),
		RememberCount:   atomic.LoadUint64(&e.rememberCount),
		RecallCount:     atomic.LoadUint64(&e.recallCount),
		ForgetCount:     atomic.LoadUint64(&e.forgetCount),
		DuplicatesFound: atomic.LoadUint64(&e.duplicatesFound),
		CacheHits:       atomic.LoadUint64(&e.cacheHits),
		CacheMisses:     atomic.LoadUint64(&e.cacheMisses),
		ResultCache:     e.resultCache.Stats(),
		EmbeddingCache:  embStats,
		Breaker:         e.storeGuard.Status(),
	}
}

// GetHealth aggregates embedder, vector store, cache, and process memory
// status into an overall healthy/degraded/unhealthy verdict. Unlike other
// operations, GetHealth is callable before Initialize.
func (e *Engine) GetHealth(ctx context.Context) Health {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()

	checks := make([]HealthCheck, 0, 4)

	if state != StateReady {
		checks = append(checks, HealthCheck{Name: "engine", Status: HealthUnhealthy, Detail: "state is " + state.String()})
		return Health{Status: HealthUnhealthy, Checks: checks}
	}
	checks = append(checks, HealthCheck{Name: "engine", Status: HealthHealthy})

	breakerStatus := e.storeGuard.Status()
	switch breakerStatus.State {
	case resilience.Open:
		checks = append(checks, HealthCheck{Name: "vectorstore", Status: HealthUnhealthy, Detail: "circuit open"})
	case resilience.HalfOpen:
		checks = append(checks, HealthCheck{Name: "vectorstore", Status: HealthDegraded, Detail: "circuit half-open"})
	default:
		checks = append(checks, HealthCheck{Name: "vectorstore", Status: HealthHealthy})
	}

	cacheStats := e.resultCache.Stats()
	cacheStatus := HealthHealthy
	if cacheStats.MaxSize > 0 && cacheStats.Size >= int(float64(cacheStats.MaxSize)*0.95) {
		cacheStatus = HealthDegraded
	}
	checks = append(checks, HealthCheck{
		Name:   "cache",
		Status: cacheStatus,
		Detail: fmt.Sprintf("size=%d/%d hit_rate=%.2f", cacheStats.Size, cacheStats.MaxSize, cacheStats.HitRate),
	})

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	checks = append(checks, HealthCheck{
		Name:   "process_memory",
		Status: HealthHealthy,
		Detail: fmt.Sprintf("alloc_mb=%.1f", float64(mem.Alloc)/(1024*1024)),
	})

	overall := HealthHealthy
	for _, c := range checks {
		if c.Status == HealthUnhealthy {
			overall = HealthUnhealthy
			break
		}
		if c.Status == HealthDegraded && overall == HealthHealthy {
			overall = HealthDegraded
		}
	}

	return Health{Status: overall, Checks: checks}
}
