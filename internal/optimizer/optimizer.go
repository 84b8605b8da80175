// Package optimizer implements the memory engine's scheduled maintenance
// pass: TTL purge, low-activity sweep, near-duplicate fusion, score-based
// archive/forget triage, and cache pruning. Its loop/ticker/stop-channel
// shape and logging-on-error-without-failing-caller discipline are adapted
// from the teacher's internal/decay.MemoryDecayManager, retargeted from
// chunk summarization to the five-step pipeline over memmodel.Memory.
package optimizer

import (
	"context"
	"sync"
	"time"

	"agentmemory/internal/cache"
	"agentmemory/internal/logging"
	"agentmemory/internal/memmodel"
	"agentmemory/internal/temporal"
	"agentmemory/internal/vectormath"
	"agentmemory/internal/vectorstore"

	"github.com/google/uuid"
)

// Config tunes a single optimization pass.
type Config struct {
	Interval           time.Duration // timer cadence between automatic runs
	BatchSize          int           // every step is bounded and yields between batches
	DuplicateThreshold float64       // cosine similarity at/above which two memories fuse
	LowAccessThreshold uint64        // access_count floor for the low-activity sweep
	LowAccessMaxAge    time.Duration // idle-age floor for the low-activity sweep
	StoreTimeout       time.Duration // per-call deadline against the vector store
}

// DefaultConfig returns the documented defaults from spec's external
// interface table (optimizer.* and performance.batch_size).
func DefaultConfig() Config {
	return Config{
		Interval:           6 * time.Hour,
		BatchSize:          500,
		DuplicateThreshold: 0.98,
		LowAccessThreshold: 1,
		LowAccessMaxAge:    21 * 24 * time.Hour,
		StoreTimeout:       15 * time.Second,
	}
}

// RunStats reports what a single Optimize call did.
type RunStats struct {
	TenantsProcessed  int
	TTLPurged         int
	LowActivityPurged int
	Fused             int
	Archived          int
	Forgotten         int
	CachePruned       int
	RanAt             time.Time
}

func (a *RunStats) add(b RunStats) {
	a.TTLPurged += b.TTLPurged
	a.LowActivityPurged += b.LowActivityPurged
	a.Fused += b.Fused
	a.Archived += b.Archived
	a.Forgotten += b.Forgotten
	a.CachePruned += b.CachePruned
}

// Optimizer runs the five-step maintenance pipeline against a vector store,
// on a timer and on demand. It has no notion of tenant discovery of its
// own: tenants are registered via Track (memoryd passes Track to the rpc
// server as its remember hook) or by an explicit Optimize call, since vectorstore.Store
// has no enumerate-all-tenants operation by design (every read is
// server-side tenant-scoped).
type Optimizer struct {
	cfg      Config
	store    vectorstore.Store
	temporal *temporal.Engine
	logger   logging.Logger

	resultCache      *cache.ResultCache
	resultCacheLarge *cache.ResultCache
	embeddingCache   *cache.EmbeddingCache

	tenantsMu sync.Mutex
	tenants   map[string]struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	statsMu       sync.RWMutex
	last          RunStats
	lastScheduled RunStats
}

// New builds an Optimizer. Either result cache may be nil (the large-result
// tier in particular is optional); cache pruning skips a nil tier.
func New(cfg Config, store vectorstore.Store, temporalEngine *temporal.Engine, resultCache, resultCacheLarge *cache.ResultCache, embeddingCache *cache.EmbeddingCache, logger logging.Logger) *Optimizer {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO)
	}
	return &Optimizer{
		cfg:              cfg,
		store:            store,
		temporal:         temporalEngine,
		logger:           logger.WithComponent("optimizer"),
		resultCache:      resultCache,
		resultCacheLarge: resultCacheLarge,
		embeddingCache:   embeddingCache,
		tenants:          make(map[string]struct{}),
	}
}

// Track registers tenantID so the timer-driven loop includes it in future
// runs. Idempotent; safe to call on every successful remember.
func (o *Optimizer) Track(tenantID string) {
	if tenantID == "" {
		return
	}
	o.tenantsMu.Lock()
	o.tenants[tenantID] = struct{}{}
	o.tenantsMu.Unlock()
}

func (o *Optimizer) trackedTenants() []string {
	o.tenantsMu.Lock()
	defer o.tenantsMu.Unlock()
	out := make([]string, 0, len(o.tenants))
	for t := range o.tenants {
		out = append(out, t)
	}
	return out
}

// Start begins the timer-driven loop: an immediate run followed by one
// every cfg.Interval, until Stop is called or ctx is done.
func (o *Optimizer) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.mu.Unlock()

	go o.runLoop(ctx)
	return nil
}

// Stop ends the timer-driven loop and waits for the in-flight run, if any,
// to finish yielding between batches.
func (o *Optimizer) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	close(o.stopCh)
	doneCh := o.doneCh
	o.mu.Unlock()

	<-doneCh
}

func (o *Optimizer) runLoop(ctx context.Context) {
	defer close(o.doneCh)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	o.runAllTracked(ctx)

	for {
		select {
		case <-ticker.C:
			o.runAllTracked(ctx)
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (o *Optimizer) runAllTracked(ctx context.Context) {
	var total RunStats
	total.RanAt = time.Now()

	for _, tenantID := range o.trackedTenants() {
		if ctx.Err() != nil {
			break
		}
		run, err := o.Optimize(ctx, tenantID)
		if err != nil {
			o.logger.ErrorContext(ctx, "optimize run failed", "tenant_id", tenantID, "error", err.Error())
			continue
		}
		total.TenantsProcessed++
		total.add(run)
	}

	o.statsMu.Lock()
	o.lastScheduled = total
	o.statsMu.Unlock()

	o.logger.InfoContext(ctx, "scheduled optimize sweep complete",
		"tenants_processed", total.TenantsProcessed,
		"ttl_purged", total.TTLPurged,
		"low_activity_purged", total.LowActivityPurged,
		"fused", total.Fused,
		"archived", total.Archived,
		"forgotten", total.Forgotten,
		"cache_pruned", total.CachePruned,
	)
}

// Optimize runs the five ordered maintenance steps against tenantID's
// memories: TTL purge, low-activity sweep, near-duplicate fusion,
// score-based triage, then cache prune. Failures partway through a step are
// logged and do not abort the remaining steps; the next cycle retries
// whatever is left.
func (o *Optimizer) Optimize(ctx context.Context, tenantID string) (RunStats, error) {
	o.Track(tenantID)

	storeCtx, cancel := o.storeCtx(ctx)
	defer cancel()

	memories, err := o.store.ListAll(storeCtx, vectorstore.Filter{TenantID: tenantID})
	if err != nil {
		return RunStats{}, err
	}

	run := RunStats{TenantsProcessed: 1, RanAt: time.Now()}
	now := time.Now()

	memories = o.ttlPurge(ctx, tenantID, memories, now, &run)
	memories = o.lowActivitySweep(ctx, tenantID, memories, now, &run)
	memories = o.fuseDuplicates(ctx, tenantID, memories, &run)
	memories = o.triage(ctx, tenantID, memories, now, &run)
	o.prune(&run)

	o.statsMu.Lock()
	o.last = run
	o.statsMu.Unlock()

	o.logger.InfoContext(ctx, "optimize run complete",
		"tenant_id", tenantID,
		"ttl_purged", run.TTLPurged,
		"low_activity_purged", run.LowActivityPurged,
		"fused", run.Fused,
		"archived", run.Archived,
		"forgotten", run.Forgotten,
		"cache_pruned", run.CachePruned,
	)
	return run, nil
}

// LastRun reports the stats of the most recently completed Optimize call.
func (o *Optimizer) LastRun() RunStats {
	o.statsMu.RLock()
	defer o.statsMu.RUnlock()
	return o.last
}

// LastScheduledRun reports the aggregated stats of the most recent
// timer-driven sweep across every tracked tenant.
func (o *Optimizer) LastScheduledRun() RunStats {
	o.statsMu.RLock()
	defer o.statsMu.RUnlock()
	return o.lastScheduled
}

func (o *Optimizer) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.StoreTimeout)
}

func (o *Optimizer) batches(n int) [][2]int {
	size := o.cfg.BatchSize
	if size <= 0 {
		size = n
		if size == 0 {
			size = 1
		}
	}
	var ranges [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// ttlPurge deletes every memory whose TTL has passed, batched and yielding
// between batches. Returns the surviving memories.
func (o *Optimizer) ttlPurge(ctx context.Context, tenantID string, memories []memmodel.Memory, now time.Time, run *RunStats) []memmodel.Memory {
	survivors := memories[:0]
	var toDelete []uuid.UUID

	for _, m := range memories {
		if m.Expired(now) {
			toDelete = append(toDelete, m.ID)
			continue
		}
		survivors = append(survivors, m)
	}

	o.deleteInBatches(ctx, tenantID, toDelete, &run.TTLPurged)
	return survivors
}

// lowActivitySweep deletes memories that have been accessed at most
// LowAccessThreshold times and have sat idle past LowAccessMaxAge.
func (o *Optimizer) lowActivitySweep(ctx context.Context, tenantID string, memories []memmodel.Memory, now time.Time, run *RunStats) []memmodel.Memory {
	survivors := memories[:0]
	var toDelete []uuid.UUID

	for _, m := range memories {
		idle := now.Sub(m.LastAccessedAt)
		if m.AccessCount <= o.cfg.LowAccessThreshold && idle > o.cfg.LowAccessMaxAge {
			toDelete = append(toDelete, m.ID)
			continue
		}
		survivors = append(survivors, m)
	}

	o.deleteInBatches(ctx, tenantID, toDelete, &run.LowActivityPurged)
	return survivors
}

// fuseDuplicates groups memories into (type) buckets (the caller has
// already scoped to one tenant) and, within batches of up to BatchSize,
// compares pairwise cosine similarity. Memories at or above
// DuplicateThreshold similarity are fused via a union-find over the
// batch's indices: the group's importance-highest, id-lowest-on-tie
// representative survives, absorbing the union of tags and the sum of
// access counts from the rest.
func (o *Optimizer) fuseDuplicates(ctx context.Context, tenantID string, memories []memmodel.Memory, run *RunStats) []memmodel.Memory {
	buckets := make(map[memmodel.Type][]memmodel.Memory)
	for _, m := range memories {
		buckets[m.Type] = append(buckets[m.Type], m)
	}

	survivors := make([]memmodel.Memory, 0, len(memories))
	for _, bucket := range buckets {
		for _, r := range o.batches(len(bucket)) {
			if ctx.Err() != nil {
				survivors = append(survivors, bucket[r[0]:]...)
				break
			}
			survivors = append(survivors, o.fuseBatch(ctx, tenantID, bucket[r[0]:r[1]], run)...)
		}
	}
	return survivors
}

// fuseBatch fuses duplicates within a single (tenant, type) batch using a
// union-find arena sized to the batch, avoiding a pointer graph.
func (o *Optimizer) fuseBatch(ctx context.Context, tenantID string, batch []memmodel.Memory, run *RunStats) []memmodel.Memory {
	n := len(batch)
	if n < 2 {
		return batch
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim, err := vectormath.Cosine(batch[i].Embedding, batch[j].Embedding)
			if err != nil {
				continue
			}
			if float64(sim) >= o.cfg.DuplicateThreshold {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	survivors := make([]memmodel.Memory, 0, len(groups))
	var toDelete []uuid.UUID
	var toUpsert []*memmodel.Memory

	for _, members := range groups {
		if len(members) == 1 {
			survivors = append(survivors, batch[members[0]])
			continue
		}

		winnerIdx := members[0]
		for _, idx := range members[1:] {
			if isBetterSurvivor(batch[idx], batch[winnerIdx]) {
				winnerIdx = idx
			}
		}

		winner := batch[winnerIdx]
		for _, idx := range members {
			if idx == winnerIdx {
				continue
			}
			loser := batch[idx]
			for tag := range loser.Tags {
				winner.Tags[tag] = struct{}{}
			}
			winner.AccessCount += loser.AccessCount
			toDelete = append(toDelete, loser.ID)
		}
		toUpsert = append(toUpsert, &winner)
		survivors = append(survivors, winner)
		run.Fused += len(members) - 1
	}

	for _, m := range toUpsert {
		if err := o.store.Upsert(ctx, m); err != nil {
			o.logger.ErrorContext(ctx, "fusion upsert failed", "memory_id", m.ID.String(), "error", err.Error())
		}
	}
	var purged int
	o.deleteInBatches(ctx, tenantID, toDelete, &purged)

	return survivors
}

// isBetterSurvivor reports whether candidate should win over current:
// higher importance, lower id as tiebreaker.
func isBetterSurvivor(candidate, current memmodel.Memory) bool {
	if candidate.Importance != current.Importance {
		return candidate.Importance > current.Importance
	}
	return candidate.ID.String() < current.ID.String()
}

// triage computes each survivor's decayed score and either deletes it
// (forget), marks it archived (archive), or leaves it untouched.
func (o *Optimizer) triage(ctx context.Context, tenantID string, memories []memmodel.Memory, now time.Time, run *RunStats) []memmodel.Memory {
	survivors := memories[:0]
	var toDelete []uuid.UUID

	for _, m := range memories {
		mm := m
		if o.temporal.ShouldForget(&mm, now) {
			toDelete = append(toDelete, mm.ID)
			continue
		}
		if !mm.Archived && o.temporal.ShouldArchive(&mm, now) {
			mm.Archived = true
			if err := o.store.Upsert(ctx, &mm); err != nil {
				o.logger.ErrorContext(ctx, "archive upsert failed", "memory_id", mm.ID.String(), "error", err.Error())
			} else {
				run.Archived++
			}
		}
		survivors = append(survivors, mm)
	}

	o.deleteInBatches(ctx, tenantID, toDelete, &run.Forgotten)
	return survivors
}

// deleteInBatches removes ids in groups of up to BatchSize, yielding between
// batches, and adds the count to counter optimistically up front, backing
// out any ids whose batch delete fails.
func (o *Optimizer) deleteInBatches(ctx context.Context, tenantID string, ids []uuid.UUID, counter *int) {
	if len(ids) == 0 {
		return
	}
	*counter += len(ids)

	for _, r := range o.batches(len(ids)) {
		if ctx.Err() != nil {
			return
		}
		batch := ids[r[0]:r[1]]
		if err := o.store.DeleteBatch(ctx, tenantID, batch); err != nil {
			o.logger.ErrorContext(ctx, "batch delete failed", "count", len(batch), "error", err.Error())
			*counter -= len(batch)
		}
	}
}

// prune clears expired cache entries on every configured tier, then clears
// a tier entirely once its size reaches 0.9 of its max, per the spec's
// "obviously stale" prune trigger.
func (o *Optimizer) prune(run *RunStats) {
	for _, tier := range o.cacheTiers() {
		run.CachePruned += tier.CleanExpired()
		stats := tier.Stats()
		if stats.MaxSize > 0 && float64(stats.Size) >= 0.9*float64(stats.MaxSize) {
			run.CachePruned += stats.Size
			tier.Clear()
		}
	}
}

type pruner interface {
	CleanExpired() int
	Stats() cache.Stats
	Clear()
}

func (o *Optimizer) cacheTiers() []pruner {
	var tiers []pruner
	if o.resultCache != nil {
		tiers = append(tiers, o.resultCache)
	}
	if o.resultCacheLarge != nil {
		tiers = append(tiers, o.resultCacheLarge)
	}
	if o.embeddingCache != nil {
		tiers = append(tiers, o.embeddingCache)
	}
	return tiers
}

// unionFind is a small disjoint-set arena over [0,n), used by fuseBatch to
// group near-duplicate indices without building a pointer graph.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
