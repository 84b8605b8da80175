// Package vectorstore defines the storage adapter contract the memory
// engine persists and searches memories through, with two implementations:
// an external ANN-backed Store (Qdrant) and an in-process brute-force
// Store (SQLite-backed), grounded on the teacher's storage.VectorStore
// family of interfaces.
package vectorstore

import (
	"context"
	"time"

	"agentmemory/internal/memmodel"
	"github.com/google/uuid"
)

// Filter scopes a Search or FindDuplicateByHash call to a tenant, optionally
// narrowed further to a single agent and/or a set of memory types.
type Filter struct {
	TenantID string
	AgentID  string // empty means any agent within the tenant
	Types    []memmodel.Type

	// IncludeArchive controls whether Search returns archived memories.
	// Archived memories are excluded by default; when true they are
	// returned alongside non-archived ones but with ArchivePenalty applied
	// to their score, reflecting their reduced retrieval weight. ListAll,
	// used by the optimizer to build its maintenance working set, always
	// sees archived memories regardless of this flag.
	IncludeArchive bool
}

// ArchivePenalty is the multiplicative score penalty Search applies to an
// archived memory when Filter.IncludeArchive is true.
const ArchivePenalty = 0.5

// Store is the contract every vector-store adapter implements. All
// operations are tenant-scoped: callers must supply a Filter.TenantID on
// every read, and every write carries the tenant id on the Memory itself.
type Store interface {
	// Initialize prepares the backing collection/schema. Called once during
	// engine startup; idempotent.
	Initialize(ctx context.Context) error

	// Upsert inserts or replaces m, keyed by m.ID.
	Upsert(ctx context.Context, m *memmodel.Memory) error

	// Search returns the k most similar memories to embedding within the
	// filter's scope, ordered by descending similarity, along with their
	// raw similarity score.
	Search(ctx context.Context, embedding []float32, filter Filter, limit int, minScore float64) ([]memmodel.Result, error)

	// FindDuplicateByHash returns the memory within filter.TenantID whose
	// ContentHash equals hash, if one exists.
	FindDuplicateByHash(ctx context.Context, hash [32]byte, filter Filter) (*memmodel.Memory, error)

	// Recent returns up to limit memories in filter's scope ordered by
	// last_accessed_at desc, then created_at desc, with a similarity score
	// of 1.0 (there is no query vector). Used by get_context.
	Recent(ctx context.Context, filter Filter, limit int) ([]memmodel.Result, error)

	// ListAll returns every memory in filter's scope, unordered. Used by the
	// optimizer to build its per-cycle working set; callers are responsible
	// for batching the result.
	ListAll(ctx context.Context, filter Filter) ([]memmodel.Memory, error)

	// Touch records an access against the memory identified by id: bumps
	// access_count and sets last_accessed_at to at.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	// Delete removes a single memory by id, scoped to tenant: a memory
	// belonging to a different tenant is left untouched and reported
	// NotFound, the same as an id that does not exist at all.
	Delete(ctx context.Context, tenant string, id uuid.UUID) error

	// DeleteBatch removes many memories by id in one call, scoped to tenant
	// the same way Delete is; ids belonging to a different tenant are
	// silently skipped rather than deleted.
	DeleteBatch(ctx context.Context, tenant string, ids []uuid.UUID) error

	// Close releases any resources (connections, file handles) the store
	// holds.
	Close() error
}
