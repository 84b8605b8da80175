package vectorstore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"agentmemory/internal/memerr"
	"agentmemory/internal/memmodel"
	"agentmemory/internal/vectormath"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding TEXT NOT NULL,
	confidence REAL NOT NULL,
	importance REAL NOT NULL,
	emotional_weight REAL,
	has_emotional_weight INTEGER NOT NULL DEFAULT 0,
	tags TEXT,
	context TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	last_accessed_at DATETIME NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	ttl DATETIME,
	content_hash TEXT NOT NULL,
	archived INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_memories_tenant ON memories(tenant_id);
CREATE INDEX IF NOT EXISTS idx_memories_tenant_agent ON memories(tenant_id, agent_id);
CREATE INDEX IF NOT EXISTS idx_memories_content_hash ON memories(tenant_id, content_hash);
`

// SQLiteStore is the in-process brute-force Store implementation: rows are
// persisted in SQLite for durability, and similarity search scans matching
// rows in Go rather than relying on an ANN index, grounded on the teacher's
// events.EventStore schema-and-driver setup and on the pack's brute-force
// in-memory vector store's linear cosine scan.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store at
// path. Call Initialize before use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_sync=NORMAL")
	if err != nil {
		return nil, memerr.New(memerr.Internal, fmt.Errorf("open sqlite: %w", err))
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return memerr.New(memerr.Internal, fmt.Errorf("init schema: %w", err))
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, m *memmodel.Memory) error {
	if len(m.Embedding) == 0 {
		return memerr.New(memerr.InvalidContent, fmt.Errorf("memory %s has no embedding", m.ID))
	}

	embJSON, err := json.Marshal(m.Embedding)
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}
	tagsJSON, err := json.Marshal(m.TagSlice())
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}
	ctxJSON, err := json.Marshal(m.Context)
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}

	var emotionalWeight sql.NullFloat64
	hasEmotional := 0
	if m.EmotionalWeight != nil {
		emotionalWeight = sql.NullFloat64{Float64: *m.EmotionalWeight, Valid: true}
		hasEmotional = 1
	}

	var ttl sql.NullTime
	if m.TTL != nil {
		ttl = sql.NullTime{Time: *m.TTL, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (
			id, tenant_id, agent_id, type, content, embedding, confidence, importance,
			emotional_weight, has_emotional_weight, tags, context, created_at, updated_at,
			last_accessed_at, access_count, ttl, content_hash, archived
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id=excluded.tenant_id, agent_id=excluded.agent_id, type=excluded.type,
			content=excluded.content, embedding=excluded.embedding, confidence=excluded.confidence,
			importance=excluded.importance, emotional_weight=excluded.emotional_weight,
			has_emotional_weight=excluded.has_emotional_weight, tags=excluded.tags,
			context=excluded.context, updated_at=excluded.updated_at,
			last_accessed_at=excluded.last_accessed_at, access_count=excluded.access_count,
			ttl=excluded.ttl, content_hash=excluded.content_hash, archived=excluded.archived
	`,
		m.ID.String(), m.TenantID, m.AgentID, string(m.Type), m.Content, string(embJSON),
		m.Confidence, m.Importance, emotionalWeight, hasEmotional, string(tagsJSON), string(ctxJSON),
		m.CreatedAt, m.UpdatedAt, m.LastAccessedAt, m.AccessCount, ttl,
		hex.EncodeToString(m.ContentHash[:]), boolToInt(m.Archived),
	)
	if err != nil {
		return memerr.New(memerr.Internal, fmt.Errorf("upsert memory %s: %w", m.ID, err))
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, filter Filter, limit int, minScore float64) ([]memmodel.Result, error) {
	if len(embedding) == 0 {
		return nil, memerr.New(memerr.DimensionMismatch, fmt.Errorf("search embedding is empty"))
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.queryFiltered(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []memmodel.Result
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			continue
		}
		if mem.Archived && !filter.IncludeArchive {
			continue
		}
		score, err := vectormath.Cosine(embedding, mem.Embedding)
		if err != nil {
			continue
		}
		if mem.Archived {
			score *= ArchivePenalty
		}
		if score < minScore {
			continue
		}
		results = append(results, memmodel.Result{Memory: *mem, Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SQLiteStore) FindDuplicateByHash(ctx context.Context, hash [32]byte, filter Filter) (*memmodel.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, agent_id, type, content, embedding, confidence, importance,
			emotional_weight, has_emotional_weight, tags, context, created_at, updated_at,
			last_accessed_at, access_count, ttl, content_hash, archived
		FROM memories WHERE tenant_id = ? AND content_hash = ? LIMIT 1
	`, filter.TenantID, hex.EncodeToString(hash[:]))

	mem, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memerr.New(memerr.Internal, err)
	}
	return mem, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, filter Filter, limit int) ([]memmodel.Result, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := s.queryFiltered(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []memmodel.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			continue
		}
		memories = append(memories, *mem)
	}

	sort.Slice(memories, func(i, j int) bool {
		if !memories[i].LastAccessedAt.Equal(memories[j].LastAccessedAt) {
			return memories[i].LastAccessedAt.After(memories[j].LastAccessedAt)
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
	if len(memories) > limit {
		memories = memories[:limit]
	}

	results := make([]memmodel.Result, len(memories))
	for i, m := range memories {
		results[i] = memmodel.Result{Memory: m, Score: 1.0}
	}
	return results, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context, filter Filter) ([]memmodel.Memory, error) {
	rows, err := s.queryFiltered(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []memmodel.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			continue
		}
		memories = append(memories, *mem)
	}
	return memories, nil
}

func (s *SQLiteStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?
	`, at, id.String())
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}
	if n == 0 {
		return memerr.New(memerr.NotFound, fmt.Errorf("memory %s not found", id))
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, tenant string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ? AND tenant_id = ?`, id.String(), tenant)
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}
	if n == 0 {
		return memerr.New(memerr.NotFound, fmt.Errorf("memory %s not found", id))
	}
	return nil
}

func (s *SQLiteStore) DeleteBatch(ctx context.Context, tenant string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM memories WHERE id = ? AND tenant_id = ?`)
	if err != nil {
		tx.Rollback()
		return memerr.New(memerr.Internal, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id.String(), tenant); err != nil {
			tx.Rollback()
			return memerr.New(memerr.Internal, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return memerr.New(memerr.Internal, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryFiltered(ctx context.Context, filter Filter) (*sql.Rows, error) {
	query := `
		SELECT id, tenant_id, agent_id, type, content, embedding, confidence, importance,
			emotional_weight, has_emotional_weight, tags, context, created_at, updated_at,
			last_accessed_at, access_count, ttl, content_hash, archived
		FROM memories WHERE tenant_id = ?
	`
	args := []interface{}{filter.TenantID}

	if filter.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, filter.AgentID)
	}
	if len(filter.Types) > 0 {
		query += " AND type IN (" + placeholders(len(filter.Types)) + ")"
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memerr.New(memerr.Internal, fmt.Errorf("query memories: %w", err))
	}
	return rows, nil
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*memmodel.Memory, error) {
	var (
		idStr, tenantID, agentID, typ, content, embJSON string
		confidence, importance                          float64
		emotionalWeight                                  sql.NullFloat64
		hasEmotional                                     int
		tagsJSON, ctxJSON                                sql.NullString
		createdAt, updatedAt, lastAccessedAt             time.Time
		accessCount                                      uint64
		ttl                                               sql.NullTime
		contentHashHex                                    string
		archived                                          int
	)

	err := row.Scan(&idStr, &tenantID, &agentID, &typ, &content, &embJSON, &confidence, &importance,
		&emotionalWeight, &hasEmotional, &tagsJSON, &ctxJSON, &createdAt, &updatedAt,
		&lastAccessedAt, &accessCount, &ttl, &contentHashHex, &archived)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}

	var embedding []float32
	if err := json.Unmarshal([]byte(embJSON), &embedding); err != nil {
		return nil, err
	}

	tags := make(map[string]struct{})
	if tagsJSON.Valid {
		var tagSlice []string
		if err := json.Unmarshal([]byte(tagsJSON.String), &tagSlice); err == nil {
			for _, tag := range tagSlice {
				tags[tag] = struct{}{}
			}
		}
	}

	var memCtx map[string]interface{}
	if ctxJSON.Valid {
		_ = json.Unmarshal([]byte(ctxJSON.String), &memCtx)
	}

	hashBytes, err := hex.DecodeString(contentHashHex)
	if err != nil || len(hashBytes) != 32 {
		hashBytes = make([]byte, 32)
	}

	mem := &memmodel.Memory{
		ID:             id,
		TenantID:       tenantID,
		AgentID:        agentID,
		Type:           memmodel.Type(typ),
		Content:        content,
		Embedding:      embedding,
		Confidence:     confidence,
		Importance:     importance,
		Tags:           tags,
		Context:        memCtx,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		LastAccessedAt: lastAccessedAt,
		AccessCount:    accessCount,
		Archived:       archived != 0,
	}
	copy(mem.ContentHash[:], hashBytes)
	if hasEmotional != 0 && emotionalWeight.Valid {
		ew := emotionalWeight.Float64
		mem.EmotionalWeight = &ew
	}
	if ttl.Valid {
		t := ttl.Time
		mem.TTL = &t
	}

	return mem, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
