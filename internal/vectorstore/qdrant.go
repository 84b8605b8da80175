package vectorstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"agentmemory/internal/memerr"
	"agentmemory/internal/memmodel"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const defaultVectorSize = 1536

// QdrantConfig configures a connection to an external Qdrant instance.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorSize uint64
}

// QdrantStore is the external-ANN Store implementation, adapted from the
// teacher's storage.QdrantStore: same client setup and point/payload
// conversion shape, retargeted from conversation chunks to tenant-scoped
// memories.
type QdrantStore struct {
	client     *qdrant.Client
	cfg        QdrantConfig
	collection string
}

// NewQdrantStore builds a QdrantStore; call Initialize before use.
func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	collection := cfg.Collection
	if collection == "" {
		collection = "agent_memories"
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = defaultVectorSize
	}
	return &QdrantStore{cfg: cfg, collection: collection}
}

func (qs *QdrantStore) Initialize(ctx context.Context) error {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   qs.cfg.Host,
		Port:                   qs.cfg.Port,
		APIKey:                 qs.cfg.APIKey,
		UseTLS:                 qs.cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return memerr.New(memerr.Unavailable, fmt.Errorf("create qdrant client: %w", err))
	}
	qs.client = client

	collections, err := client.ListCollections(ctx)
	if err != nil {
		return memerr.New(memerr.Unavailable, fmt.Errorf("list collections: %w", err))
	}

	for _, name := range collections {
		if name == qs.collection {
			return nil
		}
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: qs.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     qs.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return memerr.New(memerr.Internal, fmt.Errorf("create collection %s: %w", qs.collection, err))
	}
	return nil
}

func (qs *QdrantStore) Upsert(ctx context.Context, m *memmodel.Memory) error {
	if len(m.Embedding) == 0 {
		return memerr.New(memerr.InvalidContent, fmt.Errorf("memory %s has no embedding", m.ID))
	}

	point, err := qs.memoryToPoint(m)
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}

	_, err = qs.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qs.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return memerr.New(memerr.Unavailable, fmt.Errorf("upsert memory %s: %w", m.ID, err))
	}
	return nil
}

func (qs *QdrantStore) Search(ctx context.Context, embedding []float32, filter Filter, limit int, minScore float64) ([]memmodel.Result, error) {
	if len(embedding) == 0 {
		return nil, memerr.New(memerr.DimensionMismatch, fmt.Errorf("search embedding is empty"))
	}
	if limit <= 0 {
		limit = 10
	}

	qf := qs.buildFilter(filter)
	if !filter.IncludeArchive {
		qf.MustNot = append(qf.MustNot, fieldMatchBool("archived", true))
	}

	searchResult, err := qs.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qs.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)), //nolint:gosec
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
		Filter:         qf,
		ScoreThreshold: qdrant.PtrOf(float32(minScore)),
	})
	if err != nil {
		return nil, memerr.New(memerr.Unavailable, fmt.Errorf("qdrant query: %w", err))
	}

	results := make([]memmodel.Result, 0, len(searchResult))
	for _, point := range searchResult {
		mem, err := qs.pointToMemory(point.GetId(), point.GetPayload(), point.GetVectors())
		if err != nil {
			continue
		}
		score := float64(point.GetScore())
		if mem.Archived {
			score *= ArchivePenalty
		}
		results = append(results, memmodel.Result{Memory: *mem, Score: score})
	}
	return results, nil
}

func (qs *QdrantStore) FindDuplicateByHash(ctx context.Context, hash [32]byte, filter Filter) (*memmodel.Memory, error) {
	f := qs.buildFilter(filter)
	f.Must = append(f.Must, &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   "content_hash",
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: hex.EncodeToString(hash[:])}},
			},
		},
	})

	points, err := qs.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: qs.collection,
		Filter:         f,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, memerr.New(memerr.Unavailable, fmt.Errorf("scroll for duplicate: %w", err))
	}
	if len(points) == 0 {
		return nil, nil
	}

	mem, err := qs.pointToMemory(points[0].GetId(), points[0].GetPayload(), points[0].GetVectors())
	if err != nil {
		return nil, memerr.New(memerr.Internal, err)
	}
	return mem, nil
}

func (qs *QdrantStore) Recent(ctx context.Context, filter Filter, limit int) ([]memmodel.Result, error) {
	if limit <= 0 {
		limit = 25
	}

	memories, err := qs.scrollAll(ctx, filter)
	if err != nil {
		return nil, err
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

func (qs *QdrantStore) ListAll(ctx context.Context, filter Filter) ([]memmodel.Memory, error) {
	return qs.scrollAll(ctx, filter)
}

// scrollAll pages through every point matching filter via repeated Scroll
// calls, following Qdrant's offset-by-last-id pagination convention.
func (qs *QdrantStore) scrollAll(ctx context.Context, filter Filter) ([]memmodel.Memory, error) {
	const pageSize = 256

	var (
		memories []memmodel.Memory
		offset   *qdrant.PointId
	)

	for {
		req := &qdrant.ScrollPoints{
			CollectionName: qs.collection,
			Filter:         qs.buildFilter(filter),
			Limit:          qdrant.PtrOf(uint32(pageSize)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
			Offset:         offset,
		}

		points, err := qs.client.Scroll(ctx, req)
		if err != nil {
			return nil, memerr.New(memerr.Unavailable, fmt.Errorf("scroll: %w", err))
		}
		if len(points) == 0 {
			break
		}

		for _, p := range points {
			mem, err := qs.pointToMemory(p.GetId(), p.GetPayload(), p.GetVectors())
			if err != nil {
				continue
			}
			memories = append(memories, *mem)
		}

		if len(points) < pageSize {
			break
		}
		offset = points[len(points)-1].GetId()
	}

	return memories, nil
}

func (qs *QdrantStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	points, err := qs.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: qs.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id.String())},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return memerr.New(memerr.Unavailable, fmt.Errorf("get for touch: %w", err))
	}
	if len(points) == 0 {
		return memerr.New(memerr.NotFound, fmt.Errorf("memory %s not found", id))
	}

	mem, err := qs.pointToMemory(points[0].GetId(), points[0].GetPayload(), points[0].GetVectors())
	if err != nil {
		return memerr.New(memerr.Internal, err)
	}
	mem.Touch(at)
	return qs.Upsert(ctx, mem)
}

// ownedPointIDs fetches points by id and returns only those whose tenant_id
// payload field matches tenant. Delete and DeleteBatch use it; Touch does no
// tenant check.
func (qs *QdrantStore) ownedPointIDs(ctx context.Context, tenant string, ids []uuid.UUID) ([]*qdrant.PointId, error) {
	want := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		want[i] = qdrant.NewID(id.String())
	}
	points, err := qs.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: qs.collection,
		Ids:            want,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, memerr.New(memerr.Unavailable, fmt.Errorf("get for delete: %w", err))
	}

	owned := make([]*qdrant.PointId, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		if tid, ok := payload["tenant_id"]; ok && tid.GetStringValue() == tenant {
			owned = append(owned, p.GetId())
		}
	}
	return owned, nil
}

func (qs *QdrantStore) Delete(ctx context.Context, tenant string, id uuid.UUID) error {
	owned, err := qs.ownedPointIDs(ctx, tenant, []uuid.UUID{id})
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return memerr.New(memerr.NotFound, fmt.Errorf("memory %s not found", id))
	}

	_, err = qs.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: qs.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: owned},
			},
		},
	})
	if err != nil {
		return memerr.New(memerr.Unavailable, fmt.Errorf("delete memory %s: %w", id, err))
	}
	return nil
}

func (qs *QdrantStore) DeleteBatch(ctx context.Context, tenant string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	owned, err := qs.ownedPointIDs(ctx, tenant, ids)
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return nil
	}

	_, err = qs.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: qs.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: owned},
			},
		},
	})
	if err != nil {
		return memerr.New(memerr.Unavailable, fmt.Errorf("delete batch: %w", err))
	}
	return nil
}

func (qs *QdrantStore) Close() error {
	if qs.client == nil {
		return nil
	}
	return qs.client.Close()
}

func (qs *QdrantStore) buildFilter(filter Filter) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, 3)
	conditions = append(conditions, fieldMatch("tenant_id", filter.TenantID))
	if filter.AgentID != "" {
		conditions = append(conditions, fieldMatch("agent_id", filter.AgentID))
	}
	if len(filter.Types) > 0 {
		vals := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			vals[i] = string(t)
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "type",
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: vals}}},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func fieldMatch(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func fieldMatchBool(key string, value bool) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: value}},
			},
		},
	}
}

type memoryPayload struct {
	TenantID        string                 `json:"tenant_id"`
	AgentID         string                 `json:"agent_id"`
	Type            string                 `json:"type"`
	Content         string                 `json:"content"`
	Confidence      float64                `json:"confidence"`
	Importance      float64                `json:"importance"`
	EmotionalWeight *float64               `json:"emotional_weight,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Context         map[string]interface{} `json:"context,omitempty"`
	CreatedAt       int64                  `json:"created_at"`
	UpdatedAt       int64                  `json:"updated_at"`
	LastAccessedAt  int64                  `json:"last_accessed_at"`
	AccessCount     uint64                 `json:"access_count"`
	TTL             *int64                 `json:"ttl,omitempty"`
	ContentHash     string                 `json:"content_hash"`
	Archived        bool                   `json:"archived"`
}

func (qs *QdrantStore) memoryToPoint(m *memmodel.Memory) (*qdrant.PointStruct, error) {
	p := memoryPayload{
		TenantID:        m.TenantID,
		AgentID:         m.AgentID,
		Type:            string(m.Type),
		Content:         m.Content,
		Confidence:      m.Confidence,
		Importance:      m.Importance,
		EmotionalWeight: m.EmotionalWeight,
		Tags:            m.TagSlice(),
		Context:         m.Context,
		CreatedAt:       m.CreatedAt.Unix(),
		UpdatedAt:       m.UpdatedAt.Unix(),
		LastAccessedAt:  m.LastAccessedAt.Unix(),
		AccessCount:     m.AccessCount,
		ContentHash:     hex.EncodeToString(m.ContentHash[:]),
		Archived:        m.Archived,
	}
	if m.TTL != nil {
		ttl := m.TTL.Unix()
		p.TTL = &ttl
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, err
	}

	payload := make(map[string]*qdrant.Value, len(asMap))
	for k, v := range asMap {
		payload[k] = jsonToValue(v)
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewID(m.ID.String()),
		Vectors: qdrant.NewVectors(m.Embedding...),
		Payload: payload,
	}, nil
}

func (qs *QdrantStore) pointToMemory(id *qdrant.PointId, payload map[string]*qdrant.Value, vectors *qdrant.VectorsOutput) (*memmodel.Memory, error) {
	asMap := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		asMap[k] = valueToJSON(v)
	}
	raw, err := json.Marshal(asMap)
	if err != nil {
		return nil, err
	}
	var p memoryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	memID, err := uuid.Parse(idToString(id))
	if err != nil {
		return nil, err
	}
	hashBytes, err := hex.DecodeString(p.ContentHash)
	if err != nil || len(hashBytes) != 32 {
		hashBytes = make([]byte, 32)
	}

	tags := make(map[string]struct{}, len(p.Tags))
	for _, tag := range p.Tags {
		tags[tag] = struct{}{}
	}

	mem := &memmodel.Memory{
		ID:              memID,
		TenantID:        p.TenantID,
		AgentID:         p.AgentID,
		Type:            memmodel.Type(p.Type),
		Content:         p.Content,
		Confidence:      p.Confidence,
		Importance:      p.Importance,
		EmotionalWeight: p.EmotionalWeight,
		Tags:            tags,
		Context:         p.Context,
		CreatedAt:       time.Unix(p.CreatedAt, 0).UTC(),
		UpdatedAt:       time.Unix(p.UpdatedAt, 0).UTC(),
		LastAccessedAt:  time.Unix(p.LastAccessedAt, 0).UTC(),
		AccessCount:     p.AccessCount,
		Archived:        p.Archived,
	}
	copy(mem.ContentHash[:], hashBytes)
	if p.TTL != nil {
		ttl := time.Unix(*p.TTL, 0).UTC()
		mem.TTL = &ttl
	}
	if vectors != nil {
		if v := vectors.GetVector(); v != nil {
			mem.Embedding = v.GetData()
		}
	}

	return mem, nil
}

func idToString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func jsonToValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case bool:
		return qdrant.NewValueBool(val)
	case []interface{}:
		list := make([]*qdrant.Value, len(val))
		for i, item := range val {
			list[i] = jsonToValue(item)
		}
		return qdrant.NewValueList(list)
	case map[string]interface{}:
		m := make(map[string]*qdrant.Value, len(val))
		for k, item := range val {
			m[k] = jsonToValue(item)
		}
		return qdrant.NewValueStruct(&qdrant.Struct{Fields: m})
	case nil:
		return qdrant.NewValueNull()
	default:
		return qdrant.NewValueString(fmt.Sprintf("%v", val))
	}
}

func valueToJSON(v *qdrant.Value) interface{} {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		out := make([]interface{}, len(kind.ListValue.GetValues()))
		for i, item := range kind.ListValue.GetValues() {
			out[i] = valueToJSON(item)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]interface{}, len(kind.StructValue.GetFields()))
		for k, item := range kind.StructValue.GetFields() {
			out[k] = valueToJSON(item)
		}
		return out
	default:
		return nil
	}
}
