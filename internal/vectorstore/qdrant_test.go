package vectorstore

import (
	"testing"
	"time"

	"agentmemory/internal/memmodel"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryToPointAndBackRoundTrips(t *testing.T) {
	qs := NewQdrantStore(QdrantConfig{})

	now := time.Now().Truncate(time.Second).UTC()
	ew := 0.4
	m := &memmodel.Memory{
		ID:              uuid.New(),
		TenantID:        "tenant-1",
		AgentID:         "agent-1",
		Type:            memmodel.TypePreference,
		Content:         "prefers dark mode",
		Embedding:       []float32{0.1, 0.2, 0.3},
		Confidence:      0.8,
		Importance:      0.6,
		EmotionalWeight: &ew,
		Tags:            map[string]struct{}{"ui": {}},
		Context:         map[string]interface{}{"source": "onboarding"},
		CreatedAt:       now,
		UpdatedAt:       now,
		LastAccessedAt:  now,
		AccessCount:     3,
		ContentHash:     [32]byte{1, 2, 3, 4},
	}

	point, err := qs.memoryToPoint(m)
	require.NoError(t, err)
	require.NotNil(t, point)

	vectors := &qdrant.VectorsOutput{
		VectorsOptions: &qdrant.VectorsOutput_Vector{Vector: &qdrant.VectorOutput{Data: m.Embedding}},
	}
	back, err := qs.pointToMemory(point.GetId(), point.GetPayload(), vectors)
	require.NoError(t, err)

	assert.Equal(t, m.ID, back.ID)
	assert.Equal(t, m.TenantID, back.TenantID)
	assert.Equal(t, m.Type, back.Type)
	assert.Equal(t, m.Content, back.Content)
	assert.Equal(t, m.ContentHash, back.ContentHash)
	require.NotNil(t, back.EmotionalWeight)
	assert.InDelta(t, ew, *back.EmotionalWeight, 1e-9)
	assert.Equal(t, m.Embedding, back.Embedding)
}

func TestBuildFilterIncludesTenantAgentAndTypes(t *testing.T) {
	qs := NewQdrantStore(QdrantConfig{})
	f := qs.buildFilter(Filter{TenantID: "t1", AgentID: "a1", Types: []memmodel.Type{memmodel.TypeFact, memmodel.TypeTask}})
	assert.Len(t, f.Must, 3)
}
