package temporal

import (
	"testing"
	"time"

	"agentmemory/internal/memmodel"
	"github.com/stretchr/testify/assert"
)

func newMemory(typ memmodel.Type, createdAt, lastAccessed time.Time, importance, confidence float64, accessCount uint64) *memmodel.Memory {
	return &memmodel.Memory{
		Type:           typ,
		CreatedAt:      createdAt,
		LastAccessedAt: lastAccessed,
		Importance:     importance,
		Confidence:     confidence,
		AccessCount:    accessCount,
	}
}

func TestScoreBoundedness(t *testing.T) {
	e := New()
	now := time.Now()

	// Importance > 1 and age -> huge should still clamp into [0,1].
	m := newMemory(memmodel.TypeFact, now.Add(-1000*24*time.Hour), now.Add(-1000*24*time.Hour), 5.0, 2.0, 1_000_000)
	s := e.Score(m, now)
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)

	// Negative confidence should also stay within bounds.
	m2 := newMemory(memmodel.TypeFact, now, now, 0.5, -1.0, 0)
	s2 := e.Score(m2, now)
	assert.GreaterOrEqual(t, s2, 0.0)
	assert.LessOrEqual(t, s2, 1.0)
}

func TestTemporalMonotonicity(t *testing.T) {
	e := New()
	now := time.Now()

	older := newMemory(memmodel.TypeFact, now.Add(-30*24*time.Hour), now.Add(-30*24*time.Hour), 0.5, 1.0, 2)
	newer := newMemory(memmodel.TypeFact, now.Add(-1*time.Hour), now.Add(-1*time.Hour), 0.5, 1.0, 2)

	assert.GreaterOrEqual(t, e.Score(newer, now), e.Score(older, now))
}

func TestRecentBoost(t *testing.T) {
	e := New()
	now := time.Now()

	stale := newMemory(memmodel.TypeFact, now.Add(-10*24*time.Hour), now.Add(-10*24*time.Hour), 0.5, 1.0, 0)
	justTouched := newMemory(memmodel.TypeFact, now.Add(-10*24*time.Hour), now.Add(-time.Minute), 0.5, 1.0, 0)

	assert.Greater(t, e.Score(justTouched, now), e.Score(stale, now))
}

func TestShouldForgetDominatesArchive(t *testing.T) {
	e := New()
	now := time.Now()

	past := now.Add(-time.Minute)
	m := newMemory(memmodel.TypeFact, now.Add(-time.Hour), now.Add(-time.Hour), 1.0, 1.0, 100)
	m.TTL = &past

	assert.True(t, e.ShouldForget(m, now))
}

func TestDecayParameterOverrideAndReset(t *testing.T) {
	e := New()
	e.SetDecayParameters(memmodel.TypeFact, Params{ImportanceWeight: 0, FrequencyWeight: 0, EmotionalWeight: 0, BaseDecayRate: 1})
	now := time.Now()
	m := newMemory(memmodel.TypeFact, now.Add(-time.Hour), now.Add(-time.Hour), 0, 0.5, 0)
	before := e.Score(m, now)

	e.ResetDecayParameters()
	after := e.Score(m, now)

	assert.NotEqual(t, before, after)
}

func TestRelevanceBlendUsesPreferredTypes(t *testing.T) {
	now := time.Now()
	m := newMemory(memmodel.TypeTask, now, now, 0.5, 1.0, 0)

	base := Relevance(0.8, m, now, RelevanceOptions{})
	preferred := Relevance(0.8, m, now, RelevanceOptions{PreferredTypes: map[memmodel.Type]struct{}{memmodel.TypeTask: {}}})

	assert.Greater(t, preferred, base)
}
