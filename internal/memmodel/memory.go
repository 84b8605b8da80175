// Package memmodel defines the shared data model for a stored memory: the
// unit persisted by the vector store and scored by the temporal engine.
// It has no dependencies on the engine, cache, or store packages so that all
// of them can depend on it without import cycles.
package memmodel

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Type is one of the seven memory categories that drive decay coefficients.
type Type string

const (
	TypePersonality Type = "personality"
	TypeProcedure   Type = "procedure"
	TypePreference  Type = "preference"
	TypeFact        Type = "fact"
	TypeThread      Type = "thread"
	TypeTask        Type = "task"
	TypeEmotion     Type = "emotion"
)

// Valid reports whether t is one of the seven recognized memory types.
func (t Type) Valid() bool {
	switch t {
	case TypePersonality, TypeProcedure, TypePreference, TypeFact, TypeThread, TypeTask, TypeEmotion:
		return true
	}
	return false
}

// AllTypes enumerates every recognized memory type, in the order decay
// defaults are documented.
var AllTypes = []Type{TypePersonality, TypeProcedure, TypePreference, TypeFact, TypeThread, TypeTask, TypeEmotion}

// Memory is the unit of storage: a single natural-language fact, procedure,
// preference, event, emotion, thread, or task belonging to exactly one
// tenant.
type Memory struct {
	ID              uuid.UUID
	TenantID        string
	AgentID         string // empty means unset
	Type            Type
	Content         string
	Embedding       []float32
	Confidence      float64
	Importance      float64
	EmotionalWeight *float64 // nil means absent
	Tags            map[string]struct{}
	Context         map[string]interface{}
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastAccessedAt  time.Time
	AccessCount     uint64
	TTL             *time.Time
	ContentHash     [32]byte
	Archived        bool
}

// Expired reports whether m's TTL has passed as of now.
func (m *Memory) Expired(now time.Time) bool {
	return m.TTL != nil && now.After(*m.TTL)
}

// Touch records an access: bumps AccessCount and LastAccessedAt.
func (m *Memory) Touch(now time.Time) {
	m.AccessCount++
	m.LastAccessedAt = now
}

// TagSlice returns the sorted tag names as a slice, for serialization.
func (m *Memory) TagSlice() []string {
	out := make([]string, 0, len(m.Tags))
	for tag := range m.Tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Result is a scored view over a Memory returned from recall. Scores are
// derived at query time and never persisted.
type Result struct {
	Memory         Memory
	Score          float64
	RelevanceReason string
}
