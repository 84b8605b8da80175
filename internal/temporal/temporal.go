// Package temporal implements the decay-parameter table and the decayed
// score function used for ranking, archival, and forgetting, adapted from
// the shape of the teacher's decay manager (a configurable, per-type table
// feeding a single scoring function) but retargeted to the exact formula
// the memory engine requires.
package temporal

import (
	"math"
	"sync"
	"time"

	"agentmemory/internal/memmodel"
)

// Params holds the per-type decay coefficients.
type Params struct {
	ImportanceWeight float64
	FrequencyWeight  float64
	EmotionalWeight  float64
	BaseDecayRate    float64 // half_life = 1 / BaseDecayRate days
}

func defaultParams() map[memmodel.Type]Params {
	return map[memmodel.Type]Params{
		// Slowest decay: identity-defining memories.
		memmodel.TypePersonality: {ImportanceWeight: 0.9, FrequencyWeight: 0.2, EmotionalWeight: 0.2, BaseDecayRate: 1.0 / 180},
		memmodel.TypeProcedure:   {ImportanceWeight: 0.8, FrequencyWeight: 0.3, EmotionalWeight: 0.1, BaseDecayRate: 1.0 / 120},
		memmodel.TypePreference:  {ImportanceWeight: 0.6, FrequencyWeight: 0.3, EmotionalWeight: 0.3, BaseDecayRate: 1.0 / 60},
		memmodel.TypeFact:        {ImportanceWeight: 0.5, FrequencyWeight: 0.4, EmotionalWeight: 0.1, BaseDecayRate: 1.0 / 45},
		memmodel.TypeTask:        {ImportanceWeight: 0.4, FrequencyWeight: 0.3, EmotionalWeight: 0.1, BaseDecayRate: 1.0 / 14},
		// Fastest decay: ephemeral / affect-laden memories.
		memmodel.TypeThread:  {ImportanceWeight: 0.3, FrequencyWeight: 0.5, EmotionalWeight: 0.2, BaseDecayRate: 1.0 / 7},
		memmodel.TypeEmotion: {ImportanceWeight: 0.3, FrequencyWeight: 0.2, EmotionalWeight: 0.6, BaseDecayRate: 1.0 / 5},
	}
}

// Thresholds below which a memory is a candidate for archival or forgetting.
type Thresholds struct {
	ArchiveThreshold float64
	ForgetThreshold  float64
}

func defaultThresholds() Thresholds {
	return Thresholds{ArchiveThreshold: 0.10, ForgetThreshold: 0.05}
}

// Engine evaluates decayed scores and archive/forget predicates against a
// shared, read-mostly parameter table.
type Engine struct {
	mu         sync.RWMutex
	params     map[memmodel.Type]Params
	thresholds Thresholds
}

// New builds an Engine with the documented per-type defaults.
func New() *Engine {
	return &Engine{params: defaultParams(), thresholds: defaultThresholds()}
}

// NewWithThresholds builds an Engine with custom archive/forget thresholds.
func NewWithThresholds(th Thresholds) *Engine {
	return &Engine{params: defaultParams(), thresholds: th}
}

// SetDecayParameters overrides the coefficients for a single memory type.
func (e *Engine) SetDecayParameters(t memmodel.Type, p Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params[t] = p
}

// ResetDecayParameters restores every type's coefficients to the documented
// defaults.
func (e *Engine) ResetDecayParameters() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = defaultParams()
}

func (e *Engine) paramsFor(t memmodel.Type) Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p, ok := e.params[t]; ok {
		return p
	}
	return Params{ImportanceWeight: 0.5, FrequencyWeight: 0.3, EmotionalWeight: 0.2, BaseDecayRate: 1.0 / 30}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Score computes the decayed score of m at time now:
//
//	age_days = (now - created_at) / 1 day
//	idle_days = (now - last_accessed_at) / 1 day
//	half_life = 1 / base_decay_rate
//	time_factor = exp(-age_days / (half_life * (1 + importance*imp_weight)))
//	access_boost = 1 + freq_weight * log(1 + access_count)
//	emo_boost = 1 + emo_weight * |emotional_weight| (1 if absent)
//	recent_boost = 1.15 if idle_days < 1 else 1.0
//	score = clamp01(confidence * time_factor * access_boost * emo_boost * recent_boost)
func (e *Engine) Score(m *memmodel.Memory, now time.Time) float64 {
	p := e.paramsFor(m.Type)

	ageDays := now.Sub(m.CreatedAt).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	idleDays := now.Sub(m.LastAccessedAt).Hours() / 24.0
	if idleDays < 0 {
		idleDays = 0
	}

	importance := m.Importance
	if importance < 0 {
		importance = 0
	}

	halfLife := 1.0
	if p.BaseDecayRate > 0 {
		halfLife = 1.0 / p.BaseDecayRate
	}
	denom := halfLife * (1 + importance*p.ImportanceWeight)
	var timeFactor float64
	if denom <= 0 {
		timeFactor = 0
	} else {
		timeFactor = math.Exp(-ageDays / denom)
	}

	accessBoost := 1 + p.FrequencyWeight*math.Log1p(float64(m.AccessCount))

	emoBoost := 1.0
	if m.EmotionalWeight != nil {
		ew := *m.EmotionalWeight
		if ew < 0 {
			ew = -ew
		}
		emoBoost = 1 + p.EmotionalWeight*ew
	}

	recentBoost := 1.0
	if idleDays < 1 {
		recentBoost = 1.15
	}

	confidence := clamp01(m.Confidence)
	score := confidence * timeFactor * accessBoost * emoBoost * recentBoost
	return clamp01(score)
}

// ShouldArchive reports whether m's decayed score falls below the archive
// threshold.
func (e *Engine) ShouldArchive(m *memmodel.Memory, now time.Time) bool {
	return e.Score(m, now) < e.thresholds.ArchiveThreshold
}

// ShouldForget reports whether m is past its TTL or its decayed score falls
// below the forget threshold. Forgetting dominates archival.
func (e *Engine) ShouldForget(m *memmodel.Memory, now time.Time) bool {
	if m.Expired(now) {
		return true
	}
	return e.Score(m, now) < e.thresholds.ForgetThreshold
}

// RelevanceOptions customizes the recall-time relevance blend.
type RelevanceOptions struct {
	PreferredTypes map[memmodel.Type]struct{}
	// Contextual is a user-supplied contribution to contextual(m), already
	// normalized to [0,1]. Defaults to 0 when unset.
	Contextual func(m *memmodel.Memory) float64
}

// Recency returns exp(-age_days/30), the similarity-independent recency
// factor used in the relevance blend.
func Recency(m *memmodel.Memory, now time.Time) float64 {
	ageDays := now.Sub(m.CreatedAt).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / 30.0)
}

// Relevance combines a vector-store similarity s with recency, contextual,
// and type-preference factors per the 0.5/0.2/0.2/0.1 blend.
func Relevance(s float64, m *memmodel.Memory, now time.Time, opts RelevanceOptions) float64 {
	recency := Recency(m, now)

	contextual := 0.0
	if opts.Contextual != nil {
		contextual = clamp01(opts.Contextual(m))
	}

	typePref := 1.0
	if opts.PreferredTypes != nil {
		if _, ok := opts.PreferredTypes[m.Type]; ok {
			typePref = 1.2
		}
	}

	return 0.5*s + 0.2*recency + 0.2*contextual + 0.1*typePref
}
