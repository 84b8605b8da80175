package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"agentmemory/internal/memerr"
)

// DeterministicEmbedder is a test fake: it hashes content into a
// fixed-dimension unit vector without any network call, so engine and
// recall tests can assert on similarity relationships without an OpenAI
// key.
type DeterministicEmbedder struct {
	dims int
}

// NewDeterministicEmbedder builds a DeterministicEmbedder producing dims-
// length vectors.
func NewDeterministicEmbedder(dims int) *DeterministicEmbedder {
	if dims <= 0 {
		dims = 32
	}
	return &DeterministicEmbedder{dims: dims}
}

func (e *DeterministicEmbedder) Dimensions() int { return e.dims }
func (e *DeterministicEmbedder) ModelID() string { return "deterministic-test-embedder" }

func (e *DeterministicEmbedder) Embed(_ context.Context, content string) ([]float32, error) {
	if strings.TrimSpace(content) == "" {
		return nil, memerr.New(memerr.InvalidContent, nil)
	}
	return e.vectorFor(content), nil
}

func (e *DeterministicEmbedder) EmbedBatch(ctx context.Context, contents []string) ([][]float32, error) {
	out := make([][]float32, len(contents))
	for i, c := range contents {
		v, err := e.Embed(ctx, c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// vectorFor derives a unit vector from content by hashing overlapping
// trigrams into dimension buckets, so similar content produces similar
// vectors (shared trigrams land in the same buckets) while being fully
// deterministic and dependency-free.
func (e *DeterministicEmbedder) vectorFor(content string) []float32 {
	vec := make([]float64, e.dims)
	lower := strings.ToLower(content)

	grams := trigrams(lower)
	for _, g := range grams {
		h := fnv.New32a()
		_, _ = h.Write([]byte(g))
		bucket := int(h.Sum32()) % e.dims
		if bucket < 0 {
			bucket += e.dims
		}
		vec[bucket]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, e.dims)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func trigrams(s string) []string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) < 3 {
		return []string{s}
	}
	grams := make([]string, 0, len(s)-2)
	for i := 0; i+3 <= len(s); i++ {
		grams = append(grams, s[i:i+3])
	}
	return grams
}
