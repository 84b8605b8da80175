// Package embedder turns memory content into embedding vectors, adapted
// from the teacher's embeddings.OpenAIService but reworked to lean on the
// shared resilience.Guard instead of hand-rolled retry logic. Embedders do
// not cache; the engine caches embeddings in a cache.EmbeddingCache.
package embedder

import "context"

// Embedder produces embedding vectors for natural-language content.
type Embedder interface {
	// Embed returns the embedding vector for a single piece of content.
	Embed(ctx context.Context, content string) ([]float32, error)

	// EmbedBatch returns one embedding per element of contents, in order.
	EmbedBatch(ctx context.Context, contents []string) ([][]float32, error)

	// Dimensions reports the length of vectors this embedder produces.
	Dimensions() int

	// ModelID identifies the embedding model, used as part of the
	// embedding cache key.
	ModelID() string
}
