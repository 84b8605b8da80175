package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agentmemory/internal/memerr"
	"agentmemory/internal/resilience"
)

const (
	// DefaultModel is the default OpenAI embedding model.
	DefaultModel = "text-embedding-3-small"
)

// OpenAIConfig configures an OpenAIEmbedder. Embedding results are cached
// by the engine, keyed on (Model, content hash), not by the embedder
// itself — see Engine.embed.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	RetryConfig resilience.RetryConfig
	Breaker     resilience.BreakerConfig
}

// DefaultOpenAIConfig returns sensible defaults mirroring the teacher's
// DefaultOpenAIConfig.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:     "https://api.openai.com/v1",
		Model:       DefaultModel,
		Timeout:     30 * time.Second,
		RetryConfig: resilience.DefaultRetryConfig(),
		Breaker:     resilience.DefaultBreakerConfig(),
	}
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint, guarded by
// retry-with-backoff and a circuit breaker. It has no cache of its own;
// the engine caches results keyed by (ModelID, content hash).
type OpenAIEmbedder struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	guard      *resilience.Guard
	dimensions int
}

// NewOpenAIEmbedder builds an OpenAIEmbedder; cfg.APIKey must be set.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, memerr.New(memerr.InvalidContent, fmt.Errorf("openai api key is required"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOpenAIConfig().Timeout
	}

	breaker := resilience.NewCircuitBreaker("openai-embeddings", cfg.Breaker)
	retrier := resilience.NewRetrier(cfg.RetryConfig)

	return &OpenAIEmbedder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		guard:      resilience.NewGuard(breaker, retrier),
		dimensions: dimensionsFor(cfg.Model),
	}, nil
}

func dimensionsFor(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }
func (e *OpenAIEmbedder) ModelID() string { return e.cfg.Model }

func (e *OpenAIEmbedder) Embed(ctx context.Context, content string) ([]float32, error) {
	if strings.TrimSpace(content) == "" {
		return nil, memerr.New(memerr.InvalidContent, fmt.Errorf("content cannot be empty"))
	}

	var result []float32
	err := e.guard.Run(ctx, func(ctx context.Context) error {
		vectors, err := e.callAPI(ctx, []string{content})
		if err != nil {
			return err
		}
		result = vectors[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, contents []string) ([][]float32, error) {
	for i, content := range contents {
		if strings.TrimSpace(content) == "" {
			return nil, memerr.New(memerr.InvalidContent, fmt.Errorf("content at index %d is empty", i))
		}
	}

	var vectors [][]float32
	err := e.guard.Run(ctx, func(ctx context.Context) error {
		v, err := e.callAPI(ctx, contents)
		vectors = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

type openAIEmbeddingItem struct {
	Embedding []float32 `json:"embedding"`
}

type openAIResponse struct {
	Data []openAIEmbeddingItem `json:"data"`
}

func (e *OpenAIEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": e.cfg.Model,
	})
	if err != nil {
		return nil, memerr.New(memerr.Internal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, memerr.New(memerr.Internal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, memerr.New(memerr.Unavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, memerr.New(memerr.Unavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, memerr.Newf(memerr.Unavailable, "openai embeddings error (status %d): %s", resp.StatusCode, string(raw))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, memerr.New(memerr.Internal, err)
	}

	out := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		out[i] = item.Embedding
	}
	return out, nil
}
