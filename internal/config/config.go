// Package config loads memoryd's configuration from an optional YAML file
// overlaid with environment variables, following the teacher's
// godotenv-plus-os.Getenv layering but adding a YAML base layer (via
// gopkg.in/yaml.v3 into a generic map, decoded with mapstructure) for
// settings better expressed as structured config than flat env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is memoryd's full runtime configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Qdrant     QdrantConfig     `yaml:"qdrant" mapstructure:"qdrant"`
	SQLite     SQLiteConfig     `yaml:"sqlite" mapstructure:"sqlite"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Security   SecurityConfig   `yaml:"security" mapstructure:"security"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Optimizer  OptimizerConfig  `yaml:"optimizer" mapstructure:"optimizer"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
}

// ServerConfig configures the memoryd RPC listener.
type ServerConfig struct {
	Host           string        `yaml:"host" mapstructure:"host"`
	Port           int           `yaml:"port" mapstructure:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// VectorStoreBackend selects which vectorstore.Store implementation
// memoryd wires up.
type VectorStoreBackend string

const (
	BackendQdrant VectorStoreBackend = "qdrant"
	BackendSQLite VectorStoreBackend = "sqlite"
)

// QdrantConfig configures the external ANN-backed vector store.
type QdrantConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	APIKey     string `yaml:"-" mapstructure:"-"`
	UseTLS     bool   `yaml:"use_tls" mapstructure:"use_tls"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// SQLiteConfig configures the in-process brute-force vector store.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OpenAIConfig configures the embedding provider.
type OpenAIConfig struct {
	APIKey  string        `yaml:"-" mapstructure:"-"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RedisConfig configures the optional result-cache mirror.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"-" mapstructure:"-"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// CacheConfig sizes the two in-process cache tiers.
type CacheConfig struct {
	EmbeddingMaxEntries int           `yaml:"embedding_max_entries" mapstructure:"embedding_max_entries"`
	EmbeddingTTL        time.Duration `yaml:"embedding_ttl" mapstructure:"embedding_ttl"`
	ResultMaxEntries    int           `yaml:"result_max_entries" mapstructure:"result_max_entries"`
	ResultTTL           time.Duration `yaml:"result_ttl" mapstructure:"result_ttl"`
}

// ResilienceConfig tunes the retry and circuit-breaker wrapping every
// downstream call.
type ResilienceConfig struct {
	MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay        time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay         time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	MonitoringWindow time.Duration `yaml:"monitoring_window" mapstructure:"monitoring_window"`
	MinimumCalls     int           `yaml:"minimum_calls" mapstructure:"minimum_calls"`
	FailureThreshold float64       `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
}

// SecurityConfig holds at-rest protection settings.
type SecurityConfig struct {
	EncryptionKey string `yaml:"-" mapstructure:"-"`
}

// RateLimitConfig bounds how many RPC calls a single tenant may make per
// window. The Redis-backed limiter is used instead of the in-memory one
// whenever Redis is enabled, so the limit is shared across memoryd
// replicas the same way the result cache mirror is.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerTenant int           `yaml:"requests_per_tenant" mapstructure:"requests_per_tenant"`
	Window            time.Duration `yaml:"window" mapstructure:"window"`
}

// AuditConfig controls the append-only operation trail. Disabled by
// default: turning it on means every RPC call writes an extra file line,
// which an operator should opt into rather than get for free.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// EngineConfig tunes memory engine behavior: content limits, recall
// defaults, and cache TTLs. Mirrors engine.Config's documented defaults.
type EngineConfig struct {
	MaxContentBytes    int           `yaml:"max_content_bytes" mapstructure:"max_content_bytes"`
	DefaultRecallLimit int           `yaml:"default_recall_limit" mapstructure:"default_recall_limit"`
	MaxRecallLimit     int           `yaml:"max_recall_limit" mapstructure:"max_recall_limit"`
	DefaultThreshold   float64       `yaml:"default_threshold" mapstructure:"default_threshold"`
	ResultTTL          time.Duration `yaml:"result_ttl" mapstructure:"result_ttl"`
	ResultTTLLarge     time.Duration `yaml:"result_ttl_large" mapstructure:"result_ttl_large"`
	LargeResultSize    int           `yaml:"large_result_size" mapstructure:"large_result_size"`
	ContextCacheTTL    time.Duration `yaml:"context_cache_ttl" mapstructure:"context_cache_ttl"`
	MaxContextMemories int           `yaml:"max_context_memories" mapstructure:"max_context_memories"`
	VectorStoreTimeout time.Duration `yaml:"vector_store_timeout" mapstructure:"vector_store_timeout"`
}

// OptimizerConfig tunes the scheduled maintenance pipeline. Mirrors
// optimizer.Config's documented defaults.
type OptimizerConfig struct {
	IntervalHours       float64       `yaml:"interval_hours" mapstructure:"interval_hours"`
	BatchSize           int           `yaml:"batch_size" mapstructure:"batch_size"`
	DuplicateThreshold  float64       `yaml:"duplicate_threshold" mapstructure:"duplicate_threshold"`
	LowAccessThreshold  uint64        `yaml:"low_access_threshold" mapstructure:"low_access_threshold"`
	LowAccessMaxAgeDays float64       `yaml:"low_access_max_age_days" mapstructure:"low_access_max_age_days"`
	StoreTimeout        time.Duration `yaml:"store_timeout" mapstructure:"store_timeout"`
}

// Default returns the documented defaults for every setting.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8085, RequestTimeout: 15 * time.Second},
		Qdrant: QdrantConfig{Host: "localhost", Port: 6334, Collection: "agent_memories"},
		SQLite: SQLiteConfig{Path: "./data/memoryd.db"},
		OpenAI: OpenAIConfig{Model: "text-embedding-3-small", Timeout: 30 * time.Second},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Cache: CacheConfig{
			EmbeddingMaxEntries: 2000,
			EmbeddingTTL:        24 * time.Hour,
			ResultMaxEntries:    500,
			ResultTTL:           5 * time.Minute,
		},
		Resilience: ResilienceConfig{
			MaxAttempts:      3,
			BaseDelay:        100 * time.Millisecond,
			MaxDelay:         5 * time.Second,
			MonitoringWindow: 60 * time.Second,
			MinimumCalls:     10,
			FailureThreshold: 0.5,
			ResetTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Engine: EngineConfig{
			MaxContentBytes:    32 * 1024,
			DefaultRecallLimit: 10,
			MaxRecallLimit:     50,
			DefaultThreshold:   0.6,
			ResultTTL:          300 * time.Second,
			ResultTTLLarge:     60 * time.Second,
			LargeResultSize:    100,
			ContextCacheTTL:    5 * time.Minute,
			MaxContextMemories: 25,
			VectorStoreTimeout: 15 * time.Second,
		},
		Optimizer: OptimizerConfig{
			IntervalHours:       6,
			BatchSize:           500,
			DuplicateThreshold:  0.98,
			LowAccessThreshold:  1,
			LowAccessMaxAgeDays: 21,
			StoreTimeout:        15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerTenant: 120,
			Window:            time.Minute,
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    "./data/audit.log",
		},
	}
}

// Load builds a Config starting from Default, overlaying a YAML file (if
// path is non-empty and exists) via mapstructure, then overlaying
// environment variables (after loading a .env file via godotenv, if
// present) over secrets and scalar overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}

			var asMap map[string]interface{}
			if err := yaml.Unmarshal(raw, &asMap); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}

			decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				Result:           cfg,
				WeaklyTypedInput: true,
				DecodeHook: mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
				),
			})
			if err != nil {
				return nil, fmt.Errorf("build config decoder: %w", err)
			}
			if err := decoder.Decode(asMap); err != nil {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "AGENTMEMORY_HOST")
	setInt(&cfg.Server.Port, "AGENTMEMORY_PORT")

	setString(&cfg.Qdrant.Host, "AGENTMEMORY_QDRANT_HOST")
	setInt(&cfg.Qdrant.Port, "AGENTMEMORY_QDRANT_PORT")
	cfg.Qdrant.APIKey = os.Getenv("AGENTMEMORY_QDRANT_API_KEY")
	setBool(&cfg.Qdrant.Enabled, "AGENTMEMORY_QDRANT_ENABLED")

	setString(&cfg.SQLite.Path, "AGENTMEMORY_SQLITE_PATH")

	cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	setString(&cfg.OpenAI.Model, "AGENTMEMORY_OPENAI_MODEL")

	setBool(&cfg.Redis.Enabled, "AGENTMEMORY_REDIS_ENABLED")
	setString(&cfg.Redis.Addr, "AGENTMEMORY_REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("AGENTMEMORY_REDIS_PASSWORD")

	cfg.Security.EncryptionKey = os.Getenv("AGENTMEMORY_ENCRYPTION_KEY")

	setString(&cfg.Logging.Level, "AGENTMEMORY_LOG_LEVEL")
	setString(&cfg.Logging.Format, "AGENTMEMORY_LOG_FORMAT")

	setInt(&cfg.Engine.MaxRecallLimit, "AGENTMEMORY_MAX_RECALL_LIMIT")
	setFloat(&cfg.Engine.DefaultThreshold, "AGENTMEMORY_DEFAULT_THRESHOLD")

	setFloat(&cfg.Optimizer.IntervalHours, "AGENTMEMORY_OPTIMIZER_INTERVAL_HOURS")
	setInt(&cfg.Optimizer.BatchSize, "AGENTMEMORY_OPTIMIZER_BATCH_SIZE")
	setFloat(&cfg.Optimizer.DuplicateThreshold, "AGENTMEMORY_OPTIMIZER_DUPLICATE_THRESHOLD")
	setFloat(&cfg.Optimizer.LowAccessMaxAgeDays, "AGENTMEMORY_OPTIMIZER_LOW_ACCESS_MAX_AGE_DAYS")

	setBool(&cfg.RateLimit.Enabled, "AGENTMEMORY_RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.RequestsPerTenant, "AGENTMEMORY_RATE_LIMIT_REQUESTS_PER_TENANT")

	setBool(&cfg.Audit.Enabled, "AGENTMEMORY_AUDIT_ENABLED")
	setString(&cfg.Audit.Path, "AGENTMEMORY_AUDIT_PATH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}
