package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "agent_memories", cfg.Qdrant.Collection)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.Model)
	assert.Equal(t, 10, cfg.Resilience.MinimumCalls)
	assert.InDelta(t, 0.5, cfg.Resilience.FailureThreshold, 1e-9)
}

func TestLoadWithNoFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("AGENTMEMORY_PORT", "9999")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestLoadMergesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "server:\n  port: 7070\nqdrant:\n  collection: custom-collection\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "custom-collection", cfg.Qdrant.Collection)
	// Untouched fields keep their defaults.
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.Model)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))

	t.Setenv("AGENTMEMORY_PORT", "6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestDefaultEngineAndOptimizerMatchDocumentedDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 50, cfg.Engine.MaxRecallLimit)
	assert.InDelta(t, 0.6, cfg.Engine.DefaultThreshold, 1e-9)

	assert.InDelta(t, 6.0, cfg.Optimizer.IntervalHours, 1e-9)
	assert.Equal(t, 500, cfg.Optimizer.BatchSize)
	assert.InDelta(t, 0.98, cfg.Optimizer.DuplicateThreshold, 1e-9)
}

func TestLoadOptimizerEnvOverrides(t *testing.T) {
	t.Setenv("AGENTMEMORY_OPTIMIZER_BATCH_SIZE", "250")
	t.Setenv("AGENTMEMORY_OPTIMIZER_DUPLICATE_THRESHOLD", "0.9")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Optimizer.BatchSize)
	assert.InDelta(t, 0.9, cfg.Optimizer.DuplicateThreshold, 1e-9)
}

func TestDefaultRateLimitAndAuditAreDisabled(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerTenant)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, "./data/audit.log", cfg.Audit.Path)
}

func TestLoadRateLimitAndAuditEnvOverrides(t *testing.T) {
	t.Setenv("AGENTMEMORY_RATE_LIMIT_ENABLED", "true")
	t.Setenv("AGENTMEMORY_RATE_LIMIT_REQUESTS_PER_TENANT", "30")
	t.Setenv("AGENTMEMORY_AUDIT_ENABLED", "true")
	t.Setenv("AGENTMEMORY_AUDIT_PATH", "/tmp/custom-audit.log")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerTenant)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, "/tmp/custom-audit.log", cfg.Audit.Path)
}
