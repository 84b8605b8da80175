package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmemory/internal/audit"
	"agentmemory/internal/embedder"
	"agentmemory/internal/engine"
	"agentmemory/internal/logging"
	"agentmemory/internal/ratelimit"
	"agentmemory/internal/temporal"
	"agentmemory/internal/vectorstore"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := vectorstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := engine.New(engine.DefaultConfig(), store, embedder.NewDeterministicEmbedder(32), temporal.New(), nil, logging.NewLogger(logging.FATAL))
	require.NoError(t, eng.Initialize(context.Background()))
	t.Cleanup(func() { eng.Close() })

	return NewServer(eng, logging.NewLogger(logging.FATAL), nil)
}

func doRPC(t *testing.T, s *Server, method string, params interface{}) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)

	body, err := json.Marshal(Request{JSONRPC: "2.0", Method: method, Params: raw, ID: 1})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeResult(t *testing.T, resp Response, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestRememberThenRecallRoundTrip(t *testing.T) {
	s := newTestServer(t)

	resp := doRPC(t, s, "memory/remember", RememberParams{
		TenantID:           "t1",
		Content:            "the user prefers dark mode",
		SkipDuplicateCheck: true,
	})
	require.Nil(t, resp.Error)

	var remembered RememberResult
	decodeResult(t, resp, &remembered)
	assert.NotEmpty(t, remembered.ID)

	threshold := 0.0
	resp = doRPC(t, s, "memory/recall", RecallParams{
		TenantID:  "t1",
		Query:     "dark mode preference",
		Threshold: &threshold,
		Limit:     10,
	})
	require.Nil(t, resp.Error)

	var recalled RecallResult
	decodeResult(t, resp, &recalled)
	require.NotEmpty(t, recalled.Results)
	assert.Equal(t, remembered.ID, recalled.Results[0].Memory.ID)
}

func TestForgetThenStatsReflectCount(t *testing.T) {
	s := newTestServer(t)

	resp := doRPC(t, s, "memory/remember", RememberParams{
		TenantID:           "t1",
		Content:            "Alice likes tea",
		SkipDuplicateCheck: true,
	})
	require.Nil(t, resp.Error)
	var remembered RememberResult
	decodeResult(t, resp, &remembered)

	resp = doRPC(t, s, "memory/forget", ForgetParams{TenantID: "t1", ID: remembered.ID})
	require.Nil(t, resp.Error)
	var forgotten ForgetResult
	decodeResult(t, resp, &forgotten)
	assert.True(t, forgotten.Forgotten)

	resp = doRPC(t, s, "memory/stats", struct{}{})
	require.Nil(t, resp.Error)
	var stats StatsResult
	decodeResult(t, resp, &stats)
	assert.Equal(t, uint64(1), stats.RememberCount)
	assert.Equal(t, uint64(1), stats.ForgetCount)
}

func TestContextReturnsRememberedMemories(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := doRPC(t, s, "memory/remember", RememberParams{
			TenantID:           "t1",
			Content:            "fact for context test",
			SkipDuplicateCheck: true,
		})
		require.Nil(t, resp.Error)
	}

	resp := doRPC(t, s, "memory/context", ContextParams{TenantID: "t1", MaxMemories: 2})
	require.Nil(t, resp.Error)

	var ctxResult ContextResult
	decodeResult(t, resp, &ctxResult)
	assert.LessOrEqual(t, len(ctxResult.Memories), 2)
}

func TestUnknownMethodReturnsJSONRPCError(t *testing.T) {
	s := newTestServer(t)

	resp := doRPC(t, s, "memory/unknown", struct{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestRememberMissingTenantReturnsInvalidParamsError(t *testing.T) {
	s := newTestServer(t)

	resp := doRPC(t, s, "memory/remember", RememberParams{Content: "no tenant"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitBlocksTenantOverLimit(t *testing.T) {
	s := newTestServer(t)
	s = s.WithRateLimit(ratelimit.NewWindow(ratelimit.Limit{Requests: 1, Window: time.Minute}))

	resp := doRPC(t, s, "memory/stats", struct{}{})
	require.Nil(t, resp.Error)

	resp = doRPC(t, s, "memory/remember", RememberParams{TenantID: "t1", Content: "first", SkipDuplicateCheck: true})
	require.Nil(t, resp.Error)

	resp = doRPC(t, s, "memory/remember", RememberParams{TenantID: "t1", Content: "second", SkipDuplicateCheck: true})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32029, resp.Error.Code)
}

func TestRateLimitTracksTenantsIndependently(t *testing.T) {
	s := newTestServer(t)
	s = s.WithRateLimit(ratelimit.NewWindow(ratelimit.Limit{Requests: 1, Window: time.Minute}))

	resp := doRPC(t, s, "memory/remember", RememberParams{TenantID: "t1", Content: "first", SkipDuplicateCheck: true})
	require.Nil(t, resp.Error)

	resp = doRPC(t, s, "memory/remember", RememberParams{TenantID: "t2", Content: "first", SkipDuplicateCheck: true})
	require.Nil(t, resp.Error)
}

func TestAuditLogRecordsRememberOutcome(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := audit.NewLogger(path)
	require.NoError(t, err)
	s = s.WithAudit(logger)

	resp := doRPC(t, s, "memory/remember", RememberParams{TenantID: "t1", Content: "audited memory", SkipDuplicateCheck: true})
	require.Nil(t, resp.Error)
	var remembered RememberResult
	decodeResult(t, resp, &remembered)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var ev audit.Event
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &ev))
	assert.Equal(t, "t1", ev.TenantID)
	assert.Equal(t, "memory/remember", ev.Method)
	assert.True(t, ev.Success)
	assert.Equal(t, remembered.ID, ev.ResourceID)
}

func TestOpenAPIEndpointServesDocument(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentmemory RPC")
}
