// Package rpc mounts the memory engine behind a thin JSON-RPC-2.0-shaped
// dispatcher on github.com/go-chi/chi/v5, adapted from the teacher's
// internal/api.Router (middleware stack shape, health endpoints outside the
// versioned route group, writeJSON helper) but narrowed to the five memory
// operations instead of the teacher's task/PRD/websocket surface.
package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"agentmemory/internal/audit"
	"agentmemory/internal/engine"
	"agentmemory/internal/logging"
	"agentmemory/internal/memerr"
	"agentmemory/internal/memmodel"
	"agentmemory/internal/ratelimit"
)

// handlerFunc dispatches one decoded Request to the engine and returns the
// value to marshal as Response.Result.
type handlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Server mounts memory/remember, memory/recall, memory/forget,
// memory/context, and memory/stats behind a single POST /rpc endpoint, plus
// /health, /openapi.json, and /docs.
type Server struct {
	engine  *engine.Engine
	logger  logging.Logger
	mux     *chi.Mux
	tracks  func(tenantID string)
	limiter ratelimit.Limiter
	audit   *audit.Logger

	methods map[string]handlerFunc
}

// NewServer builds a Server wrapping eng. onRemember, if non-nil, is called
// with the tenant id after every successful memory/remember so a caller
// (e.g. the optimizer's tenant tracker) learns about new tenants without
// this package depending on internal/optimizer.
func NewServer(eng *engine.Engine, logger logging.Logger, onRemember func(tenantID string)) *Server {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO)
	}
	s := &Server{
		engine: eng,
		logger: logger.WithComponent("rpc"),
		mux:    chi.NewRouter(),
		tracks: onRemember,
	}

	s.methods = map[string]handlerFunc{
		"memory/remember": s.handleRemember,
		"memory/recall":   s.handleRecall,
		"memory/forget":   s.handleForget,
		"memory/context":  s.handleContext,
		"memory/stats":    s.handleStats,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// WithRateLimit enables per-tenant throttling of /rpc calls. Security
// tokens and rate limits are this transport's concern, not the engine's;
// a nil limiter (the default) leaves throttling off.
func (s *Server) WithRateLimit(l ratelimit.Limiter) *Server {
	s.limiter = l
	return s
}

// WithAudit attaches a durable operation trail. A nil logger (the default)
// leaves auditing off.
func (s *Server) WithAudit(a *audit.Logger) *Server {
	s.audit = a
	return s
}

// Handler returns the http.Handler to mount on a net/http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) setupMiddleware() {
	s.mux.Use(chimiddleware.Recoverer)
	s.mux.Use(chimiddleware.RequestID)
	s.mux.Use(chimiddleware.Timeout(30 * time.Second))
	s.mux.Use(s.loggingMiddleware)
	s.mux.Use(chimiddleware.Heartbeat("/ping"))
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		s.logger.InfoContext(req.Context(), "rpc request",
			"method", req.Method,
			"path", req.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) setupRoutes() {
	s.mux.Post("/rpc", s.handleDispatch)
	s.mux.Get("/health", s.handleHealth)
	s.mux.Get("/openapi.json", s.handleOpenAPI)
	s.mux.Get("/docs", s.handleDocs)
}

// handleDispatch decodes a Request, looks up its method, and writes the
// corresponding Response. A malformed body or unknown method yields a
// JSON-RPC error response rather than an HTTP-level failure, matching the
// JSON-RPC 2.0 contract.
func (s *Server) handleDispatch(w http.ResponseWriter, req *http.Request) {
	var in Request
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeResponse(w, http.StatusOK, Response{
			JSONRPC: "2.0",
			Error:   &Error{Code: -32700, Message: "parse error: " + err.Error()},
		})
		return
	}

	handler, ok := s.methods[in.Method]
	if !ok {
		writeResponse(w, http.StatusOK, Response{
			JSONRPC: "2.0",
			Error:   &Error{Code: -32601, Message: "method not found: " + in.Method},
			ID:      in.ID,
		})
		return
	}

	var ref struct {
		TenantID string `json:"tenant_id"`
		ID       string `json:"id"`
	}
	_ = json.Unmarshal(in.Params, &ref)

	if s.limiter != nil && ref.TenantID != "" {
		allowed, err := s.limiter.Allow(ref.TenantID)
		if err != nil {
			s.logger.ErrorContext(req.Context(), "rate limiter error", "error", err.Error())
		} else if !allowed {
			writeResponse(w, http.StatusOK, Response{
				JSONRPC: "2.0",
				Error:   &Error{Code: -32029, Message: "rate limit exceeded for tenant " + ref.TenantID},
				ID:      in.ID,
			})
			return
		}
	}

	start := time.Now()
	result, err := handler(req.Context(), in.Params)

	if s.audit != nil {
		resourceID := ref.ID
		if created, ok := result.(RememberResult); ok {
			resourceID = created.ID
		}
		ev := audit.Event{
			Timestamp:  start,
			TenantID:   ref.TenantID,
			Method:     in.Method,
			ResourceID: resourceID,
			Success:    err == nil,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			ev.Error = err.Error()
		}
		s.audit.Log(ev)
	}

	if err != nil {
		writeResponse(w, http.StatusOK, Response{
			JSONRPC: "2.0",
			Error:   errorToRPC(err),
			ID:      in.ID,
		})
		return
	}

	writeResponse(w, http.StatusOK, Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      in.ID,
	})
}

func (s *Server) handleRemember(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p RememberParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, memerr.New(memerr.InvalidContent, err)
	}

	opts := engine.RememberOptions{
		AgentID:            p.AgentID,
		Importance:         p.Importance,
		Confidence:         p.Confidence,
		EmotionalWeight:    p.EmotionalWeight,
		Tags:               p.Tags,
		Context:            p.Context,
		SkipDuplicateCheck: p.SkipDuplicateCheck,
	}
	if p.Type != nil {
		t := memmodel.Type(*p.Type)
		opts.Type = &t
	}
	if p.TTLSeconds != nil {
		ttl := time.Duration(*p.TTLSeconds) * time.Second
		opts.TTL = &ttl
	}

	id, err := s.engine.Remember(ctx, p.TenantID, p.Content, opts)
	if err != nil {
		return nil, err
	}
	if s.tracks != nil {
		s.tracks(p.TenantID)
	}
	return RememberResult{ID: id.String()}, nil
}

func (s *Server) handleRecall(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p RecallParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, memerr.New(memerr.InvalidQuery, err)
	}

	opts := engine.RecallOptions{
		AgentID:        p.AgentID,
		Limit:          p.Limit,
		Threshold:      p.Threshold,
		DisableCache:   p.DisableCache,
		DisableDecay:   p.DisableDecay,
		IncludeArchive: p.IncludeArchive,
	}
	for _, t := range p.Types {
		opts.Types = append(opts.Types, memmodel.Type(t))
	}

	results, err := s.engine.Recall(ctx, p.TenantID, p.Query, opts)
	if err != nil {
		return nil, err
	}

	out := RecallResult{Results: make([]ResultDTO, len(results))}
	for i := range results {
		out.Results[i] = resultToDTO(&results[i])
	}
	return out, nil
}

func (s *Server) handleForget(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p ForgetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, memerr.New(memerr.InvalidContent, err)
	}

	id, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, memerr.New(memerr.InvalidContent, err)
	}

	if err := s.engine.Forget(ctx, p.TenantID, id, p.IgnoreMissing); err != nil {
		return nil, err
	}
	return ForgetResult{Forgotten: true}, nil
}

func (s *Server) handleContext(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p ContextParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, memerr.New(memerr.InvalidQuery, err)
	}

	resp, err := s.engine.GetContext(ctx, engine.ContextRequest{
		TenantID:    p.TenantID,
		AgentID:     p.AgentID,
		MaxMemories: p.MaxMemories,
	})
	if err != nil {
		return nil, err
	}
	return contextToResult(resp), nil
}

func (s *Server) handleStats(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return statsToResult(s.engine.GetStats()), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	health := s.engine.GetHealth(req.Context())

	status := http.StatusOK
	if health.Status == engine.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, health)
}

func (s *Server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(docsHTML))
}

const docsHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>agentmemory RPC documentation</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@4/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({ url: "/openapi.json", dom_id: "#swagger-ui" });
    }
  </script>
</body>
</html>
`

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorToRPC maps a memerr.Error (or any other error) to a JSON-RPC error
// object, assigning the reserved -32602 ("invalid params") code to
// caller-fixable validation failures and a server-error-range code to
// everything else.
func errorToRPC(err error) *Error {
	kind := memerr.KindOf(err)
	code := -32000
	switch kind {
	case memerr.InvalidContent, memerr.InvalidQuery, memerr.DimensionMismatch:
		code = -32602
	case memerr.NotFound:
		code = -32001
	case memerr.NotInitialized:
		code = -32002
	case memerr.CircuitOpen, memerr.Unavailable:
		code = -32003
	case memerr.Timeout:
		code = -32004
	}
	return &Error{Code: code, Message: err.Error(), Data: map[string]string{"kind": string(kind)}}
}
