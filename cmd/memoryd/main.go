// memoryd is the agent memory engine's process entry point: it loads
// configuration, wires the embedder, vector store, caches, temporal
// engine, memory engine, optimizer, and RPC server together, then serves
// HTTP until told to stop. Its flag parsing and graceful-shutdown shape
// are adapted from the teacher's cmd/server/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"agentmemory/internal/audit"
	"agentmemory/internal/cache"
	"agentmemory/internal/config"
	"agentmemory/internal/embedder"
	"agentmemory/internal/engine"
	"agentmemory/internal/logging"
	"agentmemory/internal/optimizer"
	"agentmemory/internal/ratelimit"
	"agentmemory/internal/rpc"
	"agentmemory/internal/security"
	"agentmemory/internal/temporal"
	"agentmemory/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file (optional; env vars still apply)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("load configuration: %v", err))
	}

	logger := logging.NewLoggerWithFormat(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	logger = logger.WithComponent("memoryd")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := newVectorStore(cfg)
	if err != nil {
		logger.Fatal("failed to build vector store", "error", err.Error())
		return
	}

	emb, embeddingCache, err := newEmbedder(cfg)
	if err != nil {
		logger.Fatal("failed to build embedder", "error", err.Error())
		return
	}

	temporalEngine := temporal.New()

	eng := engine.New(engineConfig(cfg), store, emb, temporalEngine, embeddingCache, logger)
	if cfg.Redis.Enabled {
		eng = eng.WithRedisMirror(cache.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "agentmemory", cfg.Cache.ResultTTL))
	}
	if err := eng.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize engine", "error", err.Error())
		return
	}
	defer eng.Close()

	resultCache, resultCacheLarge, engineEmbeddingCache := eng.Caches()
	opt := optimizer.New(optimizerConfig(cfg), store, temporalEngine, resultCache, resultCacheLarge, engineEmbeddingCache, logger)
	if err := opt.Start(ctx); err != nil {
		logger.Fatal("failed to start optimizer", "error", err.Error())
		return
	}
	defer opt.Stop()

	eng = eng.WithEncryption(security.NewManager(cfg.Security.EncryptionKey))

	server := rpc.NewServer(eng, logger, opt.Track)
	if cfg.RateLimit.Enabled {
		server = server.WithRateLimit(newLimiter(cfg))
	}
	if cfg.Audit.Enabled {
		auditLogger, err := audit.NewLogger(cfg.Audit.Path)
		if err != nil {
			logger.Fatal("failed to open audit log", "error", err.Error())
			return
		}
		defer auditLogger.Close()
		server = server.WithAudit(auditLogger)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.RequestTimeout,
		WriteTimeout:      cfg.Server.RequestTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("memoryd listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err.Error())
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err.Error())
	}
}

func newLimiter(cfg *config.Config) ratelimit.Limiter {
	limit := ratelimit.Limit{Requests: cfg.RateLimit.RequestsPerTenant, Window: cfg.RateLimit.Window}
	if !cfg.Redis.Enabled {
		return ratelimit.NewWindow(limit)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	return ratelimit.NewRedisLimiter(client, limit)
}

func newVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	if cfg.Qdrant.Enabled {
		qs := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
		})
		return qs, nil
	}
	return vectorstore.NewSQLiteStore(cfg.SQLite.Path)
}

func newEmbedder(cfg *config.Config) (embedder.Embedder, *cache.EmbeddingCache, error) {
	embeddingCache := cache.NewEmbeddingCache(cfg.Cache.EmbeddingMaxEntries, cfg.Cache.EmbeddingTTL)

	if cfg.OpenAI.APIKey == "" {
		return embedder.NewDeterministicEmbedder(32), embeddingCache, nil
	}

	openaiCfg := embedder.DefaultOpenAIConfig()
	openaiCfg.APIKey = cfg.OpenAI.APIKey
	openaiCfg.Model = cfg.OpenAI.Model
	openaiCfg.Timeout = cfg.OpenAI.Timeout

	emb, err := embedder.NewOpenAIEmbedder(openaiCfg)
	if err != nil {
		return nil, nil, err
	}
	return emb, embeddingCache, nil
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		MaxContentBytes:    cfg.Engine.MaxContentBytes,
		DefaultRecallLimit: cfg.Engine.DefaultRecallLimit,
		MaxRecallLimit:     cfg.Engine.MaxRecallLimit,
		DefaultThreshold:   cfg.Engine.DefaultThreshold,
		ResultTTL:          cfg.Engine.ResultTTL,
		ResultTTLLarge:     cfg.Engine.ResultTTLLarge,
		LargeResultSize:    cfg.Engine.LargeResultSize,
		ContextCacheTTL:    cfg.Engine.ContextCacheTTL,
		MaxContextMemories: cfg.Engine.MaxContextMemories,
		VectorStoreTimeout: cfg.Engine.VectorStoreTimeout,
		TenantIsolation:    true,
	}
}

func optimizerConfig(cfg *config.Config) optimizer.Config {
	return optimizer.Config{
		Interval:           time.Duration(cfg.Optimizer.IntervalHours * float64(time.Hour)),
		BatchSize:          cfg.Optimizer.BatchSize,
		DuplicateThreshold: cfg.Optimizer.DuplicateThreshold,
		LowAccessThreshold: cfg.Optimizer.LowAccessThreshold,
		LowAccessMaxAge:    time.Duration(cfg.Optimizer.LowAccessMaxAgeDays * float64(24*time.Hour)),
		StoreTimeout:       cfg.Optimizer.StoreTimeout,
	}
}
