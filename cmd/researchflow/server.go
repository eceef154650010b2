package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studypilot/researchflow/agents"
	"github.com/studypilot/researchflow/aggregate"
	"github.com/studypilot/researchflow/api/handlers"
	"github.com/studypilot/researchflow/config"
	"github.com/studypilot/researchflow/embedding"
	"github.com/studypilot/researchflow/internal/history"
	"github.com/studypilot/researchflow/internal/metrics"
	"github.com/studypilot/researchflow/internal/server"
	"github.com/studypilot/researchflow/internal/telemetry"
	"github.com/studypilot/researchflow/research"
	"github.com/studypilot/researchflow/scoring"
	"github.com/studypilot/researchflow/streaming"
	"github.com/studypilot/researchflow/subtopics"
	"github.com/studypilot/researchflow/types"
)

// Server wires the full pipeline behind one HTTP listener.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager *server.Manager
	service     *research.Service
	streams     *streaming.Manager
	store       *history.Store
	embedder    *embedding.Service
	otel        *telemetry.Providers
}

// NewServer assembles every component from configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if cfg.Search.Endpoint == "" {
		return nil, fmt.Errorf("search.endpoint must be configured to serve")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(cfg.Metrics.Namespace, registry, logger)

	otelProviders, err := telemetry.Init(telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		SampleRate:   cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(history.Config{Path: cfg.History.Path}, logger)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
	}

	backend := agents.NewHTTPBackend(agents.HTTPBackendConfig{
		BaseURL: cfg.Search.Endpoint,
		APIKey:  cfg.Search.APIKey,
		Timeout: cfg.Search.Timeout,
	}, logger)

	roster := buildRoster(cfg, backend, logger)

	var extractor *subtopics.Extractor
	if cfg.Synthesizer.Endpoint != "" {
		synth := subtopics.NewHTTPSynthesizer(subtopics.HTTPSynthesizerConfig{
			BaseURL: cfg.Synthesizer.Endpoint,
			APIKey:  cfg.Synthesizer.APIKey,
			Timeout: cfg.Synthesizer.Timeout,
		}, logger)
		extractor = subtopics.New(subtopics.DefaultConfig(), synth, logger)
	} else {
		logger.Warn("synthesizer.endpoint not configured, subtopic recursion disabled")
	}

	scoringCfg := scoring.DefaultConfig()
	scoringCfg.Preset = scoring.Preset(cfg.Scoring.Preset)
	scoringCfg.DiversityWeight = cfg.Scoring.DiversityWeight

	coordinator := research.NewCoordinator(
		research.CoordinatorConfig{AgentTimeout: cfg.Research.AgentTimeout},
		roster,
		aggregate.New(aggregate.PresetConfig(aggregate.Preset(cfg.Research.AggregationPreset)), logger),
		scoring.New(scoringCfg, logger),
		extractor,
		logger,
	)

	var embedder *embedding.Service
	if cfg.Embedding.Endpoint != "" {
		embedder, err = buildEmbedder(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("build embedding service: %w", err)
		}
		coordinator.SetEmbedder(embedder)
	}

	streams := streaming.NewManager(streaming.Config{
		HeartbeatInterval: cfg.Streaming.HeartbeatInterval,
		SendTimeout:       cfg.Streaming.SendTimeout,
	}, logger)

	svcCfg := research.ServiceConfig{
		MaxConcurrentRuns: cfg.Research.MaxConcurrentRuns,
		Coordinator:       research.CoordinatorConfig{AgentTimeout: cfg.Research.AgentTimeout},
		Orchestrator: research.OrchestratorConfig{
			MaxDepth:             cfg.Research.MaxDepth,
			MaxSubtopicsPerLevel: cfg.Research.MaxSubtopicsPerLevel,
			Workers:              cfg.Research.Workers,
		},
	}

	var historyStore research.HistoryStore
	if store != nil {
		historyStore = store
	}
	service := research.NewService(svcCfg, coordinator, streams, historyStore, logger)
	service.SetRecorder(collector)

	healthHandler := handlers.NewHealthHandler(logger)
	if store != nil {
		healthHandler.RegisterCheck(handlers.NewPingCheck("history_db", store.Ping))
	}

	router := handlers.NewRouter(
		handlers.NewResearchHandler(service, logger),
		handlers.NewStreamHandler(service, streams, collector, logger),
		healthHandler,
		collector,
		registry,
		logger,
	)

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	return &Server{
		cfg:         cfg,
		logger:      logger,
		httpManager: server.NewManager(router.Handler(), serverCfg, logger),
		service:     service,
		streams:     streams,
		store:       store,
		embedder:    embedder,
		otel:        otelProviders,
	}, nil
}

// buildEmbedder assembles the chunking, backend, and cache pieces of
// the content embedding service.
func buildEmbedder(cfg *config.Config, logger *zap.Logger) (*embedding.Service, error) {
	tokenizer, err := embedding.NewTiktokenTokenizer("cl100k_base")
	if err != nil {
		return nil, err
	}

	var cache embedding.Cache
	if cfg.Embedding.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Embedding.RedisAddr,
			Password: cfg.Embedding.RedisPassword,
			DB:       cfg.Embedding.RedisDB,
		})
		cacheCfg := embedding.DefaultCacheConfig()
		if cfg.Embedding.CacheTTL > 0 {
			cacheCfg.TTL = cfg.Embedding.CacheTTL
		}
		cache = embedding.NewRedisCache(rdb, cacheCfg, logger)
	}

	backend := embedding.NewHTTPBackend(embedding.HTTPBackendConfig{
		BaseURL:   cfg.Embedding.Endpoint,
		APIKey:    cfg.Embedding.APIKey,
		ModelName: cfg.Embedding.Model,
	}, logger)

	svcCfg := embedding.DefaultServiceConfig()
	if cfg.Embedding.MaxBatchSize > 0 {
		svcCfg.MaxBatchSize = cfg.Embedding.MaxBatchSize
	}
	if cfg.Embedding.Strategy != "" {
		svcCfg.Chunking.Strategy = embedding.ChunkingStrategy(cfg.Embedding.Strategy)
	}
	if cfg.Embedding.MaxTokens > 0 {
		svcCfg.Chunking.MaxTokens = cfg.Embedding.MaxTokens
	}
	if cfg.Embedding.OverlapTokens > 0 {
		svcCfg.Chunking.OverlapTokens = cfg.Embedding.OverlapTokens
	}
	return embedding.NewService(svcCfg, backend, cache, tokenizer, logger), nil
}

// buildRoster creates the five-agent roster over one shared backend.
func buildRoster(cfg *config.Config, backend agents.Backend, logger *zap.Logger) []*agents.Agent {
	names := []types.AgentName{
		types.AgentGeneral,
		types.AgentAcademic,
		types.AgentVideo,
		types.AgentCommunity,
		types.AgentNews,
	}
	roster := make([]*agents.Agent, 0, len(names))
	for _, n := range names {
		agentCfg := agents.DefaultConfig(n)
		if cfg.Research.AgentTimeout > 0 {
			agentCfg.Timeout = cfg.Research.AgentTimeout
		}
		roster = append(roster, agents.New(agentCfg, backend, logger))
	}
	return roster
}

// Start begins serving HTTP.
func (s *Server) Start() error {
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("researchflow serving",
		zap.String("addr", s.httpManager.ListenAddr()),
		zap.Bool("history_enabled", s.store != nil),
	)
	return nil
}

// WaitForShutdown blocks until a signal arrives, then tears everything
// down in dependency order.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()

	s.service.Shutdown()
	if err := s.streams.Close(); err != nil {
		s.logger.Warn("streaming manager close failed", zap.Error(err))
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("history store close failed", zap.Error(err))
		}
	}
	if s.embedder != nil {
		if err := s.embedder.Close(); err != nil {
			s.logger.Warn("embedding service close failed", zap.Error(err))
		}
	}
	if s.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
}
