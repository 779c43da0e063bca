package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-reality/config"
	"github.com/becomeliminal/nim-reality/engine"
	"github.com/becomeliminal/nim-reality/reality"
	"github.com/becomeliminal/nim-reality/reality/embedder/cache"
	"github.com/becomeliminal/nim-reality/reality/embedder/mock"
	"github.com/becomeliminal/nim-reality/reality/store/chromem"
	"github.com/becomeliminal/nim-reality/reality/store/sqlite"
)

// app holds the wired components and everything that needs closing.
type app struct {
	engine   *engine.Engine
	sessions *reality.Sessions
	registry *prometheus.Registry
	closers  []func() error
}

func buildApp(cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{
		sessions: reality.NewSessions(),
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	embedder, err := a.buildEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(cfg, embedder.Dimensions(), logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	prompt, err := engine.LoadSystemPrompt(cfg.SystemPromptPath)
	if err != nil {
		return nil, err
	}

	memory := reality.NewMemory(store, embedder, reality.WithMemoryLogger(logger))
	a.engine = engine.NewEngine(memory,
		buildAnalyzer(cfg, logger),
		reality.NewTracker(cfg.Tracker.SimilarityThreshold),
		reality.NewDefaultResponder(),
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(a.registry)),
		engine.WithTopK(cfg.Tracker.TopK),
		engine.WithTimeout(cfg.GetTurnTimeout()),
		engine.WithSystemPrompt(prompt),
	)

	logger.Info("reality tracker ready",
		zap.String("store", cfg.Store.Backend),
		zap.String("embedder", cfg.Embedder.Provider),
		zap.String("model", cfg.Embedder.Model),
		zap.String("analyzer", cfg.Analyzer.Provider),
		zap.Int("top_k", cfg.Tracker.TopK),
		zap.Float64("threshold", cfg.Tracker.SimilarityThreshold))
	return a, nil
}

func (a *app) buildEmbedder(cfg *config.Config, logger *zap.Logger) (reality.Embedder, error) {
	var embedder reality.Embedder
	switch cfg.Embedder.Provider {
	case config.EmbedderONNX:
		e, closeFn, err := newONNXEmbedder(cfg.Embedder)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeFn)
		embedder = e
	default:
		logger.Warn("using mock embedder, similarity is only meaningful for identical texts")
		embedder = mock.NewWithDimensions(cfg.Embedder.Dimensions)
	}

	if cfg.Embedder.CacheSize > 0 {
		cached, err := cache.New(embedder, cache.Config{MaxEntries: int64(cfg.Embedder.CacheSize)})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { cached.Close(); return nil })
		embedder = cached
	}
	return embedder, nil
}

func buildStore(cfg *config.Config, dims int, logger *zap.Logger) (reality.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return sqlite.New(cfg.SQLitePath(), sqlite.WithLogger(logger), sqlite.WithDimensions(dims))
	case config.BackendChromem:
		return chromem.New(chromem.Config{
			PersistDir: cfg.Store.PersistDir,
			Compress:   cfg.Store.Compress,
			Collection: cfg.Store.Collection,
			Dimensions: dims,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildAnalyzer(cfg *config.Config, logger *zap.Logger) reality.Analyzer {
	if cfg.Analyzer.Provider != config.AnalyzerClaude {
		return reality.NewDefaultAnalyzer()
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.Analyzer.APIKey))
	return engine.NewClaudeAnalyzer(&client,
		engine.WithClaudeModel(cfg.Analyzer.ClaudeModel),
		engine.WithClaudeLogger(logger))
}

// Close releases resources in reverse order of creation.
func (a *app) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
