package main

import (
	"fmt"

	"github.com/hyperjump/regclause/internal/config"
	"github.com/hyperjump/regclause/internal/embedding"
	"github.com/hyperjump/regclause/internal/extract"
	"github.com/hyperjump/regclause/internal/indexer"
	"github.com/hyperjump/regclause/internal/lifecycle"
	"github.com/hyperjump/regclause/internal/search"
	"github.com/hyperjump/regclause/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	ClauseCache storage.ClauseCache
	Embedder    embedding.Embedder
	Controller  *lifecycle.Controller
	Engine      *search.Engine
}

// Close stops background work and releases resources.
func (c *Components) Close() {
	if c.Controller != nil {
		_ = c.Controller.Close()
	}
	if c.ClauseCache != nil {
		_ = c.ClauseCache.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	clauseCache, err := storage.NewClauseCache(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize index cache: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		_ = clauseCache.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	idx := indexer.NewIndexer(cfg.Documents, extract.NewExtractor(extract.WithLogger(logger)), indexer.WithLogger(logger))
	ctrl := lifecycle.New(
		idx,
		clauseCache,
		storage.NewEmbeddingCache(cfg.Storage.EmbeddingsPath),
		embedder,
		lifecycle.WithLogger(logger),
		lifecycle.WithBatchSize(cfg.Embedding.BatchSize),
		lifecycle.WithTextBudget(cfg.Embedding.TextBudget),
	)
	engine := search.NewEngine(ctrl, embedder,
		search.WithLogger(logger),
		search.WithSemanticCandidates(cfg.Search.SemanticCandidates),
	)

	return &Components{
		ClauseCache: clauseCache,
		Embedder:    embedder,
		Controller:  ctrl,
		Engine:      engine,
	}, nil
}
