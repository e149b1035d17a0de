package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/regclause/internal/config"
	"github.com/hyperjump/regclause/pkg/utils"
	"go.uber.org/zap"
)

// New builds the configured provider wrapped in a query cache. When the ONNX or
// OpenAI provider cannot be constructed, the hashing provider is used instead and
// a warning is logged, so the service always has a working embedder.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	inner, err := newProvider(cfg)
	if err != nil {
		logger.Warn("embedding provider unavailable, falling back to hashing embedder",
			zap.String("provider", cfg.Provider),
			zap.Error(err))
		inner = NewHashEmbedder(cfg.Dimensions)
	}
	logger.Info("embedding provider ready",
		zap.String("provider", inner.Name()),
		zap.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newProvider(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case config.ProviderONNX, "":
		if _, err := os.Stat(cfg.ModelPath); err != nil {
			return nil, fmt.Errorf("%w: model %s: %v", ErrProviderFailure, cfg.ModelPath, err)
		}
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderFailure, cfg.Provider)
	}
}
