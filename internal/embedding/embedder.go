// Package embedding provides pluggable text embedding providers.
package embedding

import (
	"context"
	"errors"
)

// ErrProviderFailure wraps any failure to construct a provider or encode text.
var ErrProviderFailure = errors.New("embedding provider failure")

// Embedder produces unit-normalized vector embeddings of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Name identifies the provider in status output and cache logs.
	Name() string
	Close() error
}
