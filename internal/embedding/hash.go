package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/regclause/pkg/utils"
)

// HashEmbedder is a deterministic feature-hashing embedder. Each lowercase
// alphanumeric token and each adjacent token pair is hashed into a signed bucket;
// the bucket vector is L2-normalized. Texts sharing vocabulary get positive cosine
// similarity, which makes it usable offline and in tests. A text with no tokens
// embeds to the zero vector.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hashing embedder of the given dimension (384 when non-positive).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed embedding of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	tokens := utils.Tokens(text)
	for i, tok := range tokens {
		e.add(emb, tok, 1)
		if i > 0 {
			e.add(emb, tokens[i-1]+" "+tok, 0.5)
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func (e *HashEmbedder) add(emb []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	emb[bucket] += weight
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Name returns "hash".
func (e *HashEmbedder) Name() string { return "hash" }

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
