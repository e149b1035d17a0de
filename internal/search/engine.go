// Package search ranks clauses by lexical, semantic or hybrid relevance.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/hyperjump/regclause/internal/embedding"
	"github.com/hyperjump/regclause/internal/lifecycle"
	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultSemanticCandidates is the minimum number of semantic hits fetched for hybrid fusion.
const DefaultSemanticCandidates = 80

// Catalog provides the published index and triggers embedding builds.
type Catalog interface {
	EnsureIndex(ctx context.Context) (*lifecycle.Snapshot, error)
	EnsureEmbeddings()
}

// Engine runs clause searches against a Catalog.
type Engine struct {
	catalog    Catalog
	embedder   embedding.Embedder
	candidates int
	logger     *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// WithSemanticCandidates sets the minimum semantic over-fetch for hybrid search.
func WithSemanticCandidates(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.candidates = n
		}
	}
}

// NewEngine creates a search engine. embedder must be the provider the catalog's
// embeddings were built with.
func NewEngine(catalog Catalog, embedder embedding.Embedder, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:    catalog,
		embedder:   embedder,
		candidates: DefaultSemanticCandidates,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Search validates q, ensures the index and ranks clauses by q.Method.
// A blank query yields zero matches. Semantic signals degrade to empty while
// embeddings are not ready; only validation and index build failures are errors.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	snap, err := e.catalog.EnsureIndex(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.SearchResponse{Query: q.Query, Results: []*models.SearchResult{}}
	if snap.Count() == 0 || strings.TrimSpace(q.Query) == "" {
		return resp, nil
	}

	var ranked []Scored
	total := 0
	switch q.Method {
	case models.MethodSemantic:
		ranked = e.SearchSemantic(ctx, snap, q.Query, q.TopK)
		total = len(ranked)
	case models.MethodHybrid:
		var fused []FusedResult
		fused, err = e.SearchHybrid(ctx, snap, q.Query, q.TopK, q.Alpha)
		if err != nil {
			return nil, err
		}
		total = len(fused)
		for _, f := range fused {
			ranked = append(ranked, Scored{Index: f.Index, Score: f.Score})
		}
	default:
		ranked = ScoreLexical(snap.Clauses, q.Query)
		total = len(ranked)
	}

	if len(ranked) > q.TopK {
		ranked = ranked[:q.TopK]
	}
	resp.TotalMatches = total
	resp.Returned = len(ranked)
	for _, r := range ranked {
		resp.Results = append(resp.Results, &models.SearchResult{
			Clause: snap.Clauses[r.Index],
			Score:  models.RoundScore(r.Score),
		})
	}
	e.logger.Debug("search",
		zap.String("method", string(q.Method)),
		zap.Int("total_matches", total),
		zap.Int("returned", resp.Returned),
		zap.Duration("took", time.Since(start)))
	return resp, nil
}

// SearchSemantic returns up to topK clauses by cosine similarity to query, best first.
// When the snapshot has no aligned embeddings it requests a background build and
// returns nil; provider failures are logged and also return nil.
func (e *Engine) SearchSemantic(ctx context.Context, snap *lifecycle.Snapshot, query string, topK int) []Scored {
	if !snap.EmbeddingsReady() {
		e.catalog.EnsureEmbeddings()
		return nil
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	qv, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed", zap.Error(err))
		return nil
	}
	hits, err := snap.Embeddings.TopK(qv, topK)
	if err != nil {
		e.logger.Warn("semantic scoring failed", zap.Error(err))
		return nil
	}
	out := make([]Scored, len(hits))
	for i, h := range hits {
		out[i] = Scored{Index: h.Index, Score: h.Score}
	}
	return out
}

// SearchHybrid fuses normalized lexical scores with min-max normalized semantic scores
// of the top max(candidates, topK) semantic hits, and returns at most topK results.
// Clauses absent from both candidate sets are not ranked.
func (e *Engine) SearchHybrid(ctx context.Context, snap *lifecycle.Snapshot, query string, topK int, alpha float64) ([]FusedResult, error) {
	var lexical, semantic []Scored
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical = NormalizeLexical(ScoreLexical(snap.Clauses, query))
		return nil
	})
	g.Go(func() error {
		semantic = NormalizeSemantic(e.SearchSemantic(gctx, snap, query, max(e.candidates, topK)))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	fused := Fuse(lexical, semantic, alpha)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}
