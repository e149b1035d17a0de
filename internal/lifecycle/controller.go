// Package lifecycle owns the clause index and its embeddings: loading from cache,
// rebuilding from source, background embedding construction and atomic publication
// to concurrent readers.
package lifecycle

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/regclause/internal/embedding"
	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/internal/storage"
	"github.com/hyperjump/regclause/internal/vector"
	"github.com/hyperjump/regclause/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrStaleGeneration is returned by BuildEmbeddings when the index was replaced while
// embeddings were being computed; the result is discarded.
var ErrStaleGeneration = errors.New("index generation changed during embedding build")

const embeddingsFlight = "embeddings"

// ClauseBuilder builds the clause index from source documents.
type ClauseBuilder interface {
	Build(ctx context.Context) ([]models.Clause, error)
}

// EmbeddingStore persists an embedding matrix with the fingerprint of the texts it encodes.
type EmbeddingStore interface {
	Load() (*vector.Matrix, storage.Fingerprint, error)
	Save(m *vector.Matrix, fp storage.Fingerprint) error
	Remove() error
}

// Controller is the single writer of the published Snapshot. Readers call Current
// and never block on builds.
type Controller struct {
	builder    ClauseBuilder
	clauses    storage.ClauseCache
	embeddings EmbeddingStore
	embedder   embedding.Embedder
	batchSize  int
	textBudget int
	logger     *zap.Logger

	current atomic.Pointer[Snapshot]
	// mu serializes every writer: index builds, reindex, and embedding publication.
	mu       sync.Mutex
	flight   singleflight.Group
	building atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	bgMu   sync.Mutex
	closed bool
	bg     sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = utils.OrNop(l) }
}

// WithBatchSize sets how many clause texts are sent to the embedder per call.
func WithBatchSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithTextBudget caps the clause text, in characters, included in each embedding input.
func WithTextBudget(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.textBudget = n
		}
	}
}

// New creates a controller with an empty published snapshot.
func New(builder ClauseBuilder, clauses storage.ClauseCache, embeddings EmbeddingStore, embedder embedding.Embedder, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		builder:    builder,
		clauses:    clauses,
		embeddings: embeddings,
		embedder:   embedder,
		batchSize:  64,
		textBudget: 1200,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, o := range opts {
		o(c)
	}
	c.current.Store(&Snapshot{})
	return c
}

// Current returns the published snapshot. It never returns nil.
func (c *Controller) Current() *Snapshot {
	return c.current.Load()
}

// EmbeddingsReady reports whether the published snapshot has aligned embeddings.
func (c *Controller) EmbeddingsReady() bool {
	return c.Current().EmbeddingsReady()
}

// Building reports whether a background embedding build is running.
func (c *Controller) Building() bool {
	return c.building.Load()
}

// Embedder returns the embedding provider used for clauses; queries must use the same one.
func (c *Controller) Embedder() embedding.Embedder {
	return c.embedder
}

// Warm ensures the index synchronously and starts the embedding build in the background.
func (c *Controller) Warm(ctx context.Context) error {
	snap, err := c.EnsureIndex(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("index ready", zap.Int("count", snap.Count()), zap.String("generation", snap.Generation))
	c.EnsureEmbeddings()
	return nil
}

// EnsureIndex returns the published snapshot if it has clauses. Otherwise it loads
// the clause cache, falling back to a build from source, and publishes the result.
// Concurrent callers wait for a single load or build.
func (c *Controller) EnsureIndex(ctx context.Context) (*Snapshot, error) {
	if snap := c.Current(); snap.Count() > 0 {
		return snap, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap := c.Current(); snap.Count() > 0 {
		return snap, nil
	}

	clauses, err := c.clauses.Load(ctx)
	switch {
	case err == nil && len(clauses) > 0:
		c.logger.Info("index cache loaded", zap.Int("count", len(clauses)))
		return c.publishClauses(clauses), nil
	case err == nil, errors.Is(err, storage.ErrCacheMiss):
		c.logger.Info("index cache miss, building from source")
	case errors.Is(err, storage.ErrCacheCorrupt):
		c.logger.Warn("index cache corrupt, rebuilding from source", zap.Error(err))
	default:
		c.logger.Warn("index cache unreadable, rebuilding from source", zap.Error(err))
	}

	clauses, err = c.builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := c.clauses.Save(ctx, clauses); err != nil {
		c.logger.Error("failed to save index cache", zap.Error(err))
	} else {
		c.logger.Info("index cache saved", zap.Int("count", len(clauses)))
	}
	return c.publishClauses(clauses), nil
}

// Reindex rebuilds clauses from source, bypassing the cache, persists them, drops the
// embedding cache and publishes the new index without embeddings. Readers keep the old
// snapshot until the swap. The embedding rebuild is started in the background. A failed
// cache write is returned after the new index has been published.
func (c *Controller) Reindex(ctx context.Context) (int, error) {
	c.mu.Lock()
	clauses, err := c.builder.Build(ctx)
	if err != nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	saveErr := c.clauses.Save(ctx, clauses)
	if saveErr != nil {
		c.logger.Error("failed to save index cache", zap.Error(saveErr))
	}
	if err := c.embeddings.Remove(); err != nil {
		c.logger.Warn("failed to remove embeddings cache", zap.Error(err))
	}
	prev := c.Current()
	snap := c.publishClauses(clauses)
	c.mu.Unlock()

	c.logger.Info("reindexed",
		zap.String("previous_generation", prev.Generation),
		zap.String("generation", snap.Generation),
		zap.Int("count", snap.Count()))
	c.EnsureEmbeddings()

	if saveErr != nil {
		return snap.Count(), fmt.Errorf("save index cache: %w", saveErr)
	}
	return snap.Count(), nil
}

// publishClauses stores a new generation without embeddings. Callers hold mu.
func (c *Controller) publishClauses(clauses []models.Clause) *Snapshot {
	if clauses == nil {
		clauses = []models.Clause{}
	}
	snap := &Snapshot{
		Generation: uuid.NewString(),
		BuiltAt:    time.Now().UTC(),
		Clauses:    clauses,
	}
	c.current.Store(snap)
	return snap
}

// EnsureEmbeddings starts a background embedding build unless the published snapshot
// already has embeddings for its clauses. Concurrent requests share one build; a build
// that finishes for a replaced generation is retried against the new one. It returns
// immediately.
func (c *Controller) EnsureEmbeddings() {
	if c.Current().embeddingsCurrent() {
		return
	}
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.closed {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		for {
			_, err, _ := c.flight.Do(embeddingsFlight, func() (any, error) {
				c.building.Store(true)
				defer c.building.Store(false)
				return nil, c.BuildEmbeddings(c.ctx)
			})
			switch {
			case err == nil:
				return
			case errors.Is(err, ErrStaleGeneration) && c.ctx.Err() == nil:
				c.logger.Debug("embedding build was stale, retrying for current index")
				continue
			case c.ctx.Err() != nil:
				return
			default:
				c.logger.Error("embedding build failed; semantic search unavailable", zap.Error(err))
				return
			}
		}
	}()
}

// BuildEmbeddings ensures the index, then attaches embeddings to the published snapshot:
// from the embedding cache when its shape and fingerprint match, otherwise by encoding
// every clause. It returns ErrStaleGeneration if the index was replaced meanwhile.
func (c *Controller) BuildEmbeddings(ctx context.Context) error {
	snap, err := c.EnsureIndex(ctx)
	if err != nil {
		return err
	}
	if snap.embeddingsCurrent() {
		return nil
	}

	start := time.Now()
	texts := c.representations(snap.Clauses)
	fp := fingerprint(c.embedder.Name(), c.embedder.Dimensions(), texts)

	m, fromCache := c.loadCached(len(texts), fp)
	if m == nil {
		c.logger.Info("building embeddings", zap.Int("clauses", len(texts)), zap.String("provider", c.embedder.Name()))
		m, err = c.encode(ctx, texts)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	cur := c.Current()
	if cur.Generation != snap.Generation {
		c.mu.Unlock()
		return fmt.Errorf("%w: built for %s, current is %s", ErrStaleGeneration, snap.Generation, cur.Generation)
	}
	c.current.Store(&Snapshot{
		Generation: cur.Generation,
		BuiltAt:    cur.BuiltAt,
		Clauses:    cur.Clauses,
		Embeddings: m,
	})
	c.mu.Unlock()

	if !fromCache {
		if err := c.embeddings.Save(m, fp); err != nil {
			c.logger.Error("failed to save embeddings cache", zap.Error(err))
		}
	}
	c.logger.Info("embeddings ready",
		zap.Int("rows", m.Rows()),
		zap.Int("dimensions", m.Dim()),
		zap.Bool("from_cache", fromCache),
		zap.Duration("took", time.Since(start)))
	return nil
}

// loadCached returns the cached matrix when it matches rows, dimension and fingerprint.
func (c *Controller) loadCached(rows int, fp storage.Fingerprint) (*vector.Matrix, bool) {
	m, cachedFP, err := c.embeddings.Load()
	switch {
	case errors.Is(err, storage.ErrCacheMiss):
		return nil, false
	case err != nil:
		c.logger.Warn("embeddings cache unusable", zap.Error(err))
		return nil, false
	case m.Rows() != rows || m.Dim() != c.embedder.Dimensions():
		c.logger.Info("embeddings cache shape mismatch, rebuilding",
			zap.Int("cached_rows", m.Rows()), zap.Int("rows", rows),
			zap.Int("cached_dimensions", m.Dim()), zap.Int("dimensions", c.embedder.Dimensions()))
		return nil, false
	case cachedFP != fp:
		c.logger.Info("embeddings cache fingerprint mismatch, rebuilding")
		return nil, false
	}
	c.logger.Info("embeddings cache loaded", zap.Int("rows", m.Rows()))
	return m, true
}

// encode embeds texts in batches. An empty index yields a zero-row matrix.
func (c *Controller) encode(ctx context.Context, texts []string) (*vector.Matrix, error) {
	dim := c.embedder.Dimensions()
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch, err := c.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, providerFailure(fmt.Errorf("embed clauses %d-%d: %w", start, end, err))
		}
		if len(batch) != end-start {
			return nil, providerFailure(fmt.Errorf("got %d vectors for %d clauses", len(batch), end-start))
		}
		vectors = append(vectors, batch...)
	}
	m, err := vector.NewMatrix(dim, vectors)
	if err != nil {
		return nil, providerFailure(err)
	}
	return m, nil
}

func providerFailure(err error) error {
	if errors.Is(err, embedding.ErrProviderFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", embedding.ErrProviderFailure, err)
}

// representations renders the embedding input of each clause: its header line and
// the text cut to the text budget.
func (c *Controller) representations(clauses []models.Clause) []string {
	texts := make([]string, len(clauses))
	for i := range clauses {
		texts[i] = clauses[i].Header() + "\n" + utils.TruncateRunes(clauses[i].Text, c.textBudget)
	}
	return texts
}

// fingerprint hashes the provider identity and every embedding input, length-prefixed.
func fingerprint(provider string, dim int, texts []string) storage.Fingerprint {
	h := sha256.New()
	var n [8]byte
	write := func(s string) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	write(provider)
	binary.LittleEndian.PutUint64(n[:], uint64(dim))
	h.Write(n[:])
	for _, t := range texts {
		write(t)
	}
	var fp storage.Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// Wait blocks until background embedding builds started so far have exited.
func (c *Controller) Wait() {
	c.bg.Wait()
}

// Close cancels background builds and waits for them to exit.
func (c *Controller) Close() error {
	c.bgMu.Lock()
	c.closed = true
	c.bgMu.Unlock()
	c.cancel()
	c.bg.Wait()
	return nil
}
