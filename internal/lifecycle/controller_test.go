package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/regclause/internal/embedding"
	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBuilder returns n synthetic clauses and counts builds.
type fakeBuilder struct {
	mu     sync.Mutex
	n      int
	prefix string
	builds atomic.Int32
	err    error
}

func (b *fakeBuilder) Build(ctx context.Context) ([]models.Clause, error) {
	b.builds.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	clauses := make([]models.Clause, b.n)
	for i := range clauses {
		clauses[i] = models.Clause{
			Source:    "Doc",
			Filename:  "doc.pdf",
			Page:      i + 1,
			Reference: fmt.Sprintf("Article %d", i+1),
			Text:      fmt.Sprintf("%s clause number %d about personal data processing obligations", b.prefix, i+1),
		}
	}
	return clauses, nil
}

func (b *fakeBuilder) set(n int, prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n, b.prefix = n, prefix
}

// countingEmbedder counts batch calls and can fail or block.
type countingEmbedder struct {
	*embedding.HashEmbedder
	batches atomic.Int32
	fail    atomic.Bool
	gate    chan struct{} // when non-nil, batches wait for it to close
	entered chan struct{}
	once    sync.Once
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{HashEmbedder: embedding.NewHashEmbedder(16)}
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches.Add(1)
	if e.gate != nil {
		e.once.Do(func() { close(e.entered) })
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.fail.Load() {
		return nil, errors.New("model exploded")
	}
	return e.HashEmbedder.EmbedBatch(ctx, texts)
}

type fixture struct {
	builder  *fakeBuilder
	embedder *countingEmbedder
	clauses  storage.ClauseCache
	embCache *storage.EmbeddingCache
	dir      string
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		builder:  &fakeBuilder{n: n, prefix: "v1"},
		embedder: newCountingEmbedder(),
		clauses:  storage.NewJSONClauseCache(filepath.Join(dir, "index.json")),
		embCache: storage.NewEmbeddingCache(filepath.Join(dir, "embeddings.bin")),
		dir:      dir,
	}
}

func (f *fixture) controller(t *testing.T, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithBatchSize(4)}, opts...)
	c := New(f.builder, f.clauses, f.embCache, f.embedder, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEnsureIndex_idempotent(t *testing.T) {
	f := newFixture(t, 3)
	c := f.controller(t)
	ctx := context.Background()

	first, err := c.EnsureIndex(ctx)
	require.NoError(t, err)
	second, err := c.EnsureIndex(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), f.builder.builds.Load())
	assert.Equal(t, 3, c.Current().Count())
	assert.NotEmpty(t, first.Generation)
}

func TestEnsureIndex_concurrentCallersShareOneBuild(t *testing.T) {
	f := newFixture(t, 5)
	c := f.controller(t)

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 16)
	for i := range snaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.EnsureIndex(context.Background())
			assert.NoError(t, err)
			snaps[i] = s
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.builder.builds.Load())
	for _, s := range snaps {
		assert.Same(t, snaps[0], s)
	}
}

func TestEnsureIndex_loadsFromCache(t *testing.T) {
	f := newFixture(t, 4)
	_, err := f.controller(t).EnsureIndex(context.Background())
	require.NoError(t, err)

	f.builder.builds.Store(0)
	snap, err := f.controller(t).EnsureIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Count())
	assert.Zero(t, f.builder.builds.Load(), "cache hit must not rebuild")
}

func TestEnsureIndex_corruptCacheRebuilds(t *testing.T) {
	f := newFixture(t, 2)
	require.NoError(t, os.WriteFile(f.clauses.Path(), []byte("[{broken"), 0644))

	snap, err := f.controller(t).EnsureIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count())
	assert.Equal(t, int32(1), f.builder.builds.Load())

	reloaded, err := f.clauses.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, reloaded, 2, "rebuild should overwrite the corrupt cache")
}

func TestEnsureIndex_buildError(t *testing.T) {
	f := newFixture(t, 2)
	f.builder.err = context.DeadlineExceeded
	_, err := f.controller(t).EnsureIndex(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildEmbeddings_alignedAndCached(t *testing.T) {
	f := newFixture(t, 10)
	c := f.controller(t)

	require.NoError(t, c.BuildEmbeddings(context.Background()))
	snap := c.Current()
	require.True(t, snap.EmbeddingsReady())
	assert.Equal(t, snap.Count(), snap.Embeddings.Rows())
	assert.Equal(t, 16, snap.Embeddings.Dim())
	assert.Equal(t, int32(3), f.embedder.batches.Load(), "10 clauses in batches of 4")

	// A fresh controller reuses both caches without encoding.
	f.embedder.batches.Store(0)
	c2 := f.controller(t)
	require.NoError(t, c2.BuildEmbeddings(context.Background()))
	assert.True(t, c2.EmbeddingsReady())
	assert.Zero(t, f.embedder.batches.Load())
}

func TestBuildEmbeddings_rejectsStaleCacheAfterReindex(t *testing.T) {
	f := newFixture(t, 3)
	c := f.controller(t)
	require.NoError(t, c.BuildEmbeddings(context.Background()))

	// Keep a copy of the 3-row cache to put back after reindex deletes it.
	stale, err := os.ReadFile(f.embCache.Path())
	require.NoError(t, err)

	f.builder.set(5, "v2")
	count, err := c.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.NoError(t, c.Close())

	require.NoError(t, os.WriteFile(f.embCache.Path(), stale, 0644))

	c2 := f.controller(t)
	require.NoError(t, c2.BuildEmbeddings(context.Background()))
	assert.Equal(t, 5, c2.Current().Embeddings.Rows())
	assert.True(t, c2.EmbeddingsReady())
}

func TestBuildEmbeddings_rejectsSameSizeCacheForDifferentText(t *testing.T) {
	f := newFixture(t, 3)
	require.NoError(t, f.controller(t).BuildEmbeddings(context.Background()))

	f.builder.set(3, "changed")
	require.NoError(t, os.Remove(f.clauses.Path()))
	f.embedder.batches.Store(0)

	c := f.controller(t)
	require.NoError(t, c.BuildEmbeddings(context.Background()))
	assert.Positive(t, f.embedder.batches.Load(), "fingerprint mismatch must re-encode")
	assert.True(t, c.EmbeddingsReady())
}

func TestBuildEmbeddings_providerFailure(t *testing.T) {
	f := newFixture(t, 3)
	f.embedder.fail.Store(true)
	c := f.controller(t)

	err := c.BuildEmbeddings(context.Background())
	require.ErrorIs(t, err, embedding.ErrProviderFailure)
	assert.False(t, c.EmbeddingsReady())
	assert.Equal(t, 3, c.Current().Count(), "index stays available")
	_, statErr := os.Stat(f.embCache.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildEmbeddings_emptyIndex(t *testing.T) {
	f := newFixture(t, 0)
	c := f.controller(t)

	require.NoError(t, c.BuildEmbeddings(context.Background()))
	snap := c.Current()
	require.NotNil(t, snap.Embeddings)
	assert.Zero(t, snap.Embeddings.Rows())
	assert.False(t, snap.EmbeddingsReady())
	assert.Zero(t, f.embedder.batches.Load())
}

func TestBuildEmbeddings_staleGenerationDiscarded(t *testing.T) {
	f := newFixture(t, 3)
	f.embedder.gate = make(chan struct{})
	f.embedder.entered = make(chan struct{})
	c := f.controller(t)
	_, err := c.EnsureIndex(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.BuildEmbeddings(context.Background()) }()
	<-f.embedder.entered

	f.builder.set(4, "v2")
	_, err = c.Reindex(context.Background())
	require.NoError(t, err)
	close(f.embedder.gate)

	require.ErrorIs(t, <-done, ErrStaleGeneration)
	require.Eventually(t, c.EmbeddingsReady, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, c.Current().Embeddings.Rows())
}

func TestReindex_readersNeverSeeMismatchedSnapshot(t *testing.T) {
	f := newFixture(t, 2)
	c := f.controller(t)
	require.NoError(t, c.Warm(context.Background()))

	stop := make(chan struct{})
	var readers sync.WaitGroup
	var violations atomic.Int32
	for i := 0; i < 8; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := c.Current()
				if s.Embeddings != nil && s.Embeddings.Rows() != len(s.Clauses) {
					violations.Add(1)
				}
			}
		}()
	}

	for i := 0; i < 10; i++ {
		f.builder.set(2+i%4, fmt.Sprintf("round%d", i))
		_, err := c.Reindex(context.Background())
		require.NoError(t, err)
	}
	require.Eventually(t, c.EmbeddingsReady, 5*time.Second, 10*time.Millisecond)
	close(stop)
	readers.Wait()

	assert.Zero(t, violations.Load())
	assert.Equal(t, c.Current().Count(), c.Current().Embeddings.Rows())
}

func TestReindex_bypassesIndexCache(t *testing.T) {
	f := newFixture(t, 2)
	c := f.controller(t)
	require.NoError(t, c.BuildEmbeddings(context.Background()))
	before := c.Current()

	f.builder.set(2, "fresh")
	count, err := c.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int32(2), f.builder.builds.Load())

	after := c.Current()
	assert.NotEqual(t, before.Generation, after.Generation)
	assert.Contains(t, after.Clauses[0].Text, "fresh")

	cached, err := f.clauses.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cached[0].Text, "fresh")
}

func TestWarm_startsBackgroundEmbeddings(t *testing.T) {
	f := newFixture(t, 6)
	c := f.controller(t)

	require.NoError(t, c.Warm(context.Background()))
	assert.Equal(t, 6, c.Current().Count(), "index is ready when Warm returns")
	require.Eventually(t, c.EmbeddingsReady, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !c.Building() }, 5*time.Second, 10*time.Millisecond)
}

func TestReindex_waitForEmbeddings(t *testing.T) {
	f := newFixture(t, 4)
	c := f.controller(t)

	n, err := c.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	c.Wait()
	assert.True(t, c.EmbeddingsReady())
	_, _, err = f.embCache.Load()
	assert.NoError(t, err, "embeddings cache written before Wait returns")
}

func TestEnsureEmbeddings_afterCloseIsNoop(t *testing.T) {
	f := newFixture(t, 2)
	c := f.controller(t)
	_, err := c.EnsureIndex(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c.EnsureEmbeddings()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.EmbeddingsReady())
	assert.Zero(t, f.embedder.batches.Load())
}

func TestFingerprint(t *testing.T) {
	a := fingerprint("hash", 16, []string{"ab", "c"})
	b := fingerprint("hash", 16, []string{"a", "bc"})
	assert.NotEqual(t, a, b, "length prefixes keep boundaries distinct")
	assert.Equal(t, a, fingerprint("hash", 16, []string{"ab", "c"}))
	assert.NotEqual(t, a, fingerprint("onnx", 16, []string{"ab", "c"}))
	assert.NotEqual(t, a, fingerprint("hash", 32, []string{"ab", "c"}))
}
