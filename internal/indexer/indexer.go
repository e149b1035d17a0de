// Package indexer turns configured source documents into an ordered clause index.
package indexer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hyperjump/regclause/internal/config"
	"github.com/hyperjump/regclause/internal/extract"
	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MinPageLength is the trimmed length below which a page is skipped entirely.
const MinPageLength = 20

// extractConcurrency bounds how many documents are read at once.
const extractConcurrency = 4

// PageSource yields the pages of a document. Implementations return an error
// wrapping extract.ErrSourceUnavailable when the file cannot be read.
type PageSource interface {
	Pages(path string) ([]extract.Page, error)
}

// Indexer builds clauses from a fixed list of documents.
type Indexer struct {
	documents []config.DocumentConfig
	source    PageSource
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build diagnostics.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = utils.OrNop(l) }
}

// NewIndexer creates an indexer over documents, reading pages from source.
func NewIndexer(documents []config.DocumentConfig, source PageSource, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		documents: documents,
		source:    source,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Documents returns the configured documents.
func (idx *Indexer) Documents() []config.DocumentConfig {
	return idx.documents
}

// Build reads every document and returns its clauses in document, page and
// segment order. An unreadable document contributes no clauses and is logged;
// only context cancellation aborts the build.
func (idx *Indexer) Build(ctx context.Context) ([]models.Clause, error) {
	perDoc := make([][]models.Clause, len(idx.documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, doc := range idx.documents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perDoc[i] = idx.buildDocument(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var clauses []models.Clause
	for _, c := range perDoc {
		clauses = append(clauses, c...)
	}
	idx.logger.Info("clause index built",
		zap.Int("documents", len(idx.documents)),
		zap.Int("clauses", len(clauses)))
	return clauses, nil
}

func (idx *Indexer) buildDocument(doc config.DocumentConfig) []models.Clause {
	pages, err := idx.source.Pages(doc.Path)
	if err != nil {
		idx.logger.Warn("source document unavailable, skipping",
			zap.String("document", doc.Key),
			zap.String("path", doc.Path),
			zap.Error(err))
		return nil
	}

	filename := filepath.Base(doc.Path)
	var clauses []models.Clause
	anchored := map[AnchorKind]int{}
	for _, p := range pages {
		if utils.RuneLen(strings.TrimSpace(p.Text)) < MinPageLength {
			continue
		}
		for seg := range SegmentPage(p.Text) {
			anchored[seg.Anchor]++
			clauses = append(clauses, models.Clause{
				Source:    doc.Label,
				Filename:  filename,
				Page:      p.Number,
				Reference: ResolveReference(seg.Raw),
				Text:      seg.Text,
			})
		}
	}
	idx.logger.Info("index document pages",
		zap.String("document", doc.Key),
		zap.Int("pages", len(pages)),
		zap.Int("clauses", len(clauses)),
		zap.Int("article_anchored", anchored[AnchorArticle]),
		zap.Int("code_anchored", anchored[AnchorCode]),
		zap.Int("heading_anchored", anchored[AnchorHeading]))
	return clauses
}
