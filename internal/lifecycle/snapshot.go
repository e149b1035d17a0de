package lifecycle

import (
	"time"

	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/internal/vector"
)

// Snapshot is an immutable view of the clause index and, once built, its embeddings.
// Row i of Embeddings belongs to Clauses[i]. A Snapshot is never modified after it is
// published; a new one replaces it.
type Snapshot struct {
	// Generation identifies the clause set. It changes whenever clauses are rebuilt
	// or reloaded and is kept when only embeddings are attached.
	Generation string
	BuiltAt    time.Time
	Clauses    []models.Clause
	// Embeddings is nil until the embedding build for this generation completes.
	Embeddings *vector.Matrix
}

// Count returns the number of clauses.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Clauses)
}

// EmbeddingsReady reports whether embeddings are present, non-empty and aligned with the clauses.
func (s *Snapshot) EmbeddingsReady() bool {
	return s != nil && s.Embeddings != nil && s.Embeddings.Rows() > 0 && s.Embeddings.Rows() == len(s.Clauses)
}

// embeddingsCurrent reports whether embeddings exist for exactly these clauses,
// including the zero-row set of an empty index.
func (s *Snapshot) embeddingsCurrent() bool {
	return s != nil && s.Embeddings != nil && s.Embeddings.Rows() == len(s.Clauses)
}
